package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vovakirdan/chatgate/internal/core"
)

// RoomList downloads every room of the chat, sorted by name. It does not
// touch the joined rooms.
func (e *Engine) RoomList(ctx context.Context) ([]*core.Room, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roomList(ctx)
}

func (e *Engine) roomList(ctx context.Context) ([]*core.Room, error) {
	e.log.Debug().Msg("downloading room list")
	summaries, err := e.backend.RoomList(ctx)
	if err != nil {
		return nil, fmt.Errorf("room list: %w", err)
	}
	rooms := make([]*core.Room, 0, len(summaries))
	for _, s := range summaries {
		rooms = append(rooms, core.NewRoomFromSummary(s))
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return strings.ToLower(rooms[i].Name()) < strings.ToLower(rooms[j].Name())
	})
	return rooms, nil
}

// RoomByName returns the joined room called name, or looks it up in the full
// room list. Unknown names yield core.ErrRoomNotFound.
func (e *Engine) RoomByName(ctx context.Context, name string) (*core.Room, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r := e.rooms.byName(name); r != nil {
		return r, nil
	}
	rooms, err := e.roomList(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrRoomNotFound, name)
}

// ActiveRoom returns the joined room called name or nil.
func (e *Engine) ActiveRoom(name string) *core.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.byName(name)
}

func (e *Engine) ActiveRoomNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.names()
}

// ActiveRooms returns the joined rooms in join order.
func (e *Engine) ActiveRooms() []*core.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.snapshot()
}

// FirstRoom is the whisper routing context, nil when no room is joined.
func (e *Engine) FirstRoom() *core.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.first()
}

// Join enters room, loads its roster and admins and pings presence.
// Joining an already joined room is a no-op.
func (e *Engine) Join(ctx context.Context, room *core.Room) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rooms.byID(room.ID) != nil {
		return nil
	}
	log := e.log.With().Str("room", room.Name()).Logger()
	log.Info().Msg("entering room")

	if err := e.backend.Join(ctx, room.Name()); err != nil {
		return fmt.Errorf("join %s: %w", room.Name(), err)
	}

	users, err := e.backend.RoomUsers(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("users of %s: %w", room.Name(), err)
	}
	for _, u := range users {
		e.users.Put(u)
		room.AddMember(u)
	}

	admins, err := e.backend.RoomAdmins(ctx, room.ID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load room admins")
	} else {
		room.SetAdmins(admins)
	}

	room.Touch(e.opts.Now(), "")
	e.rooms.add(room)

	if err := e.pingPresence(ctx); err != nil {
		log.Warn().Err(err).Msg("presence ping after join failed")
	}
	return nil
}

// Part leaves room. The backend confirms by answering with a logged-in page.
func (e *Engine) Part(ctx context.Context, room *core.Room) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info().Str("room", room.Name()).Msg("leaving room")
	page, err := e.backend.Part(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("part %s: %w", room.Name(), err)
	}
	if !isLoggedPage(page) {
		return &core.RoomError{Room: room.Name(), Reason: "Failed to leave the room"}
	}
	e.rooms.remove(room.ID)
	return nil
}

// RefreshRoom reloads description, operator, roster and admins of room.
func (e *Engine) RefreshRoom(ctx context.Context, room *core.Room) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshRoom(ctx, room)
}

func (e *Engine) refreshRoom(ctx context.Context, room *core.Room) error {
	info, err := e.backend.RoomInfo(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("info of %s: %w", room.Name(), err)
	}
	room.ApplyInfo(info)

	users, err := e.backend.RoomUsers(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("users of %s: %w", room.Name(), err)
	}
	for _, u := range users {
		e.users.Put(u)
		room.AddMember(u)
	}

	admins, err := e.backend.RoomAdmins(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("admins of %s: %w", room.Name(), err)
	}
	room.SetAdmins(admins)
	return nil
}
