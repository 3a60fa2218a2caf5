package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/vovakirdan/chatgate/internal/core"
)

const notSentReason = "Your message probably wasn't sent! If you are an anonymous user, you can send only one message per 10 seconds!"

// Say sends text to room.
func (e *Engine) Say(ctx context.Context, room *core.Room, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.say(ctx, room, text, "")
}

// Whisper sends text privately to nick, routed through the first joined room.
func (e *Engine) Whisper(ctx context.Context, nick, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	room := e.rooms.first()
	if room == nil {
		return &core.MessageError{Reason: "Failed to create a whisper message! There are no active rooms. Join a room first!"}
	}
	return e.say(ctx, room, text, nick)
}

// Admin grants half-operator rights in room to nick.
func (e *Engine) Admin(ctx context.Context, room *core.Room, nick string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.say(ctx, room, "/admin "+nick, "")
}

// Kick removes user from room.
func (e *Engine) Kick(ctx context.Context, room *core.Room, user, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.say(ctx, room, fmt.Sprintf("/kick %s %s", user, reason), "")
}

// say sends with the room's cursor. An unchanged cursor in the response means
// the backend dropped the message; the room is then left untouched.
func (e *Engine) say(ctx context.Context, room *core.Room, text, toNick string) error {
	payload := text
	if toNick != "" {
		payload = fmt.Sprintf("/w \"%s\" %s", toNick, text)
	}

	prev := room.Cursor()
	e.log.Debug().Str("room", room.Name()).Str("to", toNick).Msg("sending message")

	resp, err := e.backend.SendMessage(ctx, room.ID, prev, payload, 0)
	if err != nil {
		e.opts.Metrics.MessageSent(err)
		return fmt.Errorf("send to %s: %w", room.Name(), err)
	}
	if resp.OK && resp.Cursor == prev {
		err := &core.MessageError{Reason: notSentReason}
		e.opts.Metrics.MessageSent(err)
		return err
	}
	if resp.OK {
		room.Touch(e.opts.Now(), text)
	}

	err = e.processRoomText(ctx, room, resp)
	e.opts.Metrics.MessageSent(err)
	return err
}

// processRoomText applies the cursor of resp to room before replaying its
// events in order.
func (e *Engine) processRoomText(ctx context.Context, room *core.Room, resp *core.RoomText) error {
	if !resp.OK {
		if resp.StatusMessage == core.StatusUserNotInRoom {
			e.log.Warn().Str("room", room.Name()).Msg("membership revoked by backend")
			e.rooms.remove(room.ID)
			e.opts.Metrics.Kick()
			e.bridge.Kicked(room)
			return fmt.Errorf("%s: %w", room.Name(), core.ErrMembershipRevoked)
		}
		return fmt.Errorf("room text of %s: %s", room.Name(), resp.StatusMessage)
	}

	room.SetCursor(resp.Cursor)
	for i := range resp.Events {
		e.classify(ctx, room, &resp.Events[i])
	}
	return nil
}

// classify dispatches a single backend event. It never fails; lookups that
// go wrong are logged or reported as system messages.
func (e *Engine) classify(ctx context.Context, room *core.Room, ev *core.RoomEvent) {
	e.opts.Plugins.ApplyIncoming(ev)
	e.opts.Metrics.Event(ev.Kind)
	log := e.log.With().Str("room", room.Name()).Str("kind", ev.Kind).Logger()

	switch ev.Kind {
	case core.EventEnter:
		if ev.User == nil {
			log.Warn().Msg("enter event without user")
			return
		}
		e.users.Put(ev.User)
		if room.AddMember(ev.User) {
			e.bridge.UserJoined(room, ev.User)
		}

	case core.EventLeave, core.EventAutoLeave:
		if u := room.RemoveMember(ev.UserID); u != nil {
			e.bridge.UserLeft(room, u)
		}

	case core.EventCli:
		e.bridge.SystemMessage(room, ev.Text)

	case core.EventUser, core.EventFriend, core.EventUserSetting:
		if ev.User != nil {
			e.users.Put(ev.User)
		}

	case core.EventAdmin:
		u := e.users.ByNick(ev.Nick)
		if u == nil {
			log.Debug().Str("nick", ev.Nick).Msg("admin event for unknown nick")
			return
		}
		if err := e.refreshRoom(ctx, room); err != nil {
			log.Warn().Err(err).Msg("failed to refresh room after admin change")
			return
		}
		if room.OperatorID() == u.ID {
			e.bridge.UserMode(room, u, "+h")
		}

	case "":
		e.chatMessage(ctx, room, ev)

	default:
		log.Warn().Int("uid", ev.UserID).Str("text", ev.Text).Msg("unknown event kind")
	}
}

func (e *Engine) chatMessage(ctx context.Context, room *core.Room, ev *core.RoomEvent) {
	u, err := e.users.ByID(ctx, ev.UserID)
	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn().Err(err).Int("uid", ev.UserID).Msg("sender lookup failed")
	}
	if u == nil {
		warn := fmt.Sprintf("Unknown UID: %d -> %s", ev.UserID, ev.Text)
		e.log.Warn().Str("room", room.Name()).Msg(warn)
		e.bridge.SystemMessage(room, "WARNING: "+warn)
		return
	}

	text := html.UnescapeString(ev.Text)
	if ev.IsWhisper() {
		// The same whisper shows up in every joined room.
		if ev.To == 0 && e.rooms.isFirst(room) {
			e.bridge.PrivateMessage(u, text, time.Time{})
		}
		return
	}
	e.bridge.RoomMessage(room, u, text)
}
