package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vovakirdan/chatgate/internal/core"
)

// PingPresence keeps the session and every joined room marked as active.
func (e *Engine) PingPresence(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pingPresence(ctx)
}

func (e *Engine) pingPresence(ctx context.Context) error {
	if !e.loggedIn {
		return nil
	}
	if err := e.backend.PingHeader(ctx); err != nil {
		return fmt.Errorf("ping header: %w", err)
	}
	var errs []error
	for _, r := range e.rooms.snapshot() {
		if err := e.backend.PingRoomUserTime(ctx, r.ID); err != nil {
			errs = append(errs, fmt.Errorf("ping %s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// PollMessages fetches new text of every joined room and then runs the idler.
// A failing room does not stop the others.
func (e *Engine) PollMessages(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, room := range e.rooms.snapshot() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Debug().Str("room", room.Name()).Msg("checking for new messages")

		resp, err := e.backend.RoomText(ctx, room.ID, room.Cursor())
		if err != nil {
			errs = append(errs, fmt.Errorf("room text of %s: %w", room.Name(), err))
			continue
		}
		if err := e.processRoomText(ctx, room, resp); err != nil {
			errs = append(errs, err)
			if e.rooms.byID(room.ID) == nil {
				continue
			}
		}
		if err := e.idle(ctx, room); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// idle sends a filler message when room has been quiet longer than MaxIdle.
func (e *Engine) idle(ctx context.Context, room *core.Room) error {
	idler := e.opts.Idler
	if !idler.Enabled || e.opts.Now().Sub(room.LastActivity()) <= idler.MaxIdle {
		return nil
	}
	msg := e.nextIdleString(room.LastText())
	if err := e.say(ctx, room, msg, ""); err != nil {
		return fmt.Errorf("idler in %s: %w", room.Name(), err)
	}
	e.bridge.SystemMessage(room, "IDLER: "+msg)
	return nil
}

// nextIdleString walks the configured strings from the rotation index and
// returns the first one that differs from last.
func (e *Engine) nextIdleString(last string) string {
	strs := e.opts.Idler.Strings
	n := len(strs)
	if n == 0 {
		return idleFallback
	}
	start := e.idleIndex % n
	for i := 0; i < n; i++ {
		pos := (start + i) % n
		if strs[pos] != last {
			e.idleIndex = (pos + 1) % n
			return strs[pos]
		}
	}
	e.idleIndex = (start + 1) % n
	return idleFallback
}

// CheckStoredMessages delivers offline messages the backend is holding.
// Only the newest pending-count messages are delivered, oldest first.
func (e *Engine) CheckStoredMessages(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loggedIn {
		return nil
	}
	count, err := e.backend.PendingMessageCount(ctx)
	if err != nil {
		return fmt.Errorf("pending message count: %w", err)
	}
	if count <= 0 {
		return nil
	}
	e.log.Debug().Int("count", count).Msg("fetching stored messages")

	senders, err := e.backend.StoredMessageSenders(ctx)
	if err != nil {
		return fmt.Errorf("stored message senders: %w", err)
	}

	var msgs []core.StoredMessage
	for _, s := range senders {
		e.users.Put(s)
		list, err := e.backend.StoredMessages(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("stored messages from %d: %w", s.ID, err)
		}
		for _, m := range list {
			if m.FromSelf {
				continue
			}
			msgs = append(msgs, m)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.After(msgs[j].SentAt) })
	if len(msgs) > count {
		msgs = msgs[:count]
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })

	for _, m := range msgs {
		u, err := e.users.ByID(ctx, m.SenderID)
		if err != nil {
			e.log.Warn().Err(err).Int("uid", m.SenderID).Msg("stored message sender lookup failed")
			continue
		}
		if u == nil {
			continue
		}
		e.bridge.PrivateMessage(u, m.Text, m.SentAt)
	}
	return nil
}
