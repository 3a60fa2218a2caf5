package engine

import (
	"context"
	"fmt"

	"github.com/vovakirdan/chatgate/internal/core"
)

// UserProfile resolves nick among the members of joined rooms, then in the
// identity cache, and merges the user detail with the profile page.
func (e *Engine) UserProfile(ctx context.Context, nick string) (*core.UserProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := e.rooms.memberByNick(nick)
	if u == nil {
		u = e.users.ByNick(nick)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUserNotFound, nick)
	}

	detail, err := e.backend.GetUserByID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	profile, err := e.backend.GetUserProfile(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", u.ID, err)
	}
	return &core.UserProfile{User: detail, Profile: profile}, nil
}

// UserByID resolves an identity through the cache.
func (e *Engine) UserByID(ctx context.Context, id int) (*core.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.users.ByID(ctx, id)
}
