package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vovakirdan/chatgate/internal/core"
)

// Fetcher resolves a user identity remotely. It returns core.ErrUserNotFound
// when the backend does not know the id.
type Fetcher interface {
	GetUserByID(ctx context.Context, id int) (*core.User, error)
}

// Users is an id-keyed identity cache owned by a single engine.
// Entries live as long as the cache; there is no eviction.
type Users struct {
	fetcher Fetcher

	mu    sync.RWMutex
	byID  map[int]*core.User
	order []int
}

// NewUsers creates an empty cache backed by fetcher.
func NewUsers(fetcher Fetcher) *Users {
	return &Users{
		fetcher: fetcher,
		byID:    make(map[int]*core.User),
	}
}

// Put stores u unless a user with the same id is already cached.
func (c *Users) Put(u *core.User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[u.ID]; ok {
		return
	}
	c.byID[u.ID] = u
	c.order = append(c.order, u.ID)
}

// ByNick scans cached entries only.
func (c *Users) ByNick(nick string) *core.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if u := c.byID[id]; u.Nick == nick {
			return u
		}
	}
	return nil
}

// ByID serves from the cache and falls back to the backend on a miss.
// A remote "not found" yields (nil, nil) and is not cached.
func (c *Users) ByID(ctx context.Context, id int) (*core.User, error) {
	c.mu.RLock()
	u, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}

	u, err := c.fetcher.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	if u == nil {
		return nil, nil
	}
	c.Put(u)
	return c.cached(u.ID), nil
}

// Len returns the number of cached users.
func (c *Users) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Users) cached(id int) *core.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}
