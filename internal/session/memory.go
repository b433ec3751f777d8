package session

import (
	"context"
	"sync"
	"time"

	"github.com/edubridge/edubridge-backend/internal/models"
)

type memEntry struct {
	user    models.User
	expires time.Time
}

// MemoryCache: кэш сессий в памяти, когда REDIS_ADDR не задан.
type MemoryCache struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Set(_ context.Context, id string, u models.User, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = memEntry{user: u, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, id string) (models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[id]
	if !ok || c.now().After(e.expires) {
		delete(c.m, id)
		return models.User{}, ErrNoSession
	}
	return e.user, nil
}

func (c *MemoryCache) Replace(_ context.Context, id string, u models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[id]
	if !ok || c.now().After(e.expires) {
		return ErrNoSession
	}
	e.user = u
	c.m[id] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}
