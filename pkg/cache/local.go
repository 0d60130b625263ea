package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localItem struct {
	data      []byte
	expiresAt time.Time
}

// localCache is an in-process LRU used when Redis is not configured. Values
// are stored JSON encoded so Get behaves like the Redis implementation.
type localCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, localItem]
	now func() time.Time
}

// NewLocalService creates an in-process cache holding at most size entries
func NewLocalService(size int) (Service, error) {
	l, err := lru.New[string, localItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &localCache{lru: l, now: time.Now}, nil
}

func (c *localCache) IsAvailable() bool { return true }

func (c *localCache) Ping(context.Context) error { return nil }

func (c *localCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	item, ok := c.live(key)
	c.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (c *localCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lru.Add(key, localItem{data: data, expiresAt: c.expiry(ttl)})
	c.mu.Unlock()
	return nil
}

func (c *localCache) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.lru.Add(key, localItem{data: data, expiresAt: c.expiry(ttl)})
	return true, nil
}

func (c *localCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		c.lru.Remove(k)
	}
	c.mu.Unlock()
	return nil
}

func (c *localCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	_, ok := c.live(key)
	c.mu.Unlock()
	return ok, nil
}

// live returns the unexpired item for key; caller holds mu
func (c *localCache) live(key string) (localItem, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		return localItem{}, false
	}
	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		c.lru.Remove(key)
		return localItem{}, false
	}
	return item, true
}

func (c *localCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}
