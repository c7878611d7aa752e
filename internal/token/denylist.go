package token

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// MemoryDenylist keeps revoked token ids in process memory.
type MemoryDenylist struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

// NewMemoryDenylist returns an empty in-memory denylist.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{now: now, revoked: make(map[string]time.Time)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = expiresAt
	d.pruneLocked()
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expiresAt, ok := d.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return d.now().Before(expiresAt), nil
}

func (d *MemoryDenylist) pruneLocked() {
	now := d.now()
	for id, expiresAt := range d.revoked {
		if !now.Before(expiresAt) {
			delete(d.revoked, id)
		}
	}
}

// RedisDenylist stores revoked token ids as expiring Redis keys.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisDenylist wraps client. Keys are written as prefix + token id.
func NewRedisDenylist(client redis.UniversalClient, prefix string, now func() time.Time) *RedisDenylist {
	if prefix == "" {
		prefix = "taskboard:revoked:"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisDenylist{client: client, prefix: prefix, now: now}
}

func (d *RedisDenylist) key(tokenID string) string {
	return d.prefix + tokenID
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(tokenID), "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
