package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClaimPrefix namespaces the shared claim keys.
const DefaultClaimPrefix = "aimarket:notified:"

// Claims records which listings were already mailed.
// Claim reports whether the caller won id for ttl; Release hands a claim
// back after a failed send so a redelivery is mailed again.
type Claims interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

// localClaims is the single-process Claims.
type localClaims struct {
	mu   sync.Mutex
	seen map[string]time.Time // listing id -> claimed at
	now  func() time.Time
}

func newLocalClaims(now func() time.Time) *localClaims {
	return &localClaims{seen: make(map[string]time.Time), now: now}
}

func (c *localClaims) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) >= ttl {
			delete(c.seen, k)
		}
	}
	if id == "" {
		return true, nil
	}
	if _, dup := c.seen[id]; dup {
		return false, nil
	}
	c.seen[id] = now
	return true, nil
}

func (c *localClaims) Release(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, id)
	return nil
}

// RedisClaims shares claims between every replica reading the same feed,
// so one insert is mailed once however many replicas receive it.
type RedisClaims struct {
	client *redis.Client
	prefix string
}

// NewRedisClaims uses DefaultClaimPrefix when prefix is empty.
func NewRedisClaims(client *redis.Client, prefix string) *RedisClaims {
	if prefix == "" {
		prefix = DefaultClaimPrefix
	}
	return &RedisClaims{client: client, prefix: prefix}
}

// Claim sets prefix+id with NX and a ttl expiry.
func (c *RedisClaims) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return true, nil
	}
	return c.client.SetNX(ctx, c.prefix+id, 1, ttl).Result()
}

func (c *RedisClaims) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+id).Err()
}
