package session

import (
	"context"
	"time"
)

// KV is the small key-value surface the session stores need. Memory and
// Redis implementations are interchangeable.
type KV interface {
	// Get returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareAndSet replaces old with value as one step, keeping the TTL.
	CompareAndSet(ctx context.Context, key, old, value string) (bool, error)
	Delete(ctx context.Context, keys ...string) error

	// ZAdd adds member scored by at, refreshing the whole set's TTL.
	ZAdd(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error
	// ZSince drops members older than since and returns the rest, oldest first.
	ZSince(ctx context.Context, key string, since time.Time) ([]string, error)
	// ZRem removes members, ignoring ones that are absent.
	ZRem(ctx context.Context, key string, members ...string) error
}

type Error string

func (e Error) Error() string { return string(e) }

const ErrMiss Error = "session: key not found"
