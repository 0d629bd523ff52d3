package queue

import (
	"context"
	"time"
)

// SortedSetStore is the ordered-set storage the queue runs on. All mutation
// goes through atomic single-key operations; the queue never does
// read-modify-write against the backend.
type SortedSetStore interface {
	AddScored(ctx context.Context, set string, score float64, member string) error
	// RemoveByValue removes an exact member; reports whether it existed.
	RemoveByValue(ctx context.Context, set, member string) (bool, error)
	// RangeByScore returns members with min <= score <= max, lowest first,
	// up to limit (limit <= 0 means no bound).
	RangeByScore(ctx context.Context, set string, min, max float64, limit int64) ([]string, error)
	Count(ctx context.Context, set string) (int64, error)
	// Clear drains the set, returning the number of members removed.
	Clear(ctx context.Context, set string) (int64, error)
}

// Locker provides per-job distributed locks. Acquire returns an opaque token
// ("" when the lock is held elsewhere); Release is a no-op unless the token
// still owns the lock, so an expired lock is never released out from under a
// newer owner.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}
