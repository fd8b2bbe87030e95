// Package coordination provides Redis-backed mutual exclusion for the
// scheduler, so overlapping instances trigger at most one sync per tick.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock this instance does
// not hold.
var ErrLockNotHeld = errors.New("lock not held")

// unlockScript atomically deletes the lock only when this instance's
// token still owns it, so an expired lock taken over by another
// instance is never released by mistake.
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// TickLock is a best-effort lock around one scheduler tick. An instance
// that fails to acquire it simply skips the tick; the TTL guarantees a
// crashed holder cannot block scheduling forever.
type TickLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewTickLock creates a lock under the given key with a fresh token.
func NewTickLock(client *redis.Client, key string, ttl time.Duration) *TickLock {
	return &TickLock{
		client: client,
		key:    key,
		token:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without blocking. Returns false
// when another instance holds it.
func (l *TickLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock when still owned by this instance.
func (l *TickLock) Release(ctx context.Context) error {
	result, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release tick lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Key returns the lock key.
func (l *TickLock) Key() string {
	return l.key
}
