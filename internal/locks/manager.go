// Package locks provides a Redis-backed distributed lock guarding match
// mutation when the service is scaled horizontally (SPEC_FULL.md §5). In
// the default single-process deployment, the DB row lock taken by
// store.LockMatch is already sufficient serialization and this package's
// lock degrades to a no-op (see NoopLocker).
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout     = errors.New("locks: timeout acquiring lock")
	ErrLockNotHeld     = errors.New("locks: lock not held by this instance")
	ErrLockAlreadyHeld = errors.New("locks: lock already held by another instance")
)

const (
	DefaultLockTTL        = 15 * time.Second
	DefaultAcquireTimeout = 5 * time.Second
	DefaultRetryDelay     = 50 * time.Millisecond
)

// Locker is the interface the Match Engine depends on, so tests and the
// single-process default can substitute NoopLocker.
type Locker interface {
	// Acquire blocks (up to the manager's acquire timeout) until key is
	// locked, returning a release function to call when done.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Manager is a Redis SET-NX-based distributed lock, matching the
// teacher's lock manager shape but scoped to match mutation keys
// ("match:<id>") instead of poker table seats.
type Manager struct {
	redis      *redis.Client
	instanceID string
	ttl        time.Duration
	timeout    time.Duration
}

func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redis:      redisClient,
		instanceID: uuid.New().String(),
		ttl:        DefaultLockTTL,
		timeout:    DefaultAcquireTimeout,
	}
}

func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	value := m.instanceID

	deadline := time.Now().Add(m.timeout)
	for {
		ok, err := m.redis.SetNX(ctx, lockKey, value, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("locks: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(DefaultRetryDelay):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Only clear the key if we still own it (best-effort, not a full
		// Lua-script compare-and-delete — acceptable since the TTL bounds
		// the damage of a lost race).
		if v, err := m.redis.Get(releaseCtx, lockKey).Result(); err == nil && v == value {
			m.redis.Del(releaseCtx, lockKey)
		}
	}
	return release, nil
}

// NoopLocker is the zero-dependency Locker used when REDIS_ADDR isn't
// configured: the DB row lock is the sole serialization point.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}
