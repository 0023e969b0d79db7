package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Locker grants exclusive ownership of the machine to one process,
// so two servers sharing a Redis instance never drive the same board.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		retry:  100 * time.Millisecond,
	}
}

// Lock acquires key using SET NX PX, polling until ctx is done.
// The returned UnlockFunc only deletes the key if this holder still owns it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w %s: %v", ErrLockAcquire, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, releaseScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w %s: %v", ErrLockAcquire, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Hold acquires key and keeps extending it every ttl/2 until the returned UnlockFunc is called.
// lost is closed if the lock could not be extended.
func (l *Locker) Hold(ctx context.Context, key string, ttl time.Duration) (unlock UnlockFunc, lost <-chan struct{}, err error) {
	release, err := l.Lock(ctx, key, ttl)
	if err != nil {
		return nil, nil, err
	}
	lockKey := l.prefix + "lock:" + key
	token, err := l.client.Get(ctx, lockKey).Result()
	if err != nil {
		_ = release(ctx)
		return nil, nil, fmt.Errorf("redis error reading lock: %w", err)
	}

	stop := make(chan struct{})
	lostCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := l.client.Eval(context.Background(), extendScript, []string{lockKey}, token, ttl.Milliseconds()).Int()
				if err != nil || n == 0 {
					close(lostCh)
					return
				}
			}
		}
	}()

	return func(ctx context.Context) error {
		close(stop)
		<-done
		return release(ctx)
	}, lostCh, nil
}
