package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/cardsort/pkg/adapters/redis"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCounterStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunCounterStoreContract(t, redis.NewFromClient(client))
}

func TestCounterStore_Keys(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("bench:"))

	require.NoError(t, store.Save(context.Background(), domain.Counters{Lifetime: 7, Monthly: 2, Failed: 1}))

	v, err := mr.Get("bench:lifetime")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
	v, err = mr.Get("bench:failed")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestCounterStore_InvalidValue(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"monthly", "many"))

	_, err := redis.NewFromClient(client).Load(context.Background())
	assert.ErrorContains(t, err, "monthly")
}

func TestCounterStore_New(t *testing.T) {
	mr, _ := newClient(t)

	store, err := redis.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()
	assert.NotNil(t, store.Client())

	_, err = redis.New(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestLocker(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	locker := redis.NewLocker(client, "test:")

	unlock, err := locker.Lock(ctx, "board", time.Minute)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "board", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))

	unlock, err = locker.Lock(ctx, "board", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_Hold(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	locker := redis.NewLocker(client, "test:")

	unlock, lost, err := locker.Hold(ctx, "board", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:board"))

	// Someone else deleting the key makes the next extension fail.
	mr.Del("test:lock:board")
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("expected lock loss to be reported")
	}
	require.NoError(t, unlock(ctx))
}
