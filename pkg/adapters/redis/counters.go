// Package redis stores sorter counters in Redis and guards the machine with a Redis lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/cardsort/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "cardsort:"

// CounterStore implements ports.CounterStore with one Redis key per counter.
type CounterStore struct {
	client *backend.Client
	prefix string
}

// Option configures the CounterStore.
type Option func(*CounterStore)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *CounterStore) {
		s.prefix = prefix
	}
}

// NewFromClient creates a CounterStore on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *CounterStore {
	s := &CounterStore{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New connects to addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*CounterStore, error) {
	client := backend.NewClient(&backend.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewFromClient(client, opts...), nil
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *CounterStore) Client() *backend.Client {
	return s.client
}

// Close closes the underlying client.
func (s *CounterStore) Close() error {
	return s.client.Close()
}

func (s *CounterStore) keys() [3]string {
	return [3]string{s.prefix + "lifetime", s.prefix + "monthly", s.prefix + "failed"}
}

// Load reads the three counters. Missing keys count as zero.
func (s *CounterStore) Load(ctx context.Context) (domain.Counters, error) {
	keys := s.keys()
	vals, err := s.client.MGet(ctx, keys[:]...).Result()
	if err != nil {
		return domain.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}

	var out [3]int64
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return domain.Counters{}, fmt.Errorf("unexpected value type %T for %s", v, keys[i])
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return domain.Counters{}, fmt.Errorf("invalid counter %s: %w", keys[i], err)
		}
		out[i] = n
	}
	return domain.Counters{Lifetime: out[0], Monthly: out[1], Failed: out[2]}, nil
}

// Save writes the three counters in one transaction.
func (s *CounterStore) Save(ctx context.Context, c domain.Counters) error {
	keys := s.keys()
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, keys[0], c.Lifetime, 0)
		pipe.Set(ctx, keys[1], c.Monthly, 0)
		pipe.Set(ctx, keys[2], c.Failed, 0)
		return nil
	})
	if err != nil && !errors.Is(err, backend.Nil) {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}
