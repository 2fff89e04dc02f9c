package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meemee/studio/backoff"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/job"
)

// Compile-time interface checks.
var (
	_ job.Store    = (*Store)(nil)
	_ errlog.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxTxRetries bounds how often a contended job update is retried.
func WithMaxTxRetries(n int) Option {
	return func(s *Store) { s.maxTxRetries = n }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client       redis.UniversalClient
	logger       *slog.Logger
	maxTxRetries int
	txBackoff    backoff.Strategy
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:       client,
		logger:       slog.Default(),
		maxTxRetries: 10,
		txBackoff:    backoff.NewExponentialWithJitter(5*time.Millisecond, 200*time.Millisecond),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
