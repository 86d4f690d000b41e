// Package redisstore persists lock registries in Redis, one string key per
// scope holding the encoded registry.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Iron-Ham/ownership/internal/filelock"
)

const (
	// DefaultKeyPrefix namespaces registry keys.
	DefaultKeyPrefix = "ownership:"

	// DefaultMutexTTL bounds how long one Update may hold the scope mutex.
	DefaultMutexTTL = 5 * time.Second
)

// ErrMutexNotObtained is returned by Update when the scope mutex stays held
// by another writer until the context or retry budget runs out.
var ErrMutexNotObtained = errors.New("registry mutex not obtained")

// Store keeps each scope's registry at {prefix}{scope key}. Update guards
// the load–modify–save cycle with a redislock mutex at {key}:mutex; plain
// Load and Save take no lock.
type Store struct {
	client    redis.UniversalClient
	locker    *redislock.Client
	keyPrefix string
	mutexTTL  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithMutexTTL sets the expiry of the scope mutex taken by Update.
func WithMutexTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.mutexTTL = d
		}
	}
}

// New creates a Store on client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		locker:    redislock.New(client),
		keyPrefix: DefaultKeyPrefix,
		mutexTTL:  DefaultMutexTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key used for scope.
func (s *Store) Key(scope string) string {
	return s.keyPrefix + filelock.ScopeKey(scope)
}

// Load implements filelock.Store.
func (s *Store) Load(ctx context.Context, scope string, def *filelock.Registry) (*filelock.Registry, error) {
	data, err := s.client.Get(ctx, s.Key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	return filelock.DecodeRegistry(data)
}

// Save implements filelock.Store.
func (s *Store) Save(ctx context.Context, scope string, reg *filelock.Registry) error {
	data, err := filelock.EncodeRegistry(reg)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(scope), data, 0).Err(); err != nil {
		return fmt.Errorf("set registry: %w", err)
	}
	return nil
}

// Update implements filelock.AtomicStore.
func (s *Store) Update(ctx context.Context, scope string, def *filelock.Registry, fn filelock.UpdateFunc) error {
	key := s.Key(scope)

	obtainCtx, cancel := context.WithTimeout(ctx, s.mutexTTL)
	defer cancel()

	mutex, err := s.locker.Obtain(obtainCtx, key+":mutex", s.mutexTTL, &redislock.Options{
		Token:         uuid.NewString(),
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || (ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)) {
			return fmt.Errorf("%w: %s", ErrMutexNotObtained, key)
		}
		return fmt.Errorf("obtain registry mutex: %w", err)
	}
	defer mutex.Release(context.WithoutCancel(ctx)) //nolint:errcheck // Mutex expires on its own

	reg, err := s.Load(ctx, scope, def)
	if err != nil {
		return err
	}
	changed, err := fn(reg)
	if err != nil || !changed {
		return err
	}
	return s.Save(ctx, scope, reg)
}
