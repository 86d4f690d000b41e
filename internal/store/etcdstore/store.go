// Package etcdstore persists lock registries in etcd, one key per scope
// holding the encoded registry.
package etcdstore

import (
	"context"
	"errors"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/Iron-Ham/ownership/internal/filelock"
)

const (
	// DefaultKeyPrefix namespaces registry keys.
	DefaultKeyPrefix = "/ownership/"

	// DefaultMaxRetries bounds compare-and-swap attempts in Update.
	DefaultMaxRetries = 8
)

// ErrConflictRetries is returned by Update when every compare-and-swap
// attempt lost to a concurrent writer.
var ErrConflictRetries = errors.New("registry changed concurrently on every attempt")

// Store keeps each scope's registry at {prefix}{scope key}. Update commits
// with a transaction conditioned on the key's mod revision and reruns the
// cycle when another writer got there first.
type Store struct {
	client     *clientv3.Client
	keyPrefix  string
	maxRetries int
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

// WithMaxRetries sets how many times Update attempts its transaction.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a Store on client.
func New(client *clientv3.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		keyPrefix:  DefaultKeyPrefix,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the etcd key used for scope.
func (s *Store) Key(scope string) string {
	return s.keyPrefix + filelock.ScopeKey(scope)
}

// Load implements filelock.Store.
func (s *Store) Load(ctx context.Context, scope string, def *filelock.Registry) (*filelock.Registry, error) {
	reg, _, err := s.get(ctx, s.Key(scope), def)
	return reg, err
}

// Save implements filelock.Store.
func (s *Store) Save(ctx context.Context, scope string, reg *filelock.Registry) error {
	data, err := filelock.EncodeRegistry(reg)
	if err != nil {
		return err
	}
	if _, err := s.client.Put(ctx, s.Key(scope), string(data)); err != nil {
		return fmt.Errorf("put registry: %w", err)
	}
	return nil
}

// Update implements filelock.AtomicStore. fn runs once per attempt, each
// time on a freshly loaded registry.
func (s *Store) Update(ctx context.Context, scope string, def *filelock.Registry, fn filelock.UpdateFunc) error {
	key := s.Key(scope)

	for range s.maxRetries {
		fresh := *def
		fresh.Locks = append([]filelock.FileLock{}, def.Locks...)

		reg, rev, err := s.get(ctx, key, &fresh)
		if err != nil {
			return err
		}
		changed, err := fn(reg)
		if err != nil || !changed {
			return err
		}
		data, err := filelock.EncodeRegistry(reg)
		if err != nil {
			return err
		}

		// A missing key has mod revision 0, so creation is guarded as well.
		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
			Then(clientv3.OpPut(key, string(data))).
			Commit()
		if err != nil {
			return fmt.Errorf("commit registry: %w", err)
		}
		if resp.Succeeded {
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrConflictRetries, key, s.maxRetries)
}

// get loads the registry at key with its mod revision (0 when absent).
func (s *Store) get(ctx context.Context, key string, def *filelock.Registry) (*filelock.Registry, int64, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("get registry: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return def, 0, nil
	}
	kv := resp.Kvs[0]
	reg, err := filelock.DecodeRegistry(kv.Value)
	if err != nil {
		return nil, 0, err
	}
	return reg, kv.ModRevision, nil
}
