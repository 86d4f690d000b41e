// Package filestore persists lock registries as JSON files, one file per
// scope, under a root directory shared by every agent on the machine.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/ownership/internal/filelock"
)

// RegistryFileName is the name of the registry file inside a scope directory.
const RegistryFileName = "ownership.json"

// DefaultLockTimeout bounds how long Update waits for the scope's lock file.
const DefaultLockTimeout = 5 * time.Second

// ErrLockTimeout is returned by Update when another process holds the scope's
// lock file for longer than the configured timeout.
var ErrLockTimeout = errors.New("timed out waiting for registry file lock")

// Store keeps each scope's registry in {root}/{scope key}/ownership.json.
// Save writes through a temp file and rename, so a reader never sees a
// partial record. Update additionally serializes writers with an advisory
// lock on a sibling ".lock" file.
type Store struct {
	root        string
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long Update waits for the scope's lock file.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New creates a Store rooted at root. The directory is created lazily.
func New(root string, opts ...Option) *Store {
	s := &Store{root: root, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the registry file used for scope.
func (s *Store) Path(scope string) string {
	return filepath.Join(s.root, filelock.ScopeKey(scope), RegistryFileName)
}

// Load implements filelock.Store.
func (s *Store) Load(ctx context.Context, scope string, def *filelock.Registry) (*filelock.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(s.Path(scope), def)
}

// Save implements filelock.Store.
func (s *Store) Save(ctx context.Context, scope string, reg *filelock.Registry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(s.Path(scope), reg)
}

// Update implements filelock.AtomicStore. The load–modify–save cycle runs
// while holding an exclusive flock on the registry's ".lock" file.
func (s *Store) Update(ctx context.Context, scope string, def *filelock.Registry, fn filelock.UpdateFunc) error {
	path := s.Path(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		return fmt.Errorf("lock registry %q: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockTimeout, path)
	}
	defer fl.Unlock() //nolint:errcheck // Closing the descriptor releases the lock regardless

	reg, err := s.read(path, def)
	if err != nil {
		return err
	}
	changed, err := fn(reg)
	if err != nil || !changed {
		return err
	}
	return s.write(path, reg)
}

func (s *Store) read(path string, def *filelock.Registry) (*filelock.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return filelock.DecodeRegistry(data)
}

// write atomically replaces the registry file.
func (s *Store) write(path string, reg *filelock.Registry) error {
	data, err := filelock.EncodeRegistry(reg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ownership-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck // Best effort cleanup
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()        //nolint:errcheck // Best effort cleanup
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("rename registry: %w", err)
	}
	return nil
}
