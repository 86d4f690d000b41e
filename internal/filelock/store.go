package filelock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
)

// Store durably maps a scope to its Registry. Both calls move the whole
// record; there is no partial update and no synchronization between a Load
// and the following Save, so concurrent writers race and the last Save wins.
type Store interface {
	// Load returns the registry stored for scope, or def when nothing is stored.
	Load(ctx context.Context, scope string, def *Registry) (*Registry, error)

	// Save replaces the registry stored for scope.
	Save(ctx context.Context, scope string, reg *Registry) error
}

// UpdateFunc mutates a loaded registry and reports whether it must be saved.
type UpdateFunc func(reg *Registry) (bool, error)

// AtomicStore is implemented by stores that can run a load–modify–save cycle
// without another writer interleaving. The Manager only uses it when built
// with WithAtomicUpdates.
type AtomicStore interface {
	Store

	// Update loads the registry for scope (def when absent), calls fn, and
	// saves the result when fn returns true. No other Update on the same scope
	// may commit in between.
	Update(ctx context.Context, scope string, def *Registry, fn UpdateFunc) error
}

// ScopeKey derives a stable storage key for a working-tree root: the base
// name for readability plus a short hash of the cleaned path.
func ScopeKey(scope string) string {
	cleaned := filepath.ToSlash(filepath.Clean(scope))
	sum := sha256.Sum256([]byte(cleaned))
	base := strings.Trim(filepath.Base(cleaned), "./")
	if base == "" {
		base = "root"
	}
	return base + "-" + hex.EncodeToString(sum[:8])
}

// MemoryStore keeps registries in process memory. Records are stored in
// encoded form so callers never share a Registry with the store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, scope string, def *Registry) (*Registry, error) {
	s.mu.Lock()
	data, ok := s.records[scope]
	s.mu.Unlock()
	if !ok {
		return def, nil
	}
	return DecodeRegistry(data)
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, scope string, reg *Registry) error {
	data, err := EncodeRegistry(reg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[scope] = data
	s.mu.Unlock()
	return nil
}

// Update implements AtomicStore by holding the store mutex for the whole cycle.
func (s *MemoryStore) Update(_ context.Context, scope string, def *Registry, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := def
	if data, ok := s.records[scope]; ok {
		var err error
		if reg, err = DecodeRegistry(data); err != nil {
			return err
		}
	}
	changed, err := fn(reg)
	if err != nil || !changed {
		return err
	}
	data, err := EncodeRegistry(reg)
	if err != nil {
		return err
	}
	s.records[scope] = data
	return nil
}
