package filelock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/ownership/internal/event"
	"github.com/Iron-Ham/ownership/internal/logging"
)

// Manager evaluates lock operations against a Store. Every operation is one
// load–compute–store cycle; the Manager keeps no lock state of its own, so
// any number of processes may drive the same Store.
type Manager struct {
	store      Store
	defaultTTL time.Duration
	atomic     bool
	bus        *event.Bus
	logger     *logging.Logger
}

// WithDefaultTTL sets the TTL used when an operation is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithAtomicUpdates runs each cycle through AtomicStore.Update when the store
// supports it. Without it, concurrent cycles race and the last Save wins.
func WithAtomicUpdates(enabled bool) Option {
	return func(m *Manager) {
		m.atomic = enabled
	}
}

// WithBus publishes lock lifecycle events to bus after each committed cycle.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithLogger sets the logger used for operation diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		defaultTTL: DefaultTTL,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Atomic reports whether cycles run through AtomicStore.Update.
func (m *Manager) Atomic() bool {
	if !m.atomic {
		return false
	}
	_, ok := m.store.(AtomicStore)
	return ok
}

// Acquire takes or refreshes the lock on filePath for owner.
//
// Locks expired at now are swept first. If another owner holds a live lock
// the call fails with a *ConflictError naming that owner and its expiry.
// If owner already holds the lock it is renewed to now+ttl, so repeated
// acquisition by the holder never fails. A ttl <= 0 uses the default TTL.
func (m *Manager) Acquire(ctx context.Context, scope, filePath, owner string, now time.Time, ttl time.Duration) (FileLock, error) {
	locks, err := m.AcquireMany(ctx, scope, []string{filePath}, owner, now, ttl)
	if err != nil {
		return FileLock{}, err
	}
	return locks[0], nil
}

// AcquireMany acquires every path for owner in a single cycle. If any path
// is held by another owner nothing is stored and the first conflict is
// returned. The result is in the order of the deduplicated input.
func (m *Manager) AcquireMany(ctx context.Context, scope string, filePaths []string, owner string, now time.Time, ttl time.Duration) ([]FileLock, error) {
	if err := validateScopeOwner(scope, owner); err != nil {
		return nil, err
	}
	paths, err := cleanPaths(filePaths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	ttl = m.ttl(ttl)
	log := m.logger.WithScope(scope).WithOwner(owner)

	var (
		acquired []FileLock
		expired  []FileLock
		events   []event.Event
	)
	err = m.update(ctx, scope, now, func(reg *Registry) (bool, error) {
		acquired, events = nil, nil
		expired = reg.Sweep(now)

		for _, p := range paths {
			i := reg.indexOf(p)
			if i < 0 {
				l := newFileLock(p, owner, now, ttl)
				reg.Locks = append(reg.Locks, l)
				acquired = append(acquired, l)
				events = append(events, event.NewLockAcquiredEvent(scope, p, owner, l.ExpiresTime(), now))
				continue
			}
			held := &reg.Locks[i]
			if held.Owner != owner {
				return false, &ConflictError{FilePath: p, Owner: held.Owner, ExpiresAt: held.ExpiresAt}
			}
			held.refresh(now, ttl)
			acquired = append(acquired, *held)
			events = append(events, event.NewLockRenewedEvent(scope, p, owner, held.ExpiresTime(), now))
		}
		reg.touch(now)
		return true, nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			log.Warn("lock conflict",
				"file", conflict.FilePath,
				"holder", conflict.Owner,
				"expires_at", conflict.Until().UTC().Format(time.RFC3339),
			)
			m.publish(event.NewLockConflictEvent(scope, conflict.FilePath, conflict.Owner, owner, conflict.Until(), now))
			return nil, err
		}
		log.Error("acquire failed", "files", len(paths), "error", err.Error())
		return nil, err
	}

	m.publishExpired(scope, expired, now)
	m.publish(events...)
	for _, l := range acquired {
		log.Info("lock acquired", "file", l.FilePath, "expires_at", l.ExpiresTime().UTC().Format(time.RFC3339))
	}
	return acquired, nil
}

// Release gives up owner's lock on filePath. Releasing a lock that is absent
// or already expired succeeds without writing. Releasing another owner's live
// lock fails with ErrNotOwner and leaves the registry unchanged.
func (m *Manager) Release(ctx context.Context, scope, filePath, owner string, now time.Time) error {
	if err := validateScopeOwner(scope, owner); err != nil {
		return err
	}
	p, err := CleanPath(filePath)
	if err != nil {
		return err
	}
	log := m.logger.WithScope(scope).WithOwner(owner)

	var (
		released *FileLock
		expired  []FileLock
	)
	err = m.update(ctx, scope, now, func(reg *Registry) (bool, error) {
		released = nil
		expired = reg.Sweep(now)

		i := reg.indexOf(p)
		if i < 0 {
			return false, nil
		}
		if holder := reg.Locks[i].Owner; holder != owner {
			return false, fmt.Errorf("%w: %s holds %s", ErrNotOwner, holder, p)
		}
		l := reg.removeAt(i)
		released = &l
		reg.touch(now)
		return true, nil
	})
	if err != nil {
		log.Warn("release refused", "file", p, "error", err.Error())
		return err
	}
	if released == nil {
		log.Debug("release of unheld lock ignored", "file", p)
		return nil
	}

	m.publishExpired(scope, expired, now)
	m.publish(event.NewLockReleasedEvent(scope, p, owner, released.ExpiresTime(), now))
	log.Info("lock released", "file", p)
	return nil
}

// Renew extends owner's live lock on filePath to now+ttl. It fails with
// ErrNotFound when no live lock exists and ErrNotOwner when another owner
// holds it; unlike Acquire it never creates a lock.
func (m *Manager) Renew(ctx context.Context, scope, filePath, owner string, now time.Time, ttl time.Duration) (FileLock, error) {
	if err := validateScopeOwner(scope, owner); err != nil {
		return FileLock{}, err
	}
	p, err := CleanPath(filePath)
	if err != nil {
		return FileLock{}, err
	}
	ttl = m.ttl(ttl)
	log := m.logger.WithScope(scope).WithOwner(owner)

	var (
		renewed FileLock
		expired []FileLock
	)
	err = m.update(ctx, scope, now, func(reg *Registry) (bool, error) {
		expired = reg.Sweep(now)

		i := reg.indexOf(p)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		held := &reg.Locks[i]
		if held.Owner != owner {
			return false, fmt.Errorf("%w: %s holds %s", ErrNotOwner, held.Owner, p)
		}
		held.refresh(now, ttl)
		renewed = *held
		reg.touch(now)
		return true, nil
	})
	if err != nil {
		log.Warn("renew refused", "file", p, "error", err.Error())
		return FileLock{}, err
	}

	m.publishExpired(scope, expired, now)
	m.publish(event.NewLockRenewedEvent(scope, p, owner, renewed.ExpiresTime(), now))
	log.Info("lock renewed", "file", p, "expires_at", renewed.ExpiresTime().UTC().Format(time.RFC3339))
	return renewed, nil
}

// ReleaseAll gives up every live lock held by owner and returns them sorted
// by path. Nothing is written when owner holds no locks.
func (m *Manager) ReleaseAll(ctx context.Context, scope, owner string, now time.Time) ([]FileLock, error) {
	if err := validateScopeOwner(scope, owner); err != nil {
		return nil, err
	}
	log := m.logger.WithScope(scope).WithOwner(owner)

	var released, expired []FileLock
	err := m.update(ctx, scope, now, func(reg *Registry) (bool, error) {
		released = nil
		expired = reg.Sweep(now)

		kept := make([]FileLock, 0, len(reg.Locks))
		for _, l := range reg.Locks {
			if l.Owner == owner {
				released = append(released, l)
				continue
			}
			kept = append(kept, l)
		}
		if len(released) == 0 {
			return false, nil
		}
		reg.Locks = kept
		reg.touch(now)
		return true, nil
	})
	if err != nil {
		log.Error("release all failed", "error", err.Error())
		return nil, err
	}
	if len(released) == 0 {
		return nil, nil
	}

	sortLocks(released)
	m.publishExpired(scope, expired, now)
	for _, l := range released {
		m.publish(event.NewLockReleasedEvent(scope, l.FilePath, owner, l.ExpiresTime(), now))
	}
	log.Info("locks released", "count", len(released))
	return released, nil
}

// List sweeps expired locks, writes the swept registry back, and returns
// the live locks sorted by path. It is not free of side effects: every call
// stores the registry, even when nothing expired.
func (m *Manager) List(ctx context.Context, scope string, now time.Time) ([]FileLock, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, fmt.Errorf("%w: empty scope", ErrInvalidLock)
	}

	var live, expired []FileLock
	err := m.update(ctx, scope, now, func(reg *Registry) (bool, error) {
		expired = reg.Sweep(now)
		if len(expired) > 0 {
			reg.touch(now)
		}
		live = reg.Live(now)
		return true, nil
	})
	if err != nil {
		m.logger.WithScope(scope).Error("list failed", "error", err.Error())
		return nil, err
	}

	m.publishExpired(scope, expired, now)
	return live, nil
}

// Lookup returns the live lock on filePath, if any. It lists the scope and
// so shares List's write-back.
func (m *Manager) Lookup(ctx context.Context, scope, filePath string, now time.Time) (FileLock, bool, error) {
	p, err := CleanPath(filePath)
	if err != nil {
		return FileLock{}, false, err
	}
	locks, err := m.List(ctx, scope, now)
	if err != nil {
		return FileLock{}, false, err
	}
	for _, l := range locks {
		if l.FilePath == p {
			return l, true, nil
		}
	}
	return FileLock{}, false, nil
}

// OwnedBy returns the sorted paths of every live lock held by owner.
func (m *Manager) OwnedBy(ctx context.Context, scope, owner string, now time.Time) ([]string, error) {
	locks, err := m.List(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, l := range locks {
		if l.Owner == owner {
			paths = append(paths, l.FilePath)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// update runs fn inside one load–compute–store cycle. fn may run more than
// once when an atomic store retries, so it must reset anything it captures.
func (m *Manager) update(ctx context.Context, scope string, now time.Time, fn UpdateFunc) error {
	def := NewRegistry(now)

	if m.atomic {
		if as, ok := m.store.(AtomicStore); ok {
			return as.Update(ctx, scope, def, fn)
		}
	}

	reg, err := m.store.Load(ctx, scope, def)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	changed, err := fn(reg)
	if err != nil || !changed {
		return err
	}
	if err := m.store.Save(ctx, scope, reg); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

func (m *Manager) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return m.defaultTTL
	}
	// Timestamps are persisted in milliseconds; keep expiresAt > acquiredAt.
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}

func (m *Manager) publish(events ...event.Event) {
	if m.bus == nil {
		return
	}
	for _, e := range events {
		m.bus.Publish(e)
	}
}

func (m *Manager) publishExpired(scope string, expired []FileLock, now time.Time) {
	if len(expired) == 0 {
		return
	}
	log := m.logger.WithScope(scope)
	for _, l := range expired {
		log.Debug("expired lock swept", "file", l.FilePath, "owner", l.Owner)
		m.publish(event.NewLockExpiredEvent(scope, l.FilePath, l.Owner, l.ExpiresTime(), now))
	}
}

func validateScopeOwner(scope, owner string) error {
	if strings.TrimSpace(scope) == "" {
		return fmt.Errorf("%w: empty scope", ErrInvalidLock)
	}
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidLock)
	}
	return nil
}

// cleanPaths canonicalizes paths and drops duplicates, keeping first occurrence.
func cleanPaths(filePaths []string) ([]string, error) {
	seen := make(map[string]bool, len(filePaths))
	paths := make([]string, 0, len(filePaths))
	for _, fp := range filePaths {
		p, err := CleanPath(fp)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}
