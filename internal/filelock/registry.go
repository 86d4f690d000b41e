package filelock

import (
	"sort"
	"time"
)

// Sweep drops every lock that is expired at now and returns the dropped
// locks. Eviction is unconditional; the previous owners are not consulted.
func (r *Registry) Sweep(now time.Time) []FileLock {
	var expired []FileLock
	kept := r.Locks[:0]
	for _, l := range r.Locks {
		if l.Expired(now) {
			expired = append(expired, l)
			continue
		}
		kept = append(kept, l)
	}
	// Zero the tail so dropped entries do not linger in the backing array.
	for i := len(kept); i < len(r.Locks); i++ {
		r.Locks[i] = FileLock{}
	}
	r.Locks = kept
	if r.Locks == nil {
		r.Locks = []FileLock{}
	}
	return expired
}

// Live returns a copy of the locks that are not expired at now, sorted by
// path. It does not modify the registry.
func (r *Registry) Live(now time.Time) []FileLock {
	live := make([]FileLock, 0, len(r.Locks))
	for _, l := range r.Locks {
		if !l.Expired(now) {
			live = append(live, l)
		}
	}
	sortLocks(live)
	return live
}

// indexOf returns the index of the lock on filePath, or -1.
// Callers sweep first, so any match is live.
func (r *Registry) indexOf(filePath string) int {
	for i, l := range r.Locks {
		if l.FilePath == filePath {
			return i
		}
	}
	return -1
}

// removeAt deletes the lock at index i, preserving order.
func (r *Registry) removeAt(i int) FileLock {
	l := r.Locks[i]
	r.Locks = append(r.Locks[:i], r.Locks[i+1:]...)
	return l
}

// touch records a mutation at now.
func (r *Registry) touch(now time.Time) {
	r.LastUpdated = now.UTC()
}

func sortLocks(locks []FileLock) {
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].FilePath < locks[j].FilePath
	})
}
