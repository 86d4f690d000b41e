package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTTL is how long a lock lives when the caller does not pass a TTL.
const DefaultTTL = 5 * time.Minute

// Sentinel errors returned by manager operations.
var (
	// ErrLockConflict is returned when a live lock on the file is held by another owner.
	// The concrete error is a *ConflictError describing the holder.
	ErrLockConflict = errors.New("file locked by another owner")

	// ErrNotOwner is returned when an owner tries to release or renew a lock it does not hold.
	ErrNotOwner = errors.New("owner does not hold this lock")

	// ErrNotFound is returned when renewing a lock that does not exist.
	ErrNotFound = errors.New("lock not found")

	// ErrInvalidLock is returned for empty file paths or owners.
	ErrInvalidLock = errors.New("invalid lock request")
)

// ConflictError reports the live lock that blocked an acquisition.
type ConflictError struct {
	FilePath  string
	Owner     string
	ExpiresAt int64 // milliseconds since epoch
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s held by %s until %s",
		ErrLockConflict, e.FilePath, e.Owner, e.Until().Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrLockConflict) match a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrLockConflict
}

// Until returns the holder's expiry as a time.Time.
func (e *ConflictError) Until() time.Time {
	return time.UnixMilli(e.ExpiresAt)
}

// FileLock is one exclusive claim on one file. Timestamps are milliseconds
// since the Unix epoch so the persisted record stays numeric.
type FileLock struct {
	FilePath   string `json:"filePath"`
	Owner      string `json:"owner"`
	AcquiredAt int64  `json:"acquiredAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// Expired reports whether the lock is abandoned at now. A lock whose
// expiry equals now is already expired.
func (l FileLock) Expired(now time.Time) bool {
	return l.ExpiresAt <= now.UnixMilli()
}

// Remaining returns how long the lock stays live after now, or zero.
func (l FileLock) Remaining(now time.Time) time.Duration {
	d := time.Duration(l.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// AcquiredTime returns AcquiredAt as a time.Time.
func (l FileLock) AcquiredTime() time.Time { return time.UnixMilli(l.AcquiredAt) }

// ExpiresTime returns ExpiresAt as a time.Time.
func (l FileLock) ExpiresTime() time.Time { return time.UnixMilli(l.ExpiresAt) }

// refresh restamps the lock as held from now for ttl.
func (l *FileLock) refresh(now time.Time, ttl time.Duration) {
	l.AcquiredAt = now.UnixMilli()
	l.ExpiresAt = now.Add(ttl).UnixMilli()
}

// newFileLock builds a lock held by owner from now for ttl.
func newFileLock(filePath, owner string, now time.Time, ttl time.Duration) FileLock {
	l := FileLock{FilePath: filePath, Owner: owner}
	l.refresh(now, ttl)
	return l
}

// Registry is the persisted lock state for one working tree.
type Registry struct {
	Locks       []FileLock `json:"locks"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// NewRegistry returns an empty registry stamped with now.
func NewRegistry(now time.Time) *Registry {
	return &Registry{
		Locks:       []FileLock{},
		LastUpdated: now.UTC(),
	}
}

// EncodeRegistry serializes a registry in its persisted JSON shape.
func EncodeRegistry(reg *Registry) ([]byte, error) {
	if reg.Locks == nil {
		reg.Locks = []FileLock{}
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	return data, nil
}

// DecodeRegistry parses a persisted registry. A record with no locks decodes
// to an empty, non-nil lock slice. Entries sharing a file path collapse to
// the one expiring last, kept at the position of the first.
func DecodeRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	reg.Locks = dedupeLocks(reg.Locks)
	return &reg, nil
}

func dedupeLocks(locks []FileLock) []FileLock {
	out := make([]FileLock, 0, len(locks))
	seen := make(map[string]int, len(locks))
	for _, l := range locks {
		if i, ok := seen[l.FilePath]; ok {
			if l.ExpiresAt > out[i].ExpiresAt {
				out[i] = l
			}
			continue
		}
		seen[l.FilePath] = len(out)
		out = append(out, l)
	}
	return out
}

// CleanPath canonicalizes a file path for use as a lock key.
func CleanPath(filePath string) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", fmt.Errorf("%w: empty file path", ErrInvalidLock)
	}
	return filepath.ToSlash(filepath.Clean(filePath)), nil
}

// Option configures a Manager.
type Option func(*Manager)
