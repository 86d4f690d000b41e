package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/ownership/internal/filelock"
)

const scope = "/work/repo"

func TestLoadMissingReturnsDefault(t *testing.T) {
	s := New(t.TempDir())
	def := filelock.NewRegistry(time.UnixMilli(0))

	got, err := s.Load(context.Background(), scope, def)
	require.NoError(t, err)
	assert.Same(t, def, got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	reg := filelock.NewRegistry(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg.Locks = []filelock.FileLock{
		{FilePath: "/src/a.ts", Owner: "A", AcquiredAt: 0, ExpiresAt: 300000},
		{FilePath: "/src/b.ts", Owner: "B", AcquiredAt: 10, ExpiresAt: 300010},
	}
	require.NoError(t, s.Save(ctx, scope, reg))

	got, err := s.Load(ctx, scope, filelock.NewRegistry(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, reg.Locks, got.Locks)
	assert.True(t, reg.LastUpdated.Equal(got.LastUpdated))

	_, err = os.Stat(s.Path(scope))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path(scope)), ".ownership-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files left behind")
}

func TestPathIsPerScope(t *testing.T) {
	s := New("/var/lib/ownership")

	assert.NotEqual(t, s.Path("/work/one"), s.Path("/work/two"))
	assert.Equal(t, RegistryFileName, filepath.Base(s.Path(scope)))
}

func TestLoadCorruptFile(t *testing.T) {
	s := New(t.TempDir())
	path := s.Path(scope)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := s.Load(context.Background(), scope, filelock.NewRegistry(time.Now()))
	require.Error(t, err)
}

func TestUpdateSkipsUnchanged(t *testing.T) {
	s := New(t.TempDir())

	err := s.Update(context.Background(), scope, filelock.NewRegistry(time.Now()), func(*filelock.Registry) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)

	_, err = os.Stat(s.Path(scope))
	assert.True(t, os.IsNotExist(err), "registry written for an unchanged update")
}

func TestUpdateTimesOutWhileLocked(t *testing.T) {
	s := New(t.TempDir(), WithLockTimeout(150*time.Millisecond))
	path := s.Path(scope)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	held := flock.New(path + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock() //nolint:errcheck

	err = s.Update(context.Background(), scope, filelock.NewRegistry(time.Now()), func(*filelock.Registry) (bool, error) {
		t.Error("update ran while the registry was locked")
		return false, nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestManagerWithAtomicUpdates(t *testing.T) {
	s := New(t.TempDir())
	m := filelock.NewManager(s, filelock.WithAtomicUpdates(true))
	require.True(t, m.Atomic())

	ctx := context.Background()
	now := time.UnixMilli(0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, owner := range []string{"a", "b", "c", "d"} {
		wg.Go(func() {
			if _, err := m.Acquire(ctx, scope, "main.go", owner, now, 0); err == nil {
				mu.Lock()
				winners = append(winners, owner)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, filelock.ErrLockConflict)
			}
		})
	}
	wg.Wait()
	require.Len(t, winners, 1)

	locks, err := m.List(ctx, scope, now)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, winners[0], locks[0].Owner)
}
