//go:build integration

package etcdstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/Iron-Ham/ownership/internal/filelock"
	"github.com/Iron-Ham/ownership/internal/testutil"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *clientv3.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc, err := testutil.StartEtcd(ctx)
	require.NoError(t, err, "start etcd")
	t.Cleanup(func() { _ = svc.Terminate(context.Background()) })

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{svc.Endpoint},
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{WithKeyPrefix("/test-" + uuid.NewString() + "/")}, opts...)
	return New(client, opts...), client
}

func TestEtcdStoreRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	def := filelock.NewRegistry(time.UnixMilli(0))
	got, err := s.Load(ctx, "/work/repo", def)
	require.NoError(t, err)
	assert.Same(t, def, got)

	reg := filelock.NewRegistry(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg.Locks = []filelock.FileLock{{FilePath: "/src/a.ts", Owner: "A", ExpiresAt: 300000}}
	require.NoError(t, s.Save(ctx, "/work/repo", reg))

	got, err = s.Load(ctx, "/work/repo", def)
	require.NoError(t, err)
	assert.Equal(t, reg.Locks, got.Locks)
}

func TestEtcdStoreRetriesOnConcurrentWrite(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	key := s.Key("/work/repo")

	attempts := 0
	err := s.Update(ctx, "/work/repo", filelock.NewRegistry(time.UnixMilli(0)), func(reg *filelock.Registry) (bool, error) {
		attempts++
		if attempts == 1 {
			// Another writer commits between our load and our transaction.
			_, err := client.Put(ctx, key, `{"locks":[{"filePath":"b.go","owner":"B","acquiredAt":0,"expiresAt":900000}],"lastUpdated":"2025-03-01T12:00:00Z"}`)
			require.NoError(t, err)
		}
		reg.Locks = append(reg.Locks, filelock.FileLock{FilePath: "a.go", Owner: "A", ExpiresAt: 900000})
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	got, err := s.Load(ctx, "/work/repo", filelock.NewRegistry(time.UnixMilli(0)))
	require.NoError(t, err)
	require.Len(t, got.Locks, 2, "concurrent write was lost")
}

func TestEtcdStoreGivesUpAfterMaxRetries(t *testing.T) {
	s, client := newTestStore(t, WithMaxRetries(2))
	ctx := context.Background()
	key := s.Key("/work/repo")

	err := s.Update(ctx, "/work/repo", filelock.NewRegistry(time.UnixMilli(0)), func(reg *filelock.Registry) (bool, error) {
		_, err := client.Put(ctx, key, `{"locks":[],"lastUpdated":"2025-03-01T12:00:00Z"}`)
		require.NoError(t, err)
		return true, nil
	})
	require.ErrorIs(t, err, ErrConflictRetries)
}

func TestEtcdStoreSerializesAcquires(t *testing.T) {
	s, _ := newTestStore(t, WithMaxRetries(32))
	m := filelock.NewManager(s, filelock.WithAtomicUpdates(true))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range 8 {
		wg.Go(func() {
			_, err := m.Acquire(ctx, "/work/repo", "main.go", uuid.NewString(), time.UnixMilli(0), 0)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, filelock.ErrLockConflict)
		})
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
