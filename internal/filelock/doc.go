// Package filelock provides advisory, expiring file ownership locks for
// agents that share one working tree.
//
// Several agents may edit the same checkout concurrently. Before touching a
// file an agent acquires a lock on it; other agents asking for the same file
// get a [*ConflictError] naming the holder and when its lock lapses. Locks
// expire on their own after a TTL (five minutes by default), so an agent that
// crashes or stalls can never wedge the tree.
//
// # Architecture
//
// A [Registry] holds every [FileLock] of one scope (a working-tree root) and
// is persisted whole through a [Store]. The [Manager] is the only component
// that changes it: each operation loads the registry, sweeps locks whose
// expiry is at or before now, applies the change and stores the result.
// Expiry is evaluated lazily in every operation; nothing runs in the
// background.
//
// # Basic Usage
//
//	mgr := filelock.NewManager(store)
//
//	// Claim a file before editing; a repeated claim by the holder renews it.
//	lock, err := mgr.Acquire(ctx, repoRoot, "pkg/foo.go", "agent-1", time.Now(), 0)
//	var conflict *filelock.ConflictError
//	if errors.As(err, &conflict) {
//	    fmt.Printf("held by %s until %s\n", conflict.Owner, conflict.Until())
//	}
//
//	// Extend a long edit, then release when done.
//	_, err = mgr.Renew(ctx, repoRoot, "pkg/foo.go", "agent-1", time.Now(), 10*time.Minute)
//	err = mgr.Release(ctx, repoRoot, "pkg/foo.go", "agent-1", time.Now())
//
// # Concurrency
//
// The Manager holds no state between calls and is safe for concurrent use,
// but a plain [Store] gives no atomicity between Load and Save. Two agents
// acquiring the same file at the same moment can both load the registry
// before either saves, and the later save silently drops the earlier lock.
// Locking is therefore best effort by default. Stores implementing
// [AtomicStore] can close that gap when the Manager is built with
// [WithAtomicUpdates].
package filelock
