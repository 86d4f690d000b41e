// Package event provides a synchronous pub-sub bus used to observe lock
// registry changes without coupling observers to the lock manager.
//
// The manager publishes a [LockEvent] for every lock it creates, renews,
// releases or sweeps away, and a [LockConflictEvent] whenever an acquisition
// is refused. Event types follow the "category.action" convention:
//
//   - filelock.acquired
//   - filelock.renewed
//   - filelock.released
//   - filelock.expired
//   - filelock.conflict
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeLockConflict, func(e event.Event) {
//	    c := e.(event.LockConflictEvent)
//	    log.Printf("%s blocked by %s", c.Requester, c.Holder)
//	})
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine; a panicking handler is recovered and reported
// without affecting the remaining handlers.
package event
