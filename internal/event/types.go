package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "filelock.acquired").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers published by the lock manager.
const (
	TypeLockAcquired = "filelock.acquired"
	TypeLockRenewed  = "filelock.renewed"
	TypeLockReleased = "filelock.released"
	TypeLockExpired  = "filelock.expired"
	TypeLockConflict = "filelock.conflict"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent stamped at t.
func newBaseEvent(eventType string, t time.Time) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: t,
	}
}

// LockEvent describes a change to one lock in one scope. The same shape
// backs acquired, renewed, released and expired events.
type LockEvent struct {
	baseEvent
	Scope     string    // Working-tree root the lock belongs to
	FilePath  string    // Locked file
	Owner     string    // Holder of the lock
	ExpiresAt time.Time // Expiry of the lock at the time of the event
}

func newLockEvent(eventType, scope, filePath, owner string, expiresAt, at time.Time) LockEvent {
	return LockEvent{
		baseEvent: newBaseEvent(eventType, at),
		Scope:     scope,
		FilePath:  filePath,
		Owner:     owner,
		ExpiresAt: expiresAt,
	}
}

// NewLockAcquiredEvent creates an event for a newly created lock.
func NewLockAcquiredEvent(scope, filePath, owner string, expiresAt, at time.Time) LockEvent {
	return newLockEvent(TypeLockAcquired, scope, filePath, owner, expiresAt, at)
}

// NewLockRenewedEvent creates an event for a lock whose expiry was extended
// by its holder, either through renew or a repeated acquire.
func NewLockRenewedEvent(scope, filePath, owner string, expiresAt, at time.Time) LockEvent {
	return newLockEvent(TypeLockRenewed, scope, filePath, owner, expiresAt, at)
}

// NewLockReleasedEvent creates an event for a lock given up by its holder.
func NewLockReleasedEvent(scope, filePath, owner string, expiresAt, at time.Time) LockEvent {
	return newLockEvent(TypeLockReleased, scope, filePath, owner, expiresAt, at)
}

// NewLockExpiredEvent creates an event for a lock evicted by a sweep.
func NewLockExpiredEvent(scope, filePath, owner string, expiresAt, at time.Time) LockEvent {
	return newLockEvent(TypeLockExpired, scope, filePath, owner, expiresAt, at)
}

// LockConflictEvent is emitted when an acquisition is refused because
// another owner holds a live lock.
type LockConflictEvent struct {
	baseEvent
	Scope     string
	FilePath  string
	Holder    string    // Owner of the live lock
	Requester string    // Owner whose acquisition was refused
	ExpiresAt time.Time // When the holder's lock lapses
}

// NewLockConflictEvent creates a LockConflictEvent.
func NewLockConflictEvent(scope, filePath, holder, requester string, expiresAt, at time.Time) LockConflictEvent {
	return LockConflictEvent{
		baseEvent: newBaseEvent(TypeLockConflict, at),
		Scope:     scope,
		FilePath:  filePath,
		Holder:    holder,
		Requester: requester,
		ExpiresAt: expiresAt,
	}
}
