package sensors

import (
	"errors"
	"sync"
)

var (
	ErrLockContended = errors.New("sensors: mailbox busy, try again")
	ErrEmpty         = errors.New("sensors: no new value in mailbox")
)

// Mailbox is a single-slot handoff between one producer and one consumer.
// A newer value overwrites an unconsumed one. The consumer side never waits:
// Request and TryTake give up when the slot is locked, and the producer only
// holds the lock while copying a value in, never during I/O.
//
// The slot, its fresh flag and its request flag are only ever read or
// written together under mu.
type Mailbox[T any] struct {
	mu        sync.Mutex
	value     T
	fresh     bool
	requested bool
}

// Request asks the producer for a new value. It returns false when the slot
// was locked; the caller should try again later.
func (m *Mailbox[T]) Request() bool {
	if !m.mu.TryLock() {
		return false
	}
	m.requested = true
	m.mu.Unlock()
	return true
}

// Requested reports whether a value has been asked for since the last Publish.
func (m *Mailbox[T]) Requested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requested
}

// Publish stores v, marks it fresh and satisfies the pending request.
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()
	m.value = v
	m.fresh = true
	m.requested = false
	m.mu.Unlock()
}

// TryTake returns the fresh value and marks it consumed. It fails with
// ErrLockContended when the slot is locked and ErrEmpty when nothing new was
// published since the last take.
func (m *Mailbox[T]) TryTake() (T, error) {
	var zero T
	if !m.mu.TryLock() {
		return zero, ErrLockContended
	}
	defer m.mu.Unlock()
	if !m.fresh {
		return zero, ErrEmpty
	}
	m.fresh = false
	return m.value, nil
}

// Fresh reports whether an unconsumed value is waiting.
func (m *Mailbox[T]) Fresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresh
}
