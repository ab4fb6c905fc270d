package osal

import (
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// MutexHandle is an opaque reference to a mutex slot.
type MutexHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued.
func (h MutexHandle) Valid() bool { return h.h != 0 }

type mutexState struct {
	mon *monitor

	// Guarded by mon. owner is the goroutine id of the holder, identity
	// only; ownerTask is a weak reference for diagnostics and is never
	// used for ownership transfer.
	locked    bool
	owner     uint64
	ownerTask TaskHandle
	depth     int
}

// CreateMutex allocates a recursive mutex.
func (o *OSAL) CreateMutex() (MutexHandle, error) {
	const op = "mutex.create"
	if err := o.checkOpen(op); err != nil {
		return MutexHandle{}, o.fail(err)
	}
	h, err := o.mutexes.Create(op, &mutexState{mon: newMonitor()})
	if err != nil {
		return MutexHandle{}, o.fail(err)
	}
	return MutexHandle{h}, nil
}

// DeleteMutex releases the mutex slot. Deleting a held mutex invalidates
// it for everyone, including the holder.
func (o *OSAL) DeleteMutex(h MutexHandle) error {
	const op = "mutex.delete"
	if _, err := o.mutexes.Remove(op, h.h); err != nil {
		return o.fail(err)
	}
	return nil
}

// LockMutex acquires the mutex, blocking up to timeout. The lock is
// recursive: the holding execution unit may re-lock without deadlocking
// and must unlock once per lock. At most one owner holds the mutex at any
// instant.
func (o *OSAL) LockMutex(h MutexHandle, timeout time.Duration) error {
	const op = "mutex.lock"
	st, err := o.mutexes.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	self := goid()

	st.mon.lock()
	defer st.mon.unlock()

	if st.locked && st.owner == self {
		st.depth++
		return nil
	}

	if st.locked {
		if timeout == NoWait {
			return errors.Timeout(op)
		}
		unblock := o.markBlocked()
		w := newWaitSpan(timeout)
		for st.locked {
			if !st.mon.wait(w) && st.locked {
				unblock()
				return errors.Timeout(op)
			}
		}
		unblock()
	}

	st.locked = true
	st.owner = self
	st.depth = 1
	if th, ok := o.CurrentTask(); ok {
		st.ownerTask = th
	} else {
		st.ownerTask = TaskHandle{}
	}
	return nil
}

// UnlockMutex releases one level of the recursive lock. Only the owner
// may unlock; anything else fails with invalid_state.
func (o *OSAL) UnlockMutex(h MutexHandle) error {
	const op = "mutex.unlock"
	st, err := o.mutexes.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if !st.locked {
		return o.fail(errors.InvalidState(op, "mutex is not locked"))
	}
	if st.owner != goid() {
		return o.fail(errors.InvalidState(op, "caller is not the owner"))
	}

	st.depth--
	if st.depth > 0 {
		return nil
	}

	// Clear the bookkeeping before waking waiters, so a new owner never
	// observes the old one.
	st.owner = 0
	st.ownerTask = TaskHandle{}
	st.locked = false
	st.mon.broadcast()
	return nil
}

// MutexOwner returns the task currently recorded as owner, which is the
// zero handle when the mutex is free or held by a non-task goroutine.
// This is a diagnostic read: it is not synchronized against a lock
// transition in flight.
func (o *OSAL) MutexOwner(h MutexHandle) (TaskHandle, error) {
	const op = "mutex.get_owner"
	st, err := o.mutexes.Get(op, h.h)
	if err != nil {
		return TaskHandle{}, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.ownerTask, nil
}

// MutexIsLocked reports the lock flag. Diagnostic read, same caveat as
// MutexOwner.
func (o *OSAL) MutexIsLocked(h MutexHandle) (bool, error) {
	const op = "mutex.is_locked"
	st, err := o.mutexes.Get(op, h.h)
	if err != nil {
		return false, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.locked, nil
}
