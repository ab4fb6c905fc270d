package osal

import (
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// SemHandle is an opaque reference to a counting semaphore slot.
type SemHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued.
func (h SemHandle) Valid() bool { return h.h != 0 }

type semState struct {
	mon   *monitor
	count uint32 // guarded by mon
	max   uint32
}

// CreateSemaphore allocates a counting semaphore. max must be positive
// and initial must not exceed it.
func (o *OSAL) CreateSemaphore(initial, max uint32) (SemHandle, error) {
	const op = "sem.create"
	if err := o.checkOpen(op); err != nil {
		return SemHandle{}, o.fail(err)
	}
	if max == 0 {
		return SemHandle{}, o.fail(errors.InvalidParam(op, "max count is zero"))
	}
	if initial > max {
		return SemHandle{}, o.fail(errors.InvalidParamf(op, "initial %d > max %d", initial, max))
	}

	h, err := o.sems.Create(op, &semState{mon: newMonitor(), count: initial, max: max})
	if err != nil {
		return SemHandle{}, o.fail(err)
	}
	return SemHandle{h}, nil
}

// DeleteSemaphore releases the semaphore slot.
func (o *OSAL) DeleteSemaphore(h SemHandle) error {
	const op = "sem.delete"
	if _, err := o.sems.Remove(op, h.h); err != nil {
		return o.fail(err)
	}
	return nil
}

// TakeSemaphore decrements the count, blocking while it is zero for up to
// timeout.
func (o *OSAL) TakeSemaphore(h SemHandle, timeout time.Duration) error {
	const op = "sem.take"
	st, err := o.sems.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.count == 0 {
		if timeout == NoWait {
			return errors.Timeout(op)
		}
		unblock := o.markBlocked()
		defer unblock()
		w := newWaitSpan(timeout)
		for st.count == 0 {
			if !st.mon.wait(w) && st.count == 0 {
				return errors.Timeout(op)
			}
		}
	}

	st.count--
	return nil
}

// GiveSemaphore increments the count and wakes a waiter. Signals beyond
// the maximum are silently discarded; give never blocks and never fails
// for a saturated semaphore.
func (o *OSAL) GiveSemaphore(h SemHandle) error {
	const op = "sem.give"
	st, err := o.sems.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.count < st.max {
		st.count++
		st.mon.broadcast()
	}
	return nil
}

// ResetSemaphore atomically replaces the count and wakes waiters when the
// new count is nonzero.
func (o *OSAL) ResetSemaphore(h SemHandle, count uint32) error {
	const op = "sem.reset"
	st, err := o.sems.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}
	if count > st.max {
		return o.fail(errors.InvalidParamf(op, "count %d > max %d", count, st.max))
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.count = count
	if count > 0 {
		st.mon.broadcast()
	}
	return nil
}

// SemaphoreCount returns the current count. Diagnostic read.
func (o *OSAL) SemaphoreCount(h SemHandle) (uint32, error) {
	const op = "sem.get_count"
	st, err := o.sems.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.count, nil
}
