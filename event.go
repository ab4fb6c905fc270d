package osal

import (
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// EventBits is a 24-bit event-flag mask. The top byte is reserved and
// must be zero in every API call.
type EventBits uint32

// EventBitsMask covers all usable flag bits.
const EventBitsMask EventBits = 0x00FFFFFF

// EventHandle is an opaque reference to an event-flag group slot.
type EventHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued.
func (h EventHandle) Valid() bool { return h.h != 0 }

// WaitMode selects how WaitEvents interprets the requested bit set.
type WaitMode uint8

const (
	// WaitAny satisfies the wait as soon as any requested bit is set.
	WaitAny WaitMode = iota
	// WaitAll requires every requested bit to be set at once.
	WaitAll
)

// eventWaiter is one parked caller. Satisfaction is decided by the setter
// under the group lock, not by the waiter after waking: every waiter whose
// condition is met by a set observes the pre-clear mask, and the clears
// requested by all of them apply only after the whole waiter list has been
// walked. That is what makes one set able to release N barrier parties.
type eventWaiter struct {
	want      EventBits
	clearAll  EventBits // cleared unconditionally on satisfaction (sync)
	matched   EventBits
	mode      WaitMode
	autoClear bool
	satisfied bool
}

type eventState struct {
	mon     *monitor
	bits    EventBits // guarded by mon
	waiters []*eventWaiter
}

func matchBits(bits, want EventBits, mode WaitMode) EventBits {
	if mode == WaitAll {
		if bits&want == want {
			return want
		}
		return 0
	}
	return bits & want
}

// evaluateLocked walks the waiter list in arrival order, satisfies every
// waiter whose condition the current mask meets, and applies their clears
// afterwards. Caller holds mon and broadcasts after any set.
func (st *eventState) evaluateLocked() {
	var clear EventBits
	remaining := st.waiters[:0]
	for _, w := range st.waiters {
		m := matchBits(st.bits, w.want, w.mode)
		if m == 0 {
			remaining = append(remaining, w)
			continue
		}
		w.matched = m
		w.satisfied = true
		if w.autoClear {
			clear |= m
		}
		clear |= w.clearAll
	}
	st.waiters = remaining
	st.bits &^= clear
}

func (st *eventState) removeWaiterLocked(w *eventWaiter) {
	for i, q := range st.waiters {
		if q == w {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return
		}
	}
}

func checkEventBits(op string, bits EventBits, allowZero bool) error {
	if bits&^EventBitsMask != 0 {
		return errors.InvalidParamf(op, "bits %#x outside 24-bit mask", uint32(bits))
	}
	if bits == 0 && !allowZero {
		return errors.InvalidParam(op, "empty bit set")
	}
	return nil
}

// CreateEventGroup allocates an event-flag group with all bits clear.
func (o *OSAL) CreateEventGroup() (EventHandle, error) {
	const op = "event.create"
	if err := o.checkOpen(op); err != nil {
		return EventHandle{}, o.fail(err)
	}
	h, err := o.events.Create(op, &eventState{mon: newMonitor()})
	if err != nil {
		return EventHandle{}, o.fail(err)
	}
	return EventHandle{h}, nil
}

// DeleteEventGroup releases the group slot.
func (o *OSAL) DeleteEventGroup(h EventHandle) error {
	const op = "event.delete"
	if _, err := o.events.Remove(op, h.h); err != nil {
		return o.fail(err)
	}
	return nil
}

// SetEvents ORs bits into the mask, satisfies every waiter whose
// condition is now met, and wakes them.
func (o *OSAL) SetEvents(h EventHandle, bits EventBits) error {
	const op = "event.set"
	if err := checkEventBits(op, bits, false); err != nil {
		return o.fail(err)
	}
	st, err := o.events.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.bits |= bits
	st.evaluateLocked()
	st.mon.broadcast()
	return nil
}

// ClearEvents removes bits from the mask. Clearing never satisfies or
// wakes anyone.
func (o *OSAL) ClearEvents(h EventHandle, bits EventBits) error {
	const op = "event.clear"
	if err := checkEventBits(op, bits, false); err != nil {
		return o.fail(err)
	}
	st, err := o.events.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.bits &^= bits
	return nil
}

// WaitEvents blocks until the requested bits are satisfied per mode and
// returns the matched subset. With autoClear, exactly the matched bits
// are removed from the mask on success.
func (o *OSAL) WaitEvents(h EventHandle, bits EventBits, mode WaitMode, autoClear bool, timeout time.Duration) (EventBits, error) {
	const op = "event.wait"
	if err := checkEventBits(op, bits, false); err != nil {
		return 0, o.fail(err)
	}
	st, err := o.events.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if m := matchBits(st.bits, bits, mode); m != 0 {
		if autoClear {
			st.bits &^= m
		}
		return m, nil
	}
	if timeout == NoWait {
		return 0, errors.Timeout(op)
	}

	unblock := o.markBlocked()
	defer unblock()

	wt := &eventWaiter{want: bits, mode: mode, autoClear: autoClear}
	st.waiters = append(st.waiters, wt)

	w := newWaitSpan(timeout)
	for !wt.satisfied {
		if !st.mon.wait(w) && !wt.satisfied {
			st.removeWaiterLocked(wt)
			return 0, errors.Timeout(op)
		}
	}
	return wt.matched, nil
}

// SyncEvents is the rendezvous primitive: it atomically ORs setBits into
// the mask, releases every waiter the set satisfies, then blocks until
// all waitBits are set. The matched waitBits are unconditionally cleared
// on success, which is what lets N parties use one group as a barrier.
func (o *OSAL) SyncEvents(h EventHandle, setBits, waitBits EventBits, timeout time.Duration) (EventBits, error) {
	const op = "event.sync"
	if err := checkEventBits(op, setBits, true); err != nil {
		return 0, o.fail(err)
	}
	if err := checkEventBits(op, waitBits, false); err != nil {
		return 0, o.fail(err)
	}
	st, err := o.events.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	// The caller's own condition is judged against the pre-clear mask,
	// like everybody else released by this set.
	pre := st.bits | setBits
	if setBits != 0 {
		st.bits |= setBits
		st.evaluateLocked()
		st.mon.broadcast()
	}

	if pre&waitBits == waitBits {
		st.bits &^= waitBits
		return waitBits, nil
	}
	if timeout == NoWait {
		return 0, errors.Timeout(op)
	}

	unblock := o.markBlocked()
	defer unblock()

	wt := &eventWaiter{want: waitBits, mode: WaitAll, clearAll: waitBits}
	st.waiters = append(st.waiters, wt)

	w := newWaitSpan(timeout)
	for !wt.satisfied {
		if !st.mon.wait(w) && !wt.satisfied {
			st.removeWaiterLocked(wt)
			return 0, errors.Timeout(op)
		}
	}
	return wt.matched, nil
}

// EventGroupBits returns the current mask. Diagnostic read.
func (o *OSAL) EventGroupBits(h EventHandle) (EventBits, error) {
	const op = "event.get_bits"
	st, err := o.events.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.bits, nil
}
