package osal

import "time"

// ISR is the interrupt-context facade. Its method set contains only
// operations that are guaranteed never to suspend the caller, so code
// that is handed an ISR value cannot reach a blocking API at compile
// time. On this hosted backend the methods route to the normal paths with
// no-wait semantics; a bare-metal backend substitutes a lock-free or
// deferred path behind the same surface.
type ISR struct {
	o *OSAL
}

// ISR returns the interrupt-safe facade for this instance.
func (o *OSAL) ISR() ISR {
	return ISR{o: o}
}

// GiveSemaphore signals a semaphore without blocking. Semantics are
// identical to OSAL.GiveSemaphore, which never suspends.
func (i ISR) GiveSemaphore(h SemHandle) error {
	return i.o.GiveSemaphore(h)
}

// SetEvents sets event bits without blocking.
func (i ISR) SetEvents(h EventHandle, bits EventBits) error {
	return i.o.SetEvents(h, bits)
}

// TrySendQueue sends with no-wait semantics: a full normal-mode queue
// fails with Full instead of suspending.
func (i ISR) TrySendQueue(h QueueHandle, item []byte) error {
	return i.o.SendQueue(h, item, NoWait)
}

// StartTimer arms a timer without blocking.
func (i ISR) StartTimer(h TimerHandle) error {
	return i.o.StartTimer(h)
}

// StopTimer disarms a timer without blocking.
func (i ISR) StopTimer(h TimerHandle) error {
	return i.o.StopTimer(h)
}

// ResetTimer restarts a timer without blocking.
func (i ISR) ResetTimer(h TimerHandle) error {
	return i.o.ResetTimer(h)
}

// SetTimerPeriod changes a timer period without blocking.
func (i ISR) SetTimerPeriod(h TimerHandle, period time.Duration) error {
	return i.o.SetTimerPeriod(h, period)
}
