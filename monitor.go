package osal

import (
	"sync"
	"time"
)

// monitor pairs a mutex with a replaceable broadcast channel, giving the
// timed condition wait that sync.Cond lacks. Waiters capture the channel
// before releasing the lock, so a broadcast between unlock and select is
// never missed.
type monitor struct {
	mu sync.Mutex
	ch chan struct{}
}

func newMonitor() *monitor {
	return &monitor{ch: make(chan struct{})}
}

func (m *monitor) lock()   { m.mu.Lock() }
func (m *monitor) unlock() { m.mu.Unlock() }

// broadcast wakes every current waiter. Caller must hold the lock.
func (m *monitor) broadcast() {
	close(m.ch)
	m.ch = make(chan struct{})
}

// wait releases the lock until a broadcast or until the span expires,
// then reacquires it. Returns false when the span expired first. Caller
// must hold the lock; as with any condition wait, the condition must be
// re-checked afterwards.
func (m *monitor) wait(w waitSpan) bool {
	ch := m.ch
	m.mu.Unlock()

	if w.forever {
		<-ch
		m.mu.Lock()
		return true
	}

	d := time.Until(w.deadline)
	if d <= 0 {
		m.mu.Lock()
		return false
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ch:
		m.mu.Lock()
		return true
	case <-t.C:
		m.mu.Lock()
		return false
	}
}
