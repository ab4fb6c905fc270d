package osal

import (
	"time"

	"github.com/wippyai/osal/mem"
)

// recentErrorCap bounds the diagnostics error ring.
const recentErrorCap = 32

// KindStats is one resource kind's slot accounting.
type KindStats struct {
	InUse     int
	Capacity  int
	Watermark int
}

// Diag is a point-in-time snapshot of every resource table plus the
// tracked allocator. Counts for different kinds are read independently,
// so the snapshot is consistent per kind, not across kinds.
type Diag struct {
	Tasks       KindStats
	Mutexes     KindStats
	Semaphores  KindStats
	Queues      KindStats
	EventGroups KindStats
	Timers      KindStats
	Memory      mem.Stats
}

// ObservedError is one entry in the recent-error ring.
type ObservedError struct {
	At  time.Time
	Err error
	Op  string
}

// Snapshot collects the current resource counts, watermarks, and memory
// statistics.
func (o *OSAL) Snapshot() Diag {
	stat := func(t interface {
		Len() int
		Cap() int
		Watermark() int
	}) KindStats {
		return KindStats{InUse: t.Len(), Capacity: t.Cap(), Watermark: t.Watermark()}
	}

	return Diag{
		Tasks:       stat(o.tasks),
		Mutexes:     stat(o.mutexes),
		Semaphores:  stat(o.sems),
		Queues:      stat(o.queues),
		EventGroups: stat(o.events),
		Timers:      stat(o.timers),
		Memory:      o.memory.GetStats(),
	}
}

// SetErrorObserver installs or replaces the error-observation callback.
// The callback is invoked synchronously on every internal error, must not
// block, and never alters the failing call's outcome. A nil observer
// disables observation.
func (o *OSAL) SetErrorObserver(fn ErrorObserver) {
	o.obsMu.Lock()
	o.onErr = fn
	o.obsMu.Unlock()
}

// RecentErrors returns the most recent observed errors, oldest first.
// Timeout, Full, and Empty are expected outcomes and never appear here.
func (o *OSAL) RecentErrors() []ObservedError {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()

	out := make([]ObservedError, o.recent.Len())
	for i := 0; i < o.recent.Len(); i++ {
		out[i] = o.recent.At(i)
	}
	return out
}
