package osal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/mem"
	"github.com/wippyai/osal/resource"
)

// Timeout sentinels for blocking operations. NoWait tries once and fails
// immediately when the condition is not met; any negative duration waits
// forever.
const (
	NoWait      time.Duration = 0
	WaitForever time.Duration = -1
)

// Default table capacities applied for zero Options fields.
const (
	DefaultMaxTasks       = 32
	DefaultMaxMutexes     = 64
	DefaultMaxSemaphores  = 64
	DefaultMaxQueues      = 32
	DefaultMaxEventGroups = 32
	DefaultMaxTimers      = 32
)

// ErrorObserver is invoked synchronously whenever a public API fails. It
// must not block and must be safe to call from any context; it never
// alters control flow.
type ErrorObserver func(op string, err error)

// Options configures an OSAL instance. Zero capacity fields take the
// package defaults; a nil Logger falls back to the package logger.
type Options struct {
	Logger         *zap.Logger
	OnError        ErrorObserver
	MaxTasks       int
	MaxMutexes     int
	MaxSemaphores  int
	MaxQueues      int
	MaxEventGroups int
	MaxTimers      int
}

func (o Options) withDefaults() Options {
	def := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	def(&o.MaxTasks, DefaultMaxTasks)
	def(&o.MaxMutexes, DefaultMaxMutexes)
	def(&o.MaxSemaphores, DefaultMaxSemaphores)
	def(&o.MaxQueues, DefaultMaxQueues)
	def(&o.MaxEventGroups, DefaultMaxEventGroups)
	def(&o.MaxTimers, DefaultMaxTimers)
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o
}

// OSAL is one independent instance of the abstraction layer: the slot
// tables for every resource kind, the tracked allocator, and the
// diagnostics state. Instances share nothing, so tests can run many side
// by side.
type OSAL struct {
	log *zap.Logger

	tasks   *resource.Table[taskState]
	mutexes *resource.Table[mutexState]
	sems    *resource.Table[semState]
	queues  *resource.Table[queueState]
	events  *resource.Table[eventState]
	timers  *resource.Table[timerState]

	memory *mem.Tracker

	gids sync.Map // goroutine id -> TaskHandle

	obsMu  sync.Mutex
	onErr  ErrorObserver
	recent deque.Deque[ObservedError]

	closed atomic.Bool
}

// New creates an OSAL instance with the given options.
func New(opts Options) (*OSAL, error) {
	const op = "osal.new"
	opts = opts.withDefaults()

	for _, c := range []int{opts.MaxTasks, opts.MaxMutexes, opts.MaxSemaphores,
		opts.MaxQueues, opts.MaxEventGroups, opts.MaxTimers} {
		if c < 0 {
			return nil, errors.InvalidParam(op, "negative table capacity")
		}
	}

	o := &OSAL{
		log:     opts.Logger,
		tasks:   resource.NewTable[taskState](resource.KindTask, opts.MaxTasks),
		mutexes: resource.NewTable[mutexState](resource.KindMutex, opts.MaxMutexes),
		sems:    resource.NewTable[semState](resource.KindSemaphore, opts.MaxSemaphores),
		queues:  resource.NewTable[queueState](resource.KindQueue, opts.MaxQueues),
		events:  resource.NewTable[eventState](resource.KindEventGroup, opts.MaxEventGroups),
		timers:  resource.NewTable[timerState](resource.KindTimer, opts.MaxTimers),
		memory:  mem.NewTracker(),
		onErr:   opts.OnError,
	}

	o.log.Debug("osal instance created",
		zap.Int("max_tasks", opts.MaxTasks),
		zap.Int("max_timers", opts.MaxTimers))
	return o, nil
}

// Memory returns the instance's tracked allocator.
func (o *OSAL) Memory() *mem.Tracker {
	return o.memory
}

// Close marks the instance uninitialized, stops and joins all timers, and
// signals delete-pending to every task. Cancellation stays cooperative: a
// task parked in one of its own wait calls observes the request at that
// wait; Close does not forcibly unwind or join tasks.
func (o *OSAL) Close() error {
	const op = "osal.close"
	if !o.closed.CompareAndSwap(false, true) {
		return o.fail(errors.NotInitialized(op))
	}

	o.timers.Each(func(h resource.Handle, st *timerState) bool {
		st.shutdown()
		if _, err := o.timers.Remove(op, h); err == nil {
			o.log.Debug("timer removed on close", zap.String("name", st.name))
		}
		return true
	})

	o.tasks.Each(func(h resource.Handle, st *taskState) bool {
		st.requestDelete()
		return true
	})

	o.log.Debug("osal instance closed")
	return nil
}

// checkOpen fails with not_initialized once the instance is closed.
func (o *OSAL) checkOpen(op string) error {
	if o.closed.Load() {
		return errors.NotInitialized(op)
	}
	return nil
}

// fail routes an error through the diagnostics path (log, observer,
// recent-error ring) and returns it unchanged. Timeout, Full, and Empty
// are expected outcomes and are not recorded.
func (o *OSAL) fail(err error) error {
	if err == nil {
		return nil
	}
	switch errors.CodeOf(err) {
	case errors.CodeTimeout, errors.CodeFull, errors.CodeEmpty:
		return err
	}

	op := errors.OpOf(err)
	o.log.Warn("osal error", zap.String("op", op), zap.Error(err))

	o.obsMu.Lock()
	o.recent.PushBack(ObservedError{Op: op, Err: err, At: time.Now()})
	for o.recent.Len() > recentErrorCap {
		o.recent.PopFront()
	}
	cb := o.onErr
	o.obsMu.Unlock()

	if cb != nil {
		cb(op, err)
	}
	return err
}

// waitSpan captures one of the three timeout classes for a blocking call.
type waitSpan struct {
	deadline time.Time
	forever  bool
}

func newWaitSpan(timeout time.Duration) waitSpan {
	if timeout < 0 {
		return waitSpan{forever: true}
	}
	return waitSpan{deadline: time.Now().Add(timeout)}
}
