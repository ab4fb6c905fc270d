package osal

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// MaxTaskPriority is the highest abstract priority a task may carry.
const MaxTaskPriority = 31

// TaskState is the observable lifecycle state of a task.
type TaskState int32

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskBlocked
	TaskSuspended
	TaskDeleted
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskSuspended:
		return "suspended"
	case TaskDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// TaskHandle is an opaque reference to a task slot.
type TaskHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued. It does not imply the
// task still exists; use TaskState for that.
func (h TaskHandle) Valid() bool { return h.h != 0 }

// TaskConfig describes a task to create. Priority is abstract (0..31);
// the reference backend records it but schedules with ordinary goroutines.
type TaskConfig struct {
	Entry    func(*TaskRef, any)
	Arg      any
	Name     string
	Priority uint8
}

type taskState struct {
	mon *monitor

	name  string
	entry func(*TaskRef, any)
	arg   any

	priority      atomic.Int32
	state         atomic.Int32
	suspended     atomic.Bool
	deletePending atomic.Bool
	selfDeleted   atomic.Bool

	gid  atomic.Uint64
	done chan struct{}
}

func (st *taskState) setState(s TaskState) { st.state.Store(int32(s)) }
func (st *taskState) getState() TaskState  { return TaskState(st.state.Load()) }

// requestDelete marks the task delete-pending and wakes it if parked at a
// voluntary point.
func (st *taskState) requestDelete() {
	st.deletePending.Store(true)
	st.mon.lock()
	st.mon.broadcast()
	st.mon.unlock()
}

// TaskRef is the cooperative token handed to a task's entry function. Its
// Delay and Yield methods are the task's voluntary suspension points:
// suspend and delete requests are observed there and at task start, never
// by preempting an instruction in flight.
type TaskRef struct {
	o  *OSAL
	h  TaskHandle
	st *taskState
}

// Handle returns the task's own handle.
func (t *TaskRef) Handle() TaskHandle { return t.h }

// Name returns the task's name.
func (t *TaskRef) Name() string { return t.st.name }

// ShouldExit reports whether deletion is pending. Entry functions should
// return promptly once it is true.
func (t *TaskRef) ShouldExit() bool { return t.st.deletePending.Load() }

// Delay parks the task for d. It returns early with invalid_state when
// deletion is requested, and honors a pending suspend before returning.
func (t *TaskRef) Delay(d time.Duration) error {
	const op = "task.delay"
	st := t.st

	st.setState(TaskBlocked)
	defer st.setState(TaskRunning)

	st.mon.lock()
	w := newWaitSpan(d)
	for !st.deletePending.Load() {
		if !st.mon.wait(w) {
			break // delay elapsed
		}
	}
	err := t.parkWhileSuspendedLocked(op)
	st.mon.unlock()
	return err
}

// Yield is a zero-length delay: a pure suspension point that observes
// pending suspend and delete requests.
func (t *TaskRef) Yield() error {
	const op = "task.yield"
	st := t.st

	st.mon.lock()
	err := t.parkWhileSuspendedLocked(op)
	st.mon.unlock()
	return err
}

// parkWhileSuspendedLocked blocks while the suspend gate is closed and
// reports delete-pending as invalid_state. Caller holds st.mon.
func (t *TaskRef) parkWhileSuspendedLocked(op string) error {
	st := t.st
	for st.suspended.Load() && !st.deletePending.Load() {
		st.setState(TaskSuspended)
		st.mon.wait(waitSpan{forever: true})
	}
	if st.deletePending.Load() {
		return errors.InvalidState(op, "task delete pending")
	}
	return nil
}

// CreateTask allocates a task slot and starts its execution unit. It
// returns as soon as the handle exists; it does not wait for the task to
// begin running.
func (o *OSAL) CreateTask(cfg TaskConfig) (TaskHandle, error) {
	const op = "task.create"
	if err := o.checkOpen(op); err != nil {
		return TaskHandle{}, o.fail(err)
	}
	if cfg.Entry == nil {
		return TaskHandle{}, o.fail(errors.NullPtr(op, "entry function"))
	}
	if cfg.Priority > MaxTaskPriority {
		return TaskHandle{}, o.fail(errors.InvalidParamf(op, "priority %d > %d", cfg.Priority, MaxTaskPriority))
	}

	st := &taskState{
		mon:   newMonitor(),
		name:  cfg.Name,
		entry: cfg.Entry,
		arg:   cfg.Arg,
		done:  make(chan struct{}),
	}
	st.priority.Store(int32(cfg.Priority))
	st.setState(TaskReady)

	h, err := o.tasks.Create(op, st)
	if err != nil {
		return TaskHandle{}, o.fail(err)
	}
	th := TaskHandle{h}

	go o.runTask(th, st)
	return th, nil
}

func (o *OSAL) runTask(th TaskHandle, st *taskState) {
	gid := goid()
	st.gid.Store(gid)
	o.gids.Store(gid, th)
	ref := &TaskRef{o: o, h: th, st: st}

	// Start gate: suspend and delete are observed here before the entry
	// function ever runs.
	st.mon.lock()
	for st.suspended.Load() && !st.deletePending.Load() {
		st.setState(TaskSuspended)
		st.mon.wait(waitSpan{forever: true})
	}
	pending := st.deletePending.Load()
	st.mon.unlock()

	if !pending {
		st.setState(TaskRunning)
		st.entry(ref, st.arg)
	}

	st.setState(TaskDeleted)
	o.gids.Delete(gid)
	close(st.done)

	// A self-deleting task returns the slot itself; nobody will join it.
	if st.selfDeleted.Load() {
		if _, err := o.tasks.Remove("task.delete", th.h); err == nil {
			o.log.Debug("self-deleted task reclaimed", zap.String("task", st.name))
		}
	}
}

// SuspendTask closes the task's suspend gate. The task parks at its next
// voluntary point (start, Delay, or Yield); nothing is preempted in flight.
func (o *OSAL) SuspendTask(h TaskHandle) error {
	const op = "task.suspend"
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}
	st.suspended.Store(true)
	return nil
}

// ResumeTask reopens the suspend gate and wakes the task if parked.
func (o *OSAL) ResumeTask(h TaskHandle) error {
	const op = "task.resume"
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}
	st.suspended.Store(false)
	st.mon.lock()
	st.mon.broadcast()
	st.mon.unlock()
	return nil
}

// DeleteTask requests deletion, wakes the task if parked, and joins the
// execution unit before releasing the slot. A task deleting itself is
// only marked; its slot is reclaimed when the execution unit exits.
func (o *OSAL) DeleteTask(h TaskHandle) error {
	const op = "task.delete"
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	if g := st.gid.Load(); g != 0 && g == goid() {
		st.selfDeleted.Store(true)
		st.requestDelete()
		return nil
	}

	st.requestDelete()
	<-st.done
	if _, err := o.tasks.Remove(op, h.h); err != nil {
		// Lost a race with a concurrent delete; the slot is already gone.
		return o.fail(err)
	}
	return nil
}

// TaskName returns the task's name.
func (o *OSAL) TaskName(h TaskHandle) (string, error) {
	const op = "task.get_name"
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return "", o.fail(err)
	}
	return st.name, nil
}

// TaskPriority returns the task's abstract priority.
func (o *OSAL) TaskPriority(h TaskHandle) (uint8, error) {
	const op = "task.get_priority"
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}
	return uint8(st.priority.Load()), nil
}

// SetTaskPriority updates the task's abstract priority.
func (o *OSAL) SetTaskPriority(h TaskHandle, priority uint8) error {
	const op = "task.set_priority"
	if priority > MaxTaskPriority {
		return o.fail(errors.InvalidParamf(op, "priority %d > %d", priority, MaxTaskPriority))
	}
	st, err := o.tasks.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}
	st.priority.Store(int32(priority))
	return nil
}

// GetTaskState reports the task's lifecycle state. An unknown or stale
// handle reports TaskDeleted rather than an error.
func (o *OSAL) GetTaskState(h TaskHandle) TaskState {
	st, err := o.tasks.Get("task.get_state", h.h)
	if err != nil {
		return TaskDeleted
	}
	s := st.getState()
	if st.suspended.Load() && s != TaskDeleted {
		return TaskSuspended
	}
	return s
}

// CurrentTask returns the handle of the task running on the calling
// goroutine, if it is one.
func (o *OSAL) CurrentTask() (TaskHandle, bool) {
	v, ok := o.gids.Load(goid())
	if !ok {
		return TaskHandle{}, false
	}
	return v.(TaskHandle), true
}

// markBlocked flags the calling task as Blocked for the duration of a
// blocking primitive wait. The returned func restores Running. Callers
// that are not tasks get a no-op.
func (o *OSAL) markBlocked() func() {
	th, ok := o.CurrentTask()
	if !ok {
		return func() {}
	}
	st, err := o.tasks.Get("task.get_state", th.h)
	if err != nil {
		return func() {}
	}
	st.setState(TaskBlocked)
	return func() { st.setState(TaskRunning) }
}
