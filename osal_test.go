package osal

import (
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	oserr "github.com/wippyai/osal/errors"
)

func TestOSAL_DefaultsApplied(t *testing.T) {
	o := newTestOSAL(t)

	d := o.Snapshot()
	require.Equal(t, DefaultMaxTasks, d.Tasks.Capacity)
	require.Equal(t, DefaultMaxMutexes, d.Mutexes.Capacity)
	require.Equal(t, DefaultMaxSemaphores, d.Semaphores.Capacity)
	require.Equal(t, DefaultMaxQueues, d.Queues.Capacity)
	require.Equal(t, DefaultMaxEventGroups, d.EventGroups.Capacity)
	require.Equal(t, DefaultMaxTimers, d.Timers.Capacity)
}

func TestOSAL_NegativeCapacityRejected(t *testing.T) {
	_, err := New(Options{MaxQueues: -1})
	require.True(t, stderrors.Is(err, oserr.ErrInvalidParameter))
}

func TestOSAL_IndependentInstances(t *testing.T) {
	a, err := New(Options{MaxMutexes: 1})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(Options{MaxMutexes: 1})
	require.NoError(t, err)
	defer b.Close()

	ma, err := a.CreateMutex()
	require.NoError(t, err)
	_, err = b.CreateMutex()
	require.NoError(t, err, "exhausting one instance must not affect another")

	// A handle from one instance is meaningless in the other only by
	// accident of generations; the slot contents are fully separate.
	require.NoError(t, a.LockMutex(ma, NoWait))
}

func TestOSAL_OutOfResources(t *testing.T) {
	o, err := New(Options{MaxSemaphores: 2})
	require.NoError(t, err)
	defer o.Close()

	for i := 0; i < 2; i++ {
		_, err := o.CreateSemaphore(0, 1)
		require.NoError(t, err)
	}
	_, err = o.CreateSemaphore(0, 1)
	require.True(t, stderrors.Is(err, oserr.ErrOutOfResources))
}

func TestOSAL_Watermarks(t *testing.T) {
	o := newTestOSAL(t)

	m1, _ := o.CreateMutex()
	m2, _ := o.CreateMutex()
	require.NoError(t, o.DeleteMutex(m1))
	require.NoError(t, o.DeleteMutex(m2))

	d := o.Snapshot()
	require.Equal(t, 0, d.Mutexes.InUse)
	require.Equal(t, 2, d.Mutexes.Watermark)
}

func TestOSAL_MemorySnapshot(t *testing.T) {
	o := newTestOSAL(t)

	b, err := o.Memory().Alloc(256)
	require.NoError(t, err)

	d := o.Snapshot()
	require.Equal(t, 256, d.Memory.CurrentBytes)
	require.Equal(t, 1, d.Memory.CurrentBlocks)

	require.NoError(t, o.Memory().Free(b))
	require.NoError(t, o.Memory().CheckIntegrity())
}

func TestOSAL_ErrorObserver(t *testing.T) {
	var observed atomic.Int32
	var lastOp atomic.Value

	o, err := New(Options{
		OnError: func(op string, err error) {
			observed.Add(1)
			lastOp.Store(op)
		},
	})
	require.NoError(t, err)
	defer o.Close()

	// An invalid handle is observable.
	err = o.GiveSemaphore(SemHandle{})
	require.True(t, stderrors.Is(err, oserr.ErrInvalidHandle))
	require.Equal(t, int32(1), observed.Load())
	require.Equal(t, "sem.give", lastOp.Load())

	// Timeouts are expected outcomes and are never observed.
	s, _ := o.CreateSemaphore(0, 1)
	_ = o.TakeSemaphore(s, NoWait)
	require.Equal(t, int32(1), observed.Load())
}

func TestOSAL_RecentErrors(t *testing.T) {
	o := newTestOSAL(t)

	_ = o.LockMutex(MutexHandle{}, NoWait)
	_ = o.StartTimer(TimerHandle{})

	recent := o.RecentErrors()
	require.Len(t, recent, 2)
	require.Equal(t, "mutex.lock", recent[0].Op)
	require.Equal(t, "timer.start", recent[1].Op)
	require.False(t, recent[0].At.IsZero())

	// The ring is bounded.
	for i := 0; i < recentErrorCap*2; i++ {
		_ = o.GiveSemaphore(SemHandle{})
	}
	require.Len(t, o.RecentErrors(), recentErrorCap)
}

func TestOSAL_SetErrorObserver(t *testing.T) {
	o := newTestOSAL(t)

	var calls atomic.Int32
	o.SetErrorObserver(func(string, error) { calls.Add(1) })
	_ = o.GiveSemaphore(SemHandle{})
	require.Equal(t, int32(1), calls.Load())

	o.SetErrorObserver(nil)
	_ = o.GiveSemaphore(SemHandle{})
	require.Equal(t, int32(1), calls.Load(), "a nil observer disables observation")
}

func TestOSAL_CloseStopsNewWork(t *testing.T) {
	o, err := New(Options{})
	require.NoError(t, err)

	var fires atomic.Int32
	tm, err := o.CreateTimer(TimerConfig{
		Period:   10 * time.Millisecond,
		Mode:     TimerPeriodic,
		Callback: func(TimerHandle, any) { fires.Add(1) },
	})
	require.NoError(t, err)
	require.NoError(t, o.StartTimer(tm))

	require.NoError(t, o.Close())
	require.True(t, stderrors.Is(o.Close(), oserr.ErrNotInitialized), "double close")

	_, err = o.CreateMutex()
	require.True(t, stderrors.Is(err, oserr.ErrNotInitialized))
	_, err = o.CreateTask(TaskConfig{Entry: func(*TaskRef, any) {}})
	require.True(t, stderrors.Is(err, oserr.ErrNotInitialized))

	// Timers were stopped and joined; no further fires.
	n := fires.Load()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, n, fires.Load())
}

func TestOSAL_CloseSignalsTasks(t *testing.T) {
	o, err := New(Options{})
	require.NoError(t, err)

	exited := make(chan struct{})
	_, err = o.CreateTask(TaskConfig{Entry: func(ref *TaskRef, _ any) {
		defer close(exited)
		for ref.Delay(time.Millisecond) == nil {
		}
	}})
	require.NoError(t, err)

	require.NoError(t, o.Close())
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not signal delete-pending to the task")
	}
}

func TestOSAL_HandleZeroValuesInvalid(t *testing.T) {
	o := newTestOSAL(t)

	require.False(t, TaskHandle{}.Valid())
	require.False(t, MutexHandle{}.Valid())
	require.False(t, SemHandle{}.Valid())
	require.False(t, QueueHandle{}.Valid())
	require.False(t, EventHandle{}.Valid())
	require.False(t, TimerHandle{}.Valid())

	m, _ := o.CreateMutex()
	require.True(t, m.Valid())
}
