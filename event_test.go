package osal

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	oserr "github.com/wippyai/osal/errors"
)

func TestEvent_BitValidation(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	require.True(t, stderrors.Is(o.SetEvents(g, 0x1000000), oserr.ErrInvalidParameter),
		"bits above the 24-bit mask must be rejected")
	require.True(t, stderrors.Is(o.SetEvents(g, 0), oserr.ErrInvalidParameter))
	_, err := o.WaitEvents(g, 0, WaitAny, false, NoWait)
	require.True(t, stderrors.Is(err, oserr.ErrInvalidParameter))
}

func TestEvent_WaitAllAccumulates(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()

	// Scenario: ALL-mode wait on 0x3 keeps failing until both bits are up.
	_, err := o.WaitEvents(g, 0x3, WaitAll, false, NoWait)
	require.True(t, stderrors.Is(err, oserr.ErrTimeout))

	require.NoError(t, o.SetEvents(g, 0x1))
	_, err = o.WaitEvents(g, 0x3, WaitAll, false, NoWait)
	require.True(t, stderrors.Is(err, oserr.ErrTimeout))

	require.NoError(t, o.SetEvents(g, 0x2))
	matched, err := o.WaitEvents(g, 0x3, WaitAll, false, NoWait)
	require.NoError(t, err)
	require.Equal(t, EventBits(0x3), matched)
}

func TestEvent_WaitAnyReturnsSubset(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	require.NoError(t, o.SetEvents(g, 0x4))

	matched, err := o.WaitEvents(g, 0x6, WaitAny, false, NoWait)
	require.NoError(t, err)
	require.Equal(t, EventBits(0x4), matched, "ANY mode returns only the set subset")
}

func TestEvent_AutoClearRemovesMatchedOnly(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	require.NoError(t, o.SetEvents(g, 0x7))

	matched, err := o.WaitEvents(g, 0x3, WaitAll, true, NoWait)
	require.NoError(t, err)
	require.Equal(t, EventBits(0x3), matched)

	bits, err := o.EventGroupBits(g)
	require.NoError(t, err)
	require.Equal(t, EventBits(0x4), bits, "auto-clear must remove exactly the matched bits")
}

func TestEvent_SetWakesBlockedWaiter(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()

	got := make(chan EventBits, 1)
	errs := make(chan error, 1)
	go func() {
		m, err := o.WaitEvents(g, 0x18, WaitAll, true, 2*time.Second)
		errs <- err
		got <- m
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, o.SetEvents(g, 0x8))
	require.NoError(t, o.ISR().SetEvents(g, 0x10))

	require.NoError(t, <-errs)
	require.Equal(t, EventBits(0x18), <-got)
}

func TestEvent_OneSetReleasesAllWaiters(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()

	const waiters = 4
	var wg sync.WaitGroup
	results := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every waiter asks for the same bits with auto-clear; the
			// deferred-clear rule means one set satisfies all of them.
			_, err := o.WaitEvents(g, 0x1, WaitAll, true, 2*time.Second)
			results <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, o.SetEvents(g, 0x1))
	wg.Wait()

	for i := 0; i < waiters; i++ {
		require.NoError(t, <-results)
	}
}

func TestEvent_ClearDoesNotWake(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	require.NoError(t, o.SetEvents(g, 0x5))
	require.NoError(t, o.ClearEvents(g, 0x1))

	bits, _ := o.EventGroupBits(g)
	require.Equal(t, EventBits(0x4), bits)
}

func TestEvent_SyncRendezvous(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()

	// Three parties meet at the barrier; every one must observe the full
	// bit set even though the winner clears it.
	const all = EventBits(0x7)
	var wg sync.WaitGroup
	results := make(chan EventBits, 3)
	errs := make(chan error, 3)

	for i := 0; i < 3; i++ {
		bit := EventBits(1 << i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := o.SyncEvents(g, bit, all, 2*time.Second)
			errs <- err
			results <- m
		}()
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		require.NoError(t, <-errs)
		require.Equal(t, all, <-results)
	}

	bits, _ := o.EventGroupBits(g)
	require.Equal(t, EventBits(0), bits, "sync must clear the matched bits")
}

func TestEvent_SyncTimeout(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	start := time.Now()
	_, err := o.SyncEvents(g, 0x1, 0x3, 30*time.Millisecond)
	require.True(t, stderrors.Is(err, oserr.ErrTimeout))
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	bits, _ := o.EventGroupBits(g)
	require.Equal(t, EventBits(0x1), bits, "a timed-out sync leaves its set bits behind")
}

func TestEvent_WaitTimeoutLeavesNoWaiter(t *testing.T) {
	o := newTestOSAL(t)

	g, _ := o.CreateEventGroup()
	_, err := o.WaitEvents(g, 0x1, WaitAll, true, 20*time.Millisecond)
	require.True(t, stderrors.Is(err, oserr.ErrTimeout))

	// The timed-out waiter must be gone: this set has nobody to satisfy
	// and the bit stays up for the next no-wait check.
	require.NoError(t, o.SetEvents(g, 0x1))
	matched, err := o.WaitEvents(g, 0x1, WaitAll, true, NoWait)
	require.NoError(t, err)
	require.Equal(t, EventBits(0x1), matched)
}
