package osal

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// TimerHandle is an opaque reference to a software timer slot.
type TimerHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued.
func (h TimerHandle) Valid() bool { return h.h != 0 }

// TimerMode selects one-shot or periodic expiry.
type TimerMode uint8

const (
	// TimerOneShot fires once and goes inactive until started or reset.
	TimerOneShot TimerMode = iota
	// TimerPeriodic rearms itself from the previous deadline, so the
	// firing cadence does not drift with callback latency.
	TimerPeriodic
)

// TimerConfig describes a timer to create. The callback runs on the
// timer's own execution unit with no OSAL lock held; it may call any API
// except deleting its own timer.
type TimerConfig struct {
	Callback func(TimerHandle, any)
	Arg      any
	Name     string
	Period   time.Duration
	Mode     TimerMode
}

type timerState struct {
	mon *monitor

	name string
	cb   func(TimerHandle, any)
	arg  any

	// Guarded by mon. epoch invalidates an in-flight sleep whenever
	// start/stop/reset/set_period changes the schedule out from under it.
	period   time.Duration
	mode     TimerMode
	deadline time.Time
	epoch    uint64
	active   bool
	quit     bool

	done chan struct{}
}

// shutdown stops the timer's execution unit and waits for it to exit.
func (st *timerState) shutdown() {
	st.mon.lock()
	if st.quit {
		st.mon.unlock()
		<-st.done
		return
	}
	st.quit = true
	st.epoch++
	st.mon.broadcast()
	st.mon.unlock()
	<-st.done
}

// CreateTimer allocates a timer and its waiting context. The timer is
// created stopped; call StartTimer to arm it.
func (o *OSAL) CreateTimer(cfg TimerConfig) (TimerHandle, error) {
	const op = "timer.create"
	if err := o.checkOpen(op); err != nil {
		return TimerHandle{}, o.fail(err)
	}
	if cfg.Callback == nil {
		return TimerHandle{}, o.fail(errors.NullPtr(op, "callback"))
	}
	if cfg.Period <= 0 {
		return TimerHandle{}, o.fail(errors.InvalidParamf(op, "period %v", cfg.Period))
	}

	st := &timerState{
		mon:    newMonitor(),
		name:   cfg.Name,
		cb:     cfg.Callback,
		arg:    cfg.Arg,
		period: cfg.Period,
		mode:   cfg.Mode,
		done:   make(chan struct{}),
	}
	h, err := o.timers.Create(op, st)
	if err != nil {
		return TimerHandle{}, o.fail(err)
	}
	th := TimerHandle{h}

	go o.runTimer(th, st)
	return th, nil
}

// runTimer is the timer's dedicated waiting context. It sleeps until the
// absolute deadline (rearming from the old deadline keeps periodic timers
// drift-free) or until a control operation signals it, and it always
// invokes the callback outside the lock.
func (o *OSAL) runTimer(th TimerHandle, st *timerState) {
	st.mon.lock()
	for {
		for !st.active && !st.quit {
			st.mon.wait(waitSpan{forever: true})
		}
		if st.quit {
			break
		}

		ep := st.epoch
		signaled := st.mon.wait(waitSpan{deadline: st.deadline})
		if signaled || st.epoch != ep || !st.active || st.quit {
			// Schedule changed while sleeping; re-evaluate from scratch.
			continue
		}

		if st.mode == TimerPeriodic {
			st.deadline = st.deadline.Add(st.period)
		} else {
			st.active = false
		}
		cb, arg := st.cb, st.arg
		st.mon.unlock()

		cb(th, arg)

		st.mon.lock()
	}
	st.mon.unlock()
	close(st.done)
}

// DeleteTimer stops the timer, waits for its execution unit to exit, and
// releases the slot. Never call it from the timer's own callback.
func (o *OSAL) DeleteTimer(h TimerHandle) error {
	const op = "timer.delete"
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.shutdown()
	if _, err := o.timers.Remove(op, h.h); err != nil {
		return o.fail(err)
	}
	o.log.Debug("timer deleted", zap.String("name", st.name))
	return nil
}

// StartTimer arms the timer for one period from now. Starting an already
// active timer restarts it.
func (o *OSAL) StartTimer(h TimerHandle) error {
	return o.armTimer("timer.start", h)
}

// ResetTimer restarts the timer from now, whether or not it was active.
func (o *OSAL) ResetTimer(h TimerHandle) error {
	return o.armTimer("timer.reset", h)
}

func (o *OSAL) armTimer(op string, h TimerHandle) error {
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.quit {
		return o.fail(errors.InvalidState(op, "timer shutting down"))
	}
	st.active = true
	st.deadline = time.Now().Add(st.period)
	st.epoch++
	st.mon.broadcast()
	return nil
}

// StopTimer disarms the timer. A stopped timer fires nothing until it is
// started or reset again.
func (o *OSAL) StopTimer(h TimerHandle) error {
	const op = "timer.stop"
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.active = false
	st.epoch++
	st.mon.broadcast()
	return nil
}

// SetTimerPeriod changes the period. An active timer is rearmed
// immediately so the new period takes effect now rather than after one
// more old-period cycle; an inactive timer picks it up on the next start.
func (o *OSAL) SetTimerPeriod(h TimerHandle, period time.Duration) error {
	const op = "timer.set_period"
	if period <= 0 {
		return o.fail(errors.InvalidParamf(op, "period %v", period))
	}
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.period = period
	if st.active {
		st.deadline = time.Now().Add(period)
		st.epoch++
		st.mon.broadcast()
	}
	return nil
}

// TimerIsActive reports whether the timer is armed. Diagnostic read.
func (o *OSAL) TimerIsActive(h TimerHandle) (bool, error) {
	const op = "timer.is_active"
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return false, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.active, nil
}

// TimerPeriod returns the configured period. Diagnostic read.
func (o *OSAL) TimerPeriod(h TimerHandle) (time.Duration, error) {
	const op = "timer.get_period"
	st, err := o.timers.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.period, nil
}
