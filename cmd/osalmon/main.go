package main

import (
	"encoding/binary"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/wippyai/osal"
	oserr "github.com/wippyai/osal/errors"
)

const (
	bitHeartbeat = osal.EventBits(0x1)
	bitConsumed  = osal.EventBits(0x2)
)

func main() {
	var (
		producers   = flag.Int("producers", 2, "Number of producer tasks")
		consumers   = flag.Int("consumers", 2, "Number of consumer tasks")
		permits     = flag.Int("permits", 2, "Worker permits (semaphore count)")
		depth       = flag.Int("depth", 8, "Queue depth in items")
		overwrite   = flag.Bool("overwrite", false, "Use overwrite mode instead of blocking sends")
		rate        = flag.Duration("rate", 5*time.Millisecond, "Delay between produced items")
		duration    = flag.Duration("duration", 3*time.Second, "How long to run the workload")
		interval    = flag.Duration("interval", time.Second, "Snapshot print interval")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := workloadConfig{
		producers: *producers,
		consumers: *consumers,
		permits:   *permits,
		depth:     *depth,
		overwrite: *overwrite,
		rate:      *rate,
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *duration, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type workloadConfig struct {
	producers int
	consumers int
	permits   int
	depth     int
	overwrite bool
	rate      time.Duration
}

// workload drives every primitive at once: producer tasks feed a queue,
// consumer tasks drain it under a semaphore throttle, a mutex guards the
// per-producer totals, a periodic timer raises a heartbeat event bit, and
// a couple of tracked allocations keep the allocator stats moving.
type workload struct {
	o   *osal.OSAL
	cfg workloadConfig

	queue osal.QueueHandle
	sem   osal.SemHandle
	group osal.EventHandle
	mutex osal.MutexHandle

	produced   atomic.Int64
	consumed   atomic.Int64
	dropped    atomic.Int64
	heartbeats atomic.Int64

	totals []int64 // guarded by mutex
}

func startWorkload(cfg workloadConfig) (*workload, error) {
	o, err := osal.New(osal.Options{})
	if err != nil {
		return nil, err
	}

	w := &workload{o: o, cfg: cfg, totals: make([]int64, cfg.producers)}

	mode := osal.QueueNormal
	if cfg.overwrite {
		mode = osal.QueueOverwrite
	}
	if w.queue, err = o.CreateQueue(cfg.depth, 8, mode); err != nil {
		return nil, err
	}
	if w.sem, err = o.CreateSemaphore(uint32(cfg.permits), uint32(cfg.permits)); err != nil {
		return nil, err
	}
	if w.group, err = o.CreateEventGroup(); err != nil {
		return nil, err
	}
	if w.mutex, err = o.CreateMutex(); err != nil {
		return nil, err
	}

	// The heartbeat callback runs on the timer's own goroutine, so it
	// goes through the non-blocking facade.
	heartbeat, err := o.CreateTimer(osal.TimerConfig{
		Name:   "heartbeat",
		Period: 500 * time.Millisecond,
		Mode:   osal.TimerPeriodic,
		Callback: func(osal.TimerHandle, any) {
			w.heartbeats.Add(1)
			_ = o.ISR().SetEvents(w.group, bitHeartbeat)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := o.StartTimer(heartbeat); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.producers; i++ {
		id := uint32(i)
		_, err := o.CreateTask(osal.TaskConfig{
			Name:     fmt.Sprintf("producer-%d", i),
			Priority: 10,
			Entry:    func(ref *osal.TaskRef, _ any) { w.produce(ref, id) },
		})
		if err != nil {
			return nil, err
		}
	}
	for i := 0; i < cfg.consumers; i++ {
		_, err := o.CreateTask(osal.TaskConfig{
			Name:     fmt.Sprintf("consumer-%d", i),
			Priority: 8,
			Entry:    w.consume,
		})
		if err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *workload) produce(ref *osal.TaskRef, id uint32) {
	item := make([]byte, 8)
	var seq uint32
	for {
		binary.LittleEndian.PutUint32(item[0:], id)
		binary.LittleEndian.PutUint32(item[4:], seq)

		err := w.o.SendQueue(w.queue, item, 100*time.Millisecond)
		switch {
		case err == nil:
			seq++
			w.produced.Add(1)
		case stderrors.Is(err, oserr.ErrTimeout):
			w.dropped.Add(1)
		default:
			return
		}

		if ref.Delay(w.cfg.rate) != nil {
			return
		}
	}
}

func (w *workload) consume(ref *osal.TaskRef, _ any) {
	for {
		item, err := w.o.ReceiveQueue(w.queue, 100*time.Millisecond)
		if err != nil {
			if !stderrors.Is(err, oserr.ErrTimeout) {
				return
			}
			if ref.Yield() != nil {
				return
			}
			continue
		}

		if w.o.TakeSemaphore(w.sem, osal.WaitForever) != nil {
			return
		}
		id := binary.LittleEndian.Uint32(item[0:])

		if w.o.LockMutex(w.mutex, osal.WaitForever) == nil {
			w.totals[id]++
			_ = w.o.UnlockMutex(w.mutex)
		}

		// Simulated per-item work while holding a permit.
		delayErr := ref.Delay(2 * time.Millisecond)
		_ = w.o.GiveSemaphore(w.sem)
		w.consumed.Add(1)
		_ = w.o.SetEvents(w.group, bitConsumed)
		if delayErr != nil {
			return
		}
	}
}

func (w *workload) stop() error {
	return w.o.Close()
}

func run(cfg workloadConfig, duration, interval time.Duration) error {
	w, err := startWorkload(cfg)
	if err != nil {
		return err
	}
	defer w.stop()

	fmt.Printf("Workload: %d producers, %d consumers, %d permits, queue depth %d\n",
		cfg.producers, cfg.consumers, cfg.permits, cfg.depth)

	// A couple of tracked allocations so the memory stats are non-trivial.
	scratch, err := w.o.Memory().AllocAligned(64, 4096)
	if err != nil {
		return err
	}
	defer w.o.Memory().Free(scratch)

	// Wait for the pipeline to move before reporting anything.
	if _, err := w.o.WaitEvents(w.group, bitConsumed, osal.WaitAll, false, 5*time.Second); err != nil {
		return fmt.Errorf("pipeline never produced a consumed item: %w", err)
	}

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		step := interval
		if rem := time.Until(deadline); rem < step {
			step = rem
		}
		time.Sleep(step)
		printSnapshot(w)
	}

	fmt.Printf("\nFinal totals per producer:\n")
	if err := w.o.LockMutex(w.mutex, osal.WaitForever); err != nil {
		return err
	}
	for i, n := range w.totals {
		fmt.Printf("  producer-%d: %d items\n", i, n)
	}
	if err := w.o.UnlockMutex(w.mutex); err != nil {
		return err
	}

	if errs := w.o.RecentErrors(); len(errs) > 0 {
		fmt.Printf("\nRecent errors:\n")
		for _, e := range errs {
			fmt.Printf("  %s %s: %v\n", e.At.Format(time.TimeOnly), e.Op, e.Err)
		}
	}

	if err := w.o.Memory().CheckIntegrity(); err != nil {
		return fmt.Errorf("allocator integrity: %w", err)
	}
	return nil
}

func printSnapshot(w *workload) {
	d := w.o.Snapshot()
	fmt.Printf("\nproduced=%d consumed=%d dropped=%d heartbeats=%d\n",
		w.produced.Load(), w.consumed.Load(), w.dropped.Load(), w.heartbeats.Load())
	fmt.Printf("%-12s %6s %6s %6s\n", "kind", "in-use", "cap", "peak")
	for _, row := range []struct {
		name string
		ks   osal.KindStats
	}{
		{"tasks", d.Tasks},
		{"mutexes", d.Mutexes},
		{"semaphores", d.Semaphores},
		{"queues", d.Queues},
		{"events", d.EventGroups},
		{"timers", d.Timers},
	} {
		fmt.Printf("%-12s %6d %6d %6d\n", row.name, row.ks.InUse, row.ks.Capacity, row.ks.Watermark)
	}
	fmt.Printf("memory: %d bytes in %d blocks (peak %d bytes)\n",
		d.Memory.CurrentBytes, d.Memory.CurrentBlocks, d.Memory.PeakBytes)
}
