// Package osal is an operating-system abstraction layer: a portable set
// of concurrency and resource-management primitives that let application
// and driver code run unmodified over different underlying schedulers.
// This package is the reference backend, mapping execution units onto
// goroutines; the observable contracts (blocking and timeout behavior,
// mutual exclusion, ordering, handle safety) are what a cooperative or
// RTOS backend must reproduce.
//
// # Architecture Overview
//
// The module is organized into a small set of packages:
//
//	osal/            Root package: instance, tasks, mutexes, semaphores,
//	                 queues, event groups, timers, ISR facade, diagnostics
//	├── errors/      Status codes and the structured error type
//	├── resource/    Fixed-capacity generation-counted slot tables
//	├── mem/         Tracked allocator with live statistics
//	└── cmd/osalmon  Demo workload with a live diagnostics TUI
//
// # Quick Start
//
//	o, err := osal.New(osal.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer o.Close()
//
//	q, _ := o.CreateQueue(8, 4, osal.QueueNormal)
//
//	task, _ := o.CreateTask(osal.TaskConfig{
//	    Name: "producer",
//	    Entry: func(t *osal.TaskRef, _ any) {
//	        for !t.ShouldExit() {
//	            _ = o.SendQueue(q, []byte{1, 2, 3, 4}, osal.WaitForever)
//	            if t.Delay(10*time.Millisecond) != nil {
//	                return
//	            }
//	        }
//	    },
//	})
//
//	item, err := o.ReceiveQueue(q, 100*time.Millisecond)
//	_ = o.DeleteTask(task)
//
// # Handles
//
// Every primitive is reached through an opaque, kind-specific handle
// backed by a fixed-capacity slot table. Lookups validate the kind tag
// and a per-slot generation, so a stale handle into a deleted-then-reused
// slot fails with invalid_handle instead of touching the new occupant.
//
// # Blocking and Timeouts
//
// Blocking operations take a time.Duration timeout with two sentinels:
// NoWait tries once and fails immediately, WaitForever blocks until
// satisfied. Timeout is an expected outcome to branch on, not an error
// condition to log. Operations are linearizable per resource; no ordering
// is guaranteed across different resources.
//
// # Cooperative Cancellation
//
// Suspend and delete requests are observed only at a task's own voluntary
// points: task start and its Delay/Yield calls. Nothing is preempted in
// flight. Task deletion joins the execution unit unless a task deletes
// itself, in which case the mark is left for the unit to act on.
//
// # Interrupt Context
//
// The ISR facade exposes only guaranteed non-blocking operations. On this
// hosted backend they alias the normal paths; the type boundary exists so
// a bare-metal backend cannot accidentally block in interrupt context.
package osal
