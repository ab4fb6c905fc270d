// Package resource provides the fixed-capacity slot tables backing every
// OSAL handle.
//
// Each resource kind (task, mutex, semaphore, queue, event group, timer)
// gets its own Table. Handles pack a kind tag, slot index, and slot
// generation into one opaque value:
//
//	table := resource.NewTable[myState](resource.KindMutex, 64)
//
//	h, err := table.Create("mutex.create", &myState{})
//	st, err := table.Get("mutex.lock", h)
//	_, err = table.Remove("mutex.delete", h)
//
// # Validation
//
// Every lookup checks the kind tag and the slot generation. A handle into
// a slot that was deleted and reused fails with invalid_handle instead of
// silently aliasing the new occupant.
//
// # Locking
//
// The table lock guards slot allocation, lookup, and release only. It is
// held for the duration of a scan, never across a blocking wait. Blocking
// behavior lives entirely in the per-resource state the table hands out,
// which gives the OSAL its two-level locking design.
package resource
