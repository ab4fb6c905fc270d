// Package mem provides the OSAL's tracked allocator.
//
// Every allocation carries a header linked into a doubly linked list, so
// live byte/block counts and peak watermarks are maintained in O(1) and
// the whole set of outstanding allocations can be verified with
// CheckIntegrity.
//
//	t := mem.NewTracker()
//
//	b, _ := t.Alloc(256)
//	a, _ := t.AllocAligned(64, 100) // a.Addr()%64 == 0
//	b, _ = t.Realloc(b, 512)        // fresh block, first 256 bytes preserved
//	_ = t.Free(b)
//	_ = t.FreeAligned(a)
//
// Aligned allocations over-allocate and offset the usable region to the
// next multiple of the alignment; the block retains the original backing
// slice so Free releases all of it. Realloc always allocates fresh and
// copies, never resizing in place. Double frees and frees of blocks from
// another tracker fail with invalid_handle rather than corrupting the list.
package mem
