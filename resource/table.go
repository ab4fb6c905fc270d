package resource

import (
	"sync"

	"github.com/wippyai/osal/errors"
)

// Table is a fixed-capacity slot table for one resource kind. Slot
// allocation is a first-free linear scan; freeing a slot bumps its
// generation and zeroes the header so stale handles are rejected.
//
// The table lock covers only slot allocation, lookup, and release. It is
// never held across a blocking wait; steady-state operation on a resource
// happens under that resource's own lock.
type Table[T any] struct {
	mu        sync.Mutex
	slots     []slot[T]
	kind      Kind
	inUse     int
	watermark int
}

type slot[T any] struct {
	value *T
	gen   uint32
	used  bool
}

// NewTable creates a table for the given kind with a fixed capacity.
func NewTable[T any](kind Kind, capacity int) *Table[T] {
	return &Table[T]{
		kind:  kind,
		slots: make([]slot[T], capacity),
	}
}

// Create claims the first free slot for value and returns its handle.
func (t *Table[T]) Create(op string, value *T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].used {
			continue
		}
		t.slots[i].used = true
		t.slots[i].value = value
		t.inUse++
		if t.inUse > t.watermark {
			t.watermark = t.inUse
		}
		return makeHandle(t.kind, i, t.slots[i].gen), nil
	}

	return 0, errors.OutOfResources(op, t.kind.String()+" slot")
}

// Get validates the handle's kind tag, index, and generation against the
// table and returns the slot value.
func (t *Table[T]) Get(op string, h Handle) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(op, h)
}

// Remove validates the handle, clears the slot header, bumps the
// generation, and returns the evicted value.
func (t *Table[T]) Remove(op string, h Handle) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.lookup(op, h)
	if err != nil {
		return nil, err
	}

	s := &t.slots[h.Index()]
	s.used = false
	s.value = nil
	s.gen = (s.gen + 1) & genMask
	t.inUse--
	return v, nil
}

func (t *Table[T]) lookup(op string, h Handle) (*T, error) {
	if h == 0 {
		return nil, errors.InvalidHandle(op, "zero handle")
	}
	if h.Kind() != t.kind {
		return nil, errors.Newf(op, errors.CodeInvalidHandle,
			"kind mismatch: got %s, want %s", h.Kind(), t.kind)
	}
	idx := h.Index()
	if idx < 0 || idx >= len(t.slots) {
		return nil, errors.InvalidHandle(op, "index out of range")
	}
	s := &t.slots[idx]
	if !s.used {
		return nil, errors.InvalidHandle(op, "slot not in use")
	}
	if s.gen != h.Generation() {
		return nil, errors.InvalidHandle(op, "stale handle")
	}
	return s.value, nil
}

// Len returns the number of slots currently in use.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inUse
}

// Cap returns the fixed capacity of the table.
func (t *Table[T]) Cap() int {
	return len(t.slots)
}

// Watermark returns the peak slot usage observed since creation.
func (t *Table[T]) Watermark() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermark
}

// Each calls fn for every in-use slot until fn returns false. Values are
// collected under the table lock and visited after it is released, so fn
// may call back into the table.
func (t *Table[T]) Each(fn func(Handle, *T) bool) {
	type pair struct {
		v *T
		h Handle
	}

	t.mu.Lock()
	live := make([]pair, 0, t.inUse)
	for i := range t.slots {
		if t.slots[i].used {
			live = append(live, pair{t.slots[i].value, makeHandle(t.kind, i, t.slots[i].gen)})
		}
	}
	t.mu.Unlock()

	for _, p := range live {
		if !fn(p.h, p.v) {
			return
		}
	}
}
