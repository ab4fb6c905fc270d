package resource

import (
	stderrors "errors"
	"testing"

	oserr "github.com/wippyai/osal/errors"
)

type payload struct {
	id int
}

func TestTable_CreateGetRemove(t *testing.T) {
	tb := NewTable[payload](KindMutex, 4)

	h, err := tb.Create("test.create", &payload{id: 7})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}
	if h.Kind() != KindMutex {
		t.Fatalf("Expected kind mutex, got %s", h.Kind())
	}

	v, err := tb.Get("test.get", h)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.id != 7 {
		t.Fatalf("Expected id 7, got %d", v.id)
	}

	v, err = tb.Remove("test.remove", h)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if v.id != 7 {
		t.Fatalf("Expected id 7, got %d", v.id)
	}
	if tb.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestTable_Exhaustion(t *testing.T) {
	tb := NewTable[payload](KindSemaphore, 2)

	for i := 0; i < 2; i++ {
		if _, err := tb.Create("test.create", &payload{id: i}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	_, err := tb.Create("test.create", &payload{})
	if !stderrors.Is(err, oserr.ErrOutOfResources) {
		t.Fatalf("Expected out_of_resources, got %v", err)
	}
}

func TestTable_SlotReuseAfterRemove(t *testing.T) {
	tb := NewTable[payload](KindQueue, 1)

	h1, _ := tb.Create("test.create", &payload{id: 1})
	if _, err := tb.Remove("test.remove", h1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	h2, err := tb.Create("test.create", &payload{id: 2})
	if err != nil {
		t.Fatalf("Create after Remove failed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("Reused slot must issue a different handle")
	}
}

func TestTable_StaleGeneration(t *testing.T) {
	tb := NewTable[payload](KindTask, 1)

	h1, _ := tb.Create("test.create", &payload{id: 1})
	tb.Remove("test.remove", h1)
	tb.Create("test.create", &payload{id: 2})

	// h1 points at the reused slot but carries the old generation.
	_, err := tb.Get("test.get", h1)
	if !stderrors.Is(err, oserr.ErrInvalidHandle) {
		t.Fatalf("Expected invalid_handle for stale handle, got %v", err)
	}
}

func TestTable_KindMismatch(t *testing.T) {
	mutexes := NewTable[payload](KindMutex, 2)
	sems := NewTable[payload](KindSemaphore, 2)

	h, _ := mutexes.Create("test.create", &payload{})
	_, err := sems.Get("test.get", h)
	if !stderrors.Is(err, oserr.ErrInvalidHandle) {
		t.Fatalf("Expected invalid_handle for kind mismatch, got %v", err)
	}
}

func TestTable_ZeroAndGarbageHandles(t *testing.T) {
	tb := NewTable[payload](KindTimer, 2)

	if _, err := tb.Get("test.get", 0); !stderrors.Is(err, oserr.ErrInvalidHandle) {
		t.Fatalf("Expected invalid_handle for zero handle, got %v", err)
	}
	if _, err := tb.Get("test.get", makeHandle(KindTimer, 99, 0)); !stderrors.Is(err, oserr.ErrInvalidHandle) {
		t.Fatalf("Expected invalid_handle for out-of-range index, got %v", err)
	}
	if _, err := tb.Remove("test.remove", makeHandle(KindTimer, 0, 3)); !stderrors.Is(err, oserr.ErrInvalidHandle) {
		t.Fatalf("Expected invalid_handle for unused slot, got %v", err)
	}
}

func TestTable_Watermark(t *testing.T) {
	tb := NewTable[payload](KindEventGroup, 4)

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, _ := tb.Create("test.create", &payload{id: i})
		handles = append(handles, h)
	}
	for _, h := range handles {
		tb.Remove("test.remove", h)
	}

	if tb.Len() != 0 {
		t.Fatal("Expected empty table")
	}
	if tb.Watermark() != 3 {
		t.Fatalf("Expected watermark 3, got %d", tb.Watermark())
	}
	if tb.Cap() != 4 {
		t.Fatalf("Expected cap 4, got %d", tb.Cap())
	}
}

func TestTable_Each(t *testing.T) {
	tb := NewTable[payload](KindMutex, 4)
	tb.Create("test.create", &payload{id: 1})
	h2, _ := tb.Create("test.create", &payload{id: 2})
	tb.Remove("test.remove", h2)

	seen := 0
	tb.Each(func(h Handle, v *payload) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Fatalf("Expected 1 live slot, got %d", seen)
	}
}
