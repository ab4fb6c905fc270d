package mem

import (
	"math"
	"sync"
	"unsafe"

	"github.com/wippyai/osal/errors"
)

const (
	liveMagic  = 0x4D454D41 // "MEMA", block is live and tracked
	freedMagic = 0x44454144 // "DEAD", block was released
)

// Stats is a snapshot of the tracker's live accounting.
type Stats struct {
	CurrentBytes  int
	PeakBytes     int
	CurrentBlocks int
	PeakBlocks    int
	TotalAllocs   uint64
	TotalFrees    uint64
}

// Block is a tracked allocation. The usable region is Bytes(); for aligned
// allocations it is offset into a larger backing slice that Free releases
// as a whole.
type Block struct {
	owner   *Tracker
	prev    *Block
	next    *Block
	backing []byte
	data    []byte
	magic   uint32
	align   int
}

// Bytes returns the usable region of the block.
func (b *Block) Bytes() []byte { return b.data }

// Size returns the usable size in bytes.
func (b *Block) Size() int { return len(b.data) }

// Align returns the requested alignment, or 0 for an unaligned allocation.
func (b *Block) Align() int { return b.align }

// Addr returns the address of the first usable byte.
func (b *Block) Addr() uintptr {
	if len(b.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.data[0]))
}

// Tracker wraps allocation with per-block headers linked into a doubly
// linked list, maintaining O(1) live statistics and supporting an
// integrity walk.
type Tracker struct {
	mu    sync.Mutex
	head  *Block
	tail  *Block
	stats Stats
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Alloc allocates a tracked block of size bytes. Zero and negative sizes
// fail with invalid_parameter.
func (t *Tracker) Alloc(size int) (*Block, error) {
	return t.alloc("mem.alloc", size, 0)
}

// Calloc allocates a zero-filled block of n*size bytes with an
// overflow-checked multiplication. Go allocations are always zeroed, so
// the zero-fill guarantee costs nothing extra here.
func (t *Tracker) Calloc(n, size int) (*Block, error) {
	const op = "mem.calloc"
	if n <= 0 || size <= 0 {
		return nil, errors.InvalidParamf(op, "count %d, size %d", n, size)
	}
	if n > math.MaxInt/size {
		return nil, errors.InvalidParamf(op, "%d*%d overflows", n, size)
	}
	return t.alloc(op, n*size, 0)
}

// AllocAligned allocates size bytes whose address is a multiple of align,
// which must be a power of two. The block keeps the original backing
// allocation so Free releases it in full.
func (t *Tracker) AllocAligned(align, size int) (*Block, error) {
	const op = "mem.alloc_aligned"
	if align <= 0 || align&(align-1) != 0 {
		return nil, errors.InvalidParamf(op, "alignment %d is not a power of two", align)
	}
	return t.alloc(op, size, align)
}

func (t *Tracker) alloc(op string, size, align int) (*Block, error) {
	if size <= 0 {
		return nil, errors.InvalidParamf(op, "size %d", size)
	}

	backing := make([]byte, size+align)
	data := backing[:size]
	if align > 1 {
		addr := uintptr(unsafe.Pointer(&backing[0]))
		off := int((-addr) & uintptr(align-1))
		data = backing[off : off+size]
	}

	b := &Block{
		owner:   t,
		backing: backing,
		data:    data,
		magic:   liveMagic,
		align:   align,
	}

	t.mu.Lock()
	b.prev = t.tail
	if t.tail != nil {
		t.tail.next = b
	} else {
		t.head = b
	}
	t.tail = b

	t.stats.CurrentBytes += size
	t.stats.CurrentBlocks++
	t.stats.TotalAllocs++
	if t.stats.CurrentBytes > t.stats.PeakBytes {
		t.stats.PeakBytes = t.stats.CurrentBytes
	}
	if t.stats.CurrentBlocks > t.stats.PeakBlocks {
		t.stats.PeakBlocks = t.stats.CurrentBlocks
	}
	t.mu.Unlock()

	return b, nil
}

// Free releases a tracked block. Freeing nil, a foreign block, or a block
// twice fails with invalid_handle.
func (t *Tracker) Free(b *Block) error {
	return t.free("mem.free", b)
}

// FreeAligned releases a block obtained from AllocAligned, recovering the
// original backing allocation.
func (t *Tracker) FreeAligned(b *Block) error {
	return t.free("mem.free_aligned", b)
}

func (t *Tracker) free(op string, b *Block) error {
	if b == nil {
		return errors.NullPtr(op, "block")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if b.magic != liveMagic || b.owner != t {
		return errors.InvalidHandle(op, "block is not live in this tracker")
	}

	if b.prev != nil {
		b.prev.next = b.next
	} else {
		t.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		t.tail = b.prev
	}

	t.stats.CurrentBytes -= len(b.data)
	t.stats.CurrentBlocks--
	t.stats.TotalFrees++

	b.magic = freedMagic
	b.prev = nil
	b.next = nil
	b.backing = nil
	b.data = nil
	return nil
}

// Realloc allocates a new block of newSize bytes, copies min(old, new)
// bytes from b, and frees b. It never resizes in place. On failure b is
// left untouched.
func (t *Tracker) Realloc(b *Block, newSize int) (*Block, error) {
	const op = "mem.realloc"
	if b == nil {
		return nil, errors.NullPtr(op, "block")
	}
	if b.magic != liveMagic || b.owner != t {
		return nil, errors.InvalidHandle(op, "block is not live in this tracker")
	}

	nb, err := t.alloc(op, newSize, b.align)
	if err != nil {
		return nil, err
	}
	copy(nb.data, b.data)
	if err := t.free(op, b); err != nil {
		return nil, err
	}
	return nb, nil
}

// GetStats returns a snapshot of the live accounting.
func (t *Tracker) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// CheckIntegrity walks the tracking list validating magic values, link
// consistency, and that the list totals match the statistics. It mutates
// nothing.
func (t *Tracker) CheckIntegrity() error {
	const op = "mem.check_integrity"

	t.mu.Lock()
	defer t.mu.Unlock()

	bytes, blocks := 0, 0
	var prev *Block
	for b := t.head; b != nil; b = b.next {
		if b.magic != liveMagic {
			return errors.InvalidState(op, "corrupt block magic")
		}
		if b.prev != prev {
			return errors.InvalidState(op, "broken back-link")
		}
		bytes += len(b.data)
		blocks++
		prev = b
	}
	if t.tail != prev {
		return errors.InvalidState(op, "tail does not terminate list")
	}
	if bytes != t.stats.CurrentBytes || blocks != t.stats.CurrentBlocks {
		return errors.InvalidState(op, "list totals disagree with statistics")
	}
	return nil
}
