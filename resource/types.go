package resource

// Kind tags a handle with the resource type it refers to. Every lookup
// checks the tag before touching the slot, so a handle of one kind can
// never dereference a slot of another.
type Kind uint8

const (
	KindNone Kind = iota
	KindTask
	KindMutex
	KindSemaphore
	KindQueue
	KindEventGroup
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindMutex:
		return "mutex"
	case KindSemaphore:
		return "semaphore"
	case KindQueue:
		return "queue"
	case KindEventGroup:
		return "event_group"
	case KindTimer:
		return "timer"
	default:
		return "none"
	}
}

// Handle is an opaque reference to a table slot. Handle 0 is reserved and
// always invalid. The packed layout is:
//
//	bits 40..47  kind tag
//	bits 32..39  reserved (zero)
//	bits 24..31  slot generation
//	bits  0..23  slot index + 1
//
// The generation is bumped every time a slot is freed, so a handle into a
// deleted-then-reused slot fails validation instead of silently matching
// the new occupant.
type Handle uint64

const (
	indexBits = 24
	indexMask = (1 << indexBits) - 1
	genBits   = 8
	genMask   = (1 << genBits) - 1
)

func makeHandle(kind Kind, index int, gen uint32) Handle {
	return Handle(uint64(kind)<<40 | uint64(gen&genMask)<<indexBits | uint64(index+1)&indexMask)
}

// Kind returns the resource kind encoded in the handle.
func (h Handle) Kind() Kind {
	return Kind(h >> 40)
}

// Index returns the slot index encoded in the handle, or -1 for the zero
// handle.
func (h Handle) Index() int {
	return int(h&indexMask) - 1
}

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint32 {
	return uint32(h>>indexBits) & genMask
}
