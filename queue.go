package osal

import (
	"time"

	"github.com/gammazero/deque"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/resource"
)

// QueueHandle is an opaque reference to a message queue slot.
type QueueHandle struct{ h resource.Handle }

// Valid reports whether the handle was ever issued.
func (h QueueHandle) Valid() bool { return h.h != 0 }

// QueueMode selects the behavior of a send against a full queue.
type QueueMode uint8

const (
	// QueueNormal blocks (or fails) a send while the queue is full.
	QueueNormal QueueMode = iota
	// QueueOverwrite drops the oldest item to make room; sends never block.
	QueueOverwrite
)

// waitFIFO hands out tickets so blocked callers are served in arrival
// order. All methods are called under the owning resource's lock.
type waitFIFO struct {
	q    deque.Deque[uint64]
	next uint64
}

func (w *waitFIFO) enqueue() uint64 {
	t := w.next
	w.next++
	w.q.PushBack(t)
	return t
}

func (w *waitFIFO) isFront(t uint64) bool {
	return w.q.Len() > 0 && w.q.Front() == t
}

func (w *waitFIFO) remove(t uint64) {
	for i := 0; i < w.q.Len(); i++ {
		if w.q.At(i) == t {
			w.q.Remove(i)
			return
		}
	}
}

type queueState struct {
	mon *monitor

	// Guarded by mon.
	buf       []byte
	head      int
	count     int
	itemSize  int
	capacity  int
	mode      QueueMode
	senders   waitFIFO
	receivers waitFIFO
}

func (st *queueState) slot(i int) []byte {
	off := ((st.head + i) % st.capacity) * st.itemSize
	return st.buf[off : off+st.itemSize]
}

// CreateQueue allocates a fixed-capacity queue of fixed-size items.
func (o *OSAL) CreateQueue(capacity, itemSize int, mode QueueMode) (QueueHandle, error) {
	const op = "queue.create"
	if err := o.checkOpen(op); err != nil {
		return QueueHandle{}, o.fail(err)
	}
	if capacity <= 0 || itemSize <= 0 {
		return QueueHandle{}, o.fail(errors.InvalidParamf(op, "capacity %d, item size %d", capacity, itemSize))
	}
	if mode != QueueNormal && mode != QueueOverwrite {
		return QueueHandle{}, o.fail(errors.InvalidParam(op, "unknown queue mode"))
	}

	st := &queueState{
		mon:      newMonitor(),
		buf:      make([]byte, capacity*itemSize),
		itemSize: itemSize,
		capacity: capacity,
		mode:     mode,
	}
	h, err := o.queues.Create(op, st)
	if err != nil {
		return QueueHandle{}, o.fail(err)
	}
	return QueueHandle{h}, nil
}

// DeleteQueue releases the queue slot and discards its contents.
func (o *OSAL) DeleteQueue(h QueueHandle) error {
	const op = "queue.delete"
	if _, err := o.queues.Remove(op, h.h); err != nil {
		return o.fail(err)
	}
	return nil
}

// SendQueue appends an item at the tail, blocking while the queue is full
// (normal mode) or dropping the oldest item (overwrite mode). A no-wait
// send against a full normal-mode queue fails with Full.
func (o *OSAL) SendQueue(h QueueHandle, item []byte, timeout time.Duration) error {
	return o.send("queue.send", h, item, timeout, false)
}

// SendQueueFront inserts an item at the head, ahead of everything queued.
// Blocking and overwrite behavior match SendQueue, except overwrite mode
// replaces the current head item.
func (o *OSAL) SendQueueFront(h QueueHandle, item []byte, timeout time.Duration) error {
	return o.send("queue.send_front", h, item, timeout, true)
}

func (o *OSAL) send(op string, h QueueHandle, item []byte, timeout time.Duration, front bool) error {
	st, err := o.queues.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}
	if item == nil {
		return o.fail(errors.NullPtr(op, "item"))
	}
	if len(item) != st.itemSize {
		return o.fail(errors.InvalidParamf(op, "item length %d, queue item size %d", len(item), st.itemSize))
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.mode == QueueOverwrite && st.count == st.capacity {
		if front {
			copy(st.slot(0), item)
		} else {
			// Drop the oldest to make room at the tail.
			st.head = (st.head + 1) % st.capacity
			copy(st.slot(st.count-1), item)
		}
		st.mon.broadcast()
		return nil
	}

	// Queued waiters go first; a fresh blocking sender may not barge.
	if st.count == st.capacity || (timeout != NoWait && st.senders.q.Len() > 0) {
		if timeout == NoWait {
			return errors.Full(op)
		}

		unblock := o.markBlocked()
		defer unblock()
		ticket := st.senders.enqueue()
		w := newWaitSpan(timeout)
		for st.count == st.capacity || !st.senders.isFront(ticket) {
			if !st.mon.wait(w) && (st.count == st.capacity || !st.senders.isFront(ticket)) {
				st.senders.remove(ticket)
				st.mon.broadcast() // the next sender may now be at the front
				return errors.Timeout(op)
			}
		}
		st.senders.remove(ticket)
	}

	if front {
		st.head = (st.head - 1 + st.capacity) % st.capacity
		copy(st.slot(0), item)
	} else {
		copy(st.slot(st.count), item)
	}
	st.count++
	st.mon.broadcast()
	return nil
}

// ReceiveQueue removes and returns the head item, blocking while the
// queue is empty. A no-wait receive against an empty queue fails with
// Empty.
func (o *OSAL) ReceiveQueue(h QueueHandle, timeout time.Duration) ([]byte, error) {
	const op = "queue.receive"
	st, err := o.queues.Get(op, h.h)
	if err != nil {
		return nil, o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.count == 0 || (timeout != NoWait && st.receivers.q.Len() > 0) {
		if timeout == NoWait {
			return nil, errors.Empty(op)
		}

		unblock := o.markBlocked()
		defer unblock()
		ticket := st.receivers.enqueue()
		w := newWaitSpan(timeout)
		for st.count == 0 || !st.receivers.isFront(ticket) {
			if !st.mon.wait(w) && (st.count == 0 || !st.receivers.isFront(ticket)) {
				st.receivers.remove(ticket)
				st.mon.broadcast()
				return nil, errors.Timeout(op)
			}
		}
		st.receivers.remove(ticket)
	}

	item := make([]byte, st.itemSize)
	copy(item, st.slot(0))
	st.head = (st.head + 1) % st.capacity
	st.count--
	st.mon.broadcast()
	return item, nil
}

// PeekQueue copies the head item without removing it. It never blocks;
// an empty queue fails with Empty.
func (o *OSAL) PeekQueue(h QueueHandle) ([]byte, error) {
	const op = "queue.peek"
	st, err := o.queues.Get(op, h.h)
	if err != nil {
		return nil, o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	if st.count == 0 {
		return nil, errors.Empty(op)
	}
	item := make([]byte, st.itemSize)
	copy(item, st.slot(0))
	return item, nil
}

// ResetQueue discards all buffered items and wakes blocked senders.
func (o *OSAL) ResetQueue(h QueueHandle) error {
	const op = "queue.reset"
	st, err := o.queues.Get(op, h.h)
	if err != nil {
		return o.fail(err)
	}

	st.mon.lock()
	defer st.mon.unlock()

	st.head = 0
	st.count = 0
	st.mon.broadcast()
	return nil
}

// QueueCount returns the number of buffered items. Diagnostic read.
func (o *OSAL) QueueCount(h QueueHandle) (int, error) {
	const op = "queue.get_count"
	st, err := o.queues.Get(op, h.h)
	if err != nil {
		return 0, o.fail(err)
	}
	st.mon.lock()
	defer st.mon.unlock()
	return st.count, nil
}
