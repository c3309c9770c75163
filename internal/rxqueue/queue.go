// Package rxqueue implements the bounded FIFO of received CAN frames that
// sits between the ReaderTask and Channel.Read. Sibling in concurrency
// style to internal/waitbuf (mutex + condition variable) but multi-slot
// and overrun-tracking rather than single-slot and busy-rejecting.
package rxqueue

import (
	"errors"
	"sync"
	"time"

	"github.com/slcan-go/slcan/internal/frame"
)

// ErrEmpty is returned by a non-blocking Pop that finds nothing queued.
var ErrEmpty = errors.New("rxqueue: empty")

// ErrTimedOut is returned when Pop's deadline elapses with nothing queued.
var ErrTimedOut = errors.New("rxqueue: timed out")

// Queue is a bounded ring buffer of frame.Frame with blocking Pop.
// Overflow retains the oldest frames and drops the newest, latching an
// overrun flag observable via Overrun/ClearOverrun.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []frame.Frame
	head     int
	count    int
	overrun  bool
	dropped  uint64
	canceled bool
}

// New creates a Queue with the given bounded capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{buf: make([]frame.Frame, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues fr. If the queue is full, the new frame is dropped (the
// oldest frames are retained) and the overrun bit latches; Push never
// blocks the ReaderTask. It reports whether fr was dropped, so a caller
// can count actual drops rather than poll the latched Overrun bit.
func (q *Queue) Push(fr frame.Frame) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		q.overrun = true
		q.dropped++
		return true
	}
	idx := (q.head + q.count) % len(q.buf)
	q.buf[idx] = fr
	q.count++
	q.cond.Signal()
	return false
}

// Pop removes the oldest frame, waiting up to timeout if the queue is
// empty. timeout == 0 polls; a negative timeout blocks indefinitely.
func (q *Queue) Pop(timeout time.Duration) (frame.Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count > 0 {
		return q.popLocked(), nil
	}
	if timeout == 0 {
		return frame.Frame{}, ErrEmpty
	}

	if timeout < 0 {
		for q.count == 0 {
			if q.canceled {
				return frame.Frame{}, ErrEmpty
			}
			q.cond.Wait()
		}
		return q.popLocked(), nil
	}

	deadline := time.Now().Add(timeout)
	for q.count == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frame.Frame{}, ErrTimedOut
		}
		if !q.timedWaitLocked(remaining) {
			if q.count == 0 {
				return frame.Frame{}, ErrTimedOut
			}
		}
		if q.canceled && q.count == 0 {
			return frame.Frame{}, ErrEmpty
		}
	}
	return q.popLocked(), nil
}

func (q *Queue) popLocked() frame.Frame {
	fr := q.buf[q.head]
	q.buf[q.head] = frame.Frame{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return fr
}

// timedWaitLocked blocks on the condition for at most d; caller holds q.mu.
func (q *Queue) timedWaitLocked(d time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		close(done)
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	q.cond.Wait()
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Cancel wakes every blocked Pop so a teardown can join the reader task
// promptly; subsequent Pop calls behave normally once new frames arrive.
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.canceled = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Overrun reports whether a frame has been dropped since the last
// ClearOverrun, for Channel.Status's queue_overrun bit.
func (q *Queue) Overrun() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overrun
}

// ClearOverrun resets the latched overrun bit after the caller has observed
// it; it only ever clears on an explicit call, never implicitly on drain.
func (q *Queue) ClearOverrun() {
	q.mu.Lock()
	q.overrun = false
	q.mu.Unlock()
}

// Dropped returns the cumulative count of frames lost to overrun.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear empties the queue without affecting the overrun bit.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.head, q.count = 0, 0
	q.mu.Unlock()
}
