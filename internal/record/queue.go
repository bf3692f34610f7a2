package record

import (
	"sync"
	"sync/atomic"

	"github.com/openwaters/helmsman/internal/monitoring"
)

// Queue is the bounded frame buffer between the synchronizer and the
// writer. When full, the oldest frame is discarded to make room for the
// newest, so a slow consumer degrades recording continuity rather than
// freshness. Dropped frames are counted, never silently lost.
type Queue struct {
	mu     sync.Mutex
	frames chan Frame
	closed bool

	dropped atomic.Uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{frames: make(chan Frame, capacity)}
}

// Push enqueues a frame, evicting the oldest entry if the queue is
// full. Push never blocks. Returns false once the queue is closed.
func (q *Queue) Push(frame Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	for {
		select {
		case q.frames <- frame:
			return true
		default:
		}
		select {
		case <-q.frames:
			q.dropped.Add(1)
			monitoring.FramesDropped.Inc()
		default:
		}
	}
}

// Frames returns the receive side of the queue. The channel closes
// after Close once drained.
func (q *Queue) Frames() <-chan Frame {
	return q.frames
}

// Dropped reports how many frames were evicted since creation.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue. Buffered frames remain readable; subsequent
// pushes are rejected.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.frames)
}
