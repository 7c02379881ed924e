// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue implements the unbounded frame FIFO between the sampling
// side and the muxer. Put never blocks and never drops; growth is the
// back-pressure signal.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/canvasrec/internal/frame"
)

var (
	// ErrTimeout is returned by Get when no frame arrived within the wait.
	// Callers re-check their stop condition and wait again.
	ErrTimeout = errors.New("queue: get timed out")
	// ErrClosed is returned by Put after Close, and by Get once the queue is
	// closed and fully drained.
	ErrClosed = errors.New("queue: closed")
)

// Queue is a thread-safe FIFO of frames.
type Queue struct {
	mu        sync.Mutex
	items     []*frame.Frame
	closed    bool
	highWater int

	notify chan struct{} // capacity 1, "something was added"
	done   chan struct{} // closed by Close
}

// New returns an empty open queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put appends f. It fails only when the queue has been closed.
func (q *Queue) Put(f *frame.Frame) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, f)
	if n := len(q.items); n > q.highWater {
		q.highWater = n
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

// Get removes and returns the oldest frame, waiting up to timeout for one.
// Buffered frames are still returned after Close; ErrClosed only once empty.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (*frame.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			f := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return f, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-timer.C:
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops accepting frames. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len reports the number of buffered frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HighWater reports the deepest the queue has been since creation.
func (q *Queue) HighWater() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWater
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
