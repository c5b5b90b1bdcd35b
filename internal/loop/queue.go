// Package loop holds the event plumbing shared by the controller
// backends: a FIFO event queue drained by a single goroutine, and a table
// of requests waiting for their response.
package loop

import (
	"context"
	"sync"

	"github.com/XC-/lampgatt"
)

type item struct {
	iface gatt.Interface
	ev    gatt.Event
}

// A Queue holds controller events until they are delivered. Post never
// blocks, so it is safe to call from the goroutine that delivers.
type Queue struct {
	mu    sync.Mutex
	items []item
	wake  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Post appends ev, to be delivered for iface.
func (q *Queue) Post(iface gatt.Interface, ev gatt.Event) {
	q.mu.Lock()
	q.items = append(q.items, item{iface: iface, ev: ev})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items[0] = item{}
	q.items = q.items[1:]
	return it, true
}

// Run delivers events to h, one at a time and in order, until ctx is
// done. Events posted before Run are delivered first.
func (q *Queue) Run(ctx context.Context, h gatt.EventHandler) error {
	for {
		it, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			}
			continue
		}
		h.HandleEvent(it.iface, it.ev)
	}
}

// Flush delivers events to h until the queue is empty, including the
// ones posted while handling them, and returns how many were delivered.
// It must not run concurrently with Run.
func (q *Queue) Flush(h gatt.EventHandler) int {
	n := 0
	for {
		it, ok := q.pop()
		if !ok {
			return n
		}
		h.HandleEvent(it.iface, it.ev)
		n++
	}
}
