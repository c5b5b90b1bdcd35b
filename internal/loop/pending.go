package loop

import (
	"context"
	"sync"

	"github.com/XC-/lampgatt"
)

// A Reply is the outcome of a request forwarded to the server.
type Reply struct {
	Value  []byte
	Status gatt.Status
	Err    error
}

// Pending correlates forwarded requests with SendResponse calls by
// transaction id.
type Pending struct {
	mu   sync.Mutex
	next uint32
	m    map[uint32]chan Reply
}

func NewPending() *Pending {
	return &Pending{m: make(map[uint32]chan Reply)}
}

// Begin allocates a transaction id and the channel its reply arrives on.
func (p *Pending) Begin() (uint32, <-chan Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	ch := make(chan Reply, 1)
	p.m[p.next] = ch
	return p.next, ch
}

// Next allocates a transaction id nobody waits for.
func (p *Pending) Next() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return p.next
}

// Complete delivers r to the waiter of id. It reports false if id is
// unknown or was already completed or abandoned.
func (p *Pending) Complete(id uint32, r Reply) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.m[id]
	if !ok {
		return false
	}
	delete(p.m, id)
	ch <- r
	return true
}

// FailAll completes every outstanding transaction with err.
func (p *Pending) FailAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.m {
		ch <- Reply{Err: err}
		delete(p.m, id)
	}
}

// Len returns the number of outstanding transactions.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Wait blocks until the reply of id arrives or ctx is done; in the
// latter case id is abandoned.
func (p *Pending) Wait(ctx context.Context, id uint32, ch <-chan Reply) (Reply, error) {
	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.m, id)
		p.mu.Unlock()
		return Reply{}, ctx.Err()
	}
}
