package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(gatt.Interface, gatt.Event)

func (f handlerFunc) HandleEvent(iface gatt.Interface, ev gatt.Event) { f(iface, ev) }

func TestQueueFlushInOrder(t *testing.T) {
	q := NewQueue()
	var got []gatt.Event
	h := handlerFunc(func(iface gatt.Interface, ev gatt.Event) {
		got = append(got, ev)
		if r, ok := ev.(gatt.RegisterEvent); ok && r.AppID == 1 {
			q.Post(iface, gatt.StartEvent{ServiceHandle: 40})
		}
	})

	q.Post(3, gatt.RegisterEvent{AppID: 1})
	q.Post(3, gatt.RegisterEvent{AppID: 2})
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3, q.Flush(h))
	assert.Equal(t, []gatt.Event{
		gatt.RegisterEvent{AppID: 1},
		gatt.RegisterEvent{AppID: 2},
		gatt.StartEvent{ServiceHandle: 40},
	}, got)
	assert.Zero(t, q.Flush(h))
}

func TestQueueRun(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	var ifaces []gatt.Interface
	h := handlerFunc(func(iface gatt.Interface, ev gatt.Event) {
		mu.Lock()
		ifaces = append(ifaces, iface)
		mu.Unlock()
	})
	q.Post(1, gatt.AdvStartEvent{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx, h) }()

	for i := gatt.Interface(2); i <= 5; i++ {
		q.Post(i, gatt.AdvStartEvent{})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ifaces) == 5
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []gatt.Interface{1, 2, 3, 4, 5}, ifaces)
}

func TestPending(t *testing.T) {
	p := NewPending()
	id, ch := p.Begin()
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, uint32(2), p.Next())
	assert.Equal(t, 1, p.Len())

	assert.False(t, p.Complete(2, Reply{}))
	assert.True(t, p.Complete(id, Reply{Value: []byte{1}, Status: gatt.StatusInvalidOffset}))
	assert.False(t, p.Complete(id, Reply{}), "completed once")

	r, err := p.Wait(context.Background(), id, ch)
	require.NoError(t, err)
	assert.Equal(t, Reply{Value: []byte{1}, Status: gatt.StatusInvalidOffset}, r)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	id, ch = p.Begin()
	_, err = p.Wait(ctx, id, ch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, p.Complete(id, Reply{}), "abandoned")

	lost := errors.New("lost")
	id1, ch1 := p.Begin()
	id2, ch2 := p.Begin()
	p.FailAll(lost)
	_, err = p.Wait(context.Background(), id1, ch1)
	assert.ErrorIs(t, err, lost)
	_, err = p.Wait(context.Background(), id2, ch2)
	assert.ErrorIs(t, err, lost)
	assert.Zero(t, p.Len())
}
