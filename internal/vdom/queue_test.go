package vdom

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	var order []int
	for i := 1; i <= 3; i++ {
		q.Enqueue(event{fn: func() { order = append(order, i) }})
	}

	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		e.fn()
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignals(t *testing.T) {
	q := newEventQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(event{})
	}()

	select {
	case <-q.Wait():
		assert.Equal(t, 1, q.Len())
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(event{}), "enqueue after close should return false")

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(event{})
	q.Enqueue(event{})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				assert.True(t, q.Enqueue(event{}))
			}
		}()
	}
	wg.Wait()

	n := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, producers*eventsPerProducer, n)
}
