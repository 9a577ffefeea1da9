package util

import (
	"container/heap"
	"errors"
	"sync"
)

var ErrPriorityQueueClosed = errors.New("priority queue closed")

// PriorityItem pairs a value with its scheduling priority.
type PriorityItem[T any] struct {
	Value    T
	Priority int // higher number means higher priority
	index    int
}

// PriorityQueue is a concurrency-safe max-heap with a blocking pop.
type PriorityQueue[T any] struct {
	items  itemHeap[T]
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

// NewPriorityQueue creates an empty priority queue.
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{}
	pq.cond = sync.NewCond(&pq.mu)
	return pq
}

// Push adds a value; it fails once the queue is closed.
func (pq *PriorityQueue[T]) Push(value T, priority int) error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return ErrPriorityQueueClosed
	}
	heap.Push(&pq.items, &PriorityItem[T]{Value: value, Priority: priority})
	pq.cond.Signal()
	return nil
}

// Pop blocks until a value is available or the queue is closed.
func (pq *PriorityQueue[T]) Pop() (T, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for len(pq.items) == 0 && !pq.closed {
		pq.cond.Wait()
	}
	var zero T
	if len(pq.items) == 0 {
		return zero, ErrPriorityQueueClosed
	}
	item := heap.Pop(&pq.items).(*PriorityItem[T])
	return item.Value, nil
}

// Close wakes all blocked consumers; queued items may still be drained.
func (pq *PriorityQueue[T]) Close() {
	pq.mu.Lock()
	pq.closed = true
	pq.mu.Unlock()
	pq.cond.Broadcast()
}

// Len reports the number of queued items.
func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

type itemHeap[T any] []*PriorityItem[T]

func (h itemHeap[T]) Len() int           { return len(h) }
func (h itemHeap[T]) Less(i, j int) bool { return h[i].Priority > h[j].Priority }
func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x interface{}) {
	item := x.(*PriorityItem[T])
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
