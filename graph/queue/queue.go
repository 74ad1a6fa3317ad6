// Package queue wraps graph/heap in the small surface the scheduler needs.
package queue

import (
	"iter"

	"github.com/dshills/lazygraph-go/graph/heap"
)

// PriorityQueue is a min-queue ordered by a heap.Comparator. Items that rank
// first according to the comparator are polled first.
//
// PriorityQueue is not safe for concurrent use.
type PriorityQueue[T comparable] struct {
	h *heap.IndexedHeap[T]
}

// New creates an empty PriorityQueue. When duplicate is false, pushing an item
// already in the queue re-sifts it instead of adding a second entry.
func New[T comparable](cmp heap.Comparator[T], duplicate bool) *PriorityQueue[T] {
	return &PriorityQueue[T]{h: heap.New(cmp, heap.AllowDuplicates(duplicate))}
}

// Push adds items and returns the queue for chaining.
func (q *PriorityQueue[T]) Push(items ...T) *PriorityQueue[T] {
	for _, it := range items {
		q.h.Push(it)
	}
	return q
}

// Poll removes and returns the head.
func (q *PriorityQueue[T]) Poll() (T, bool) { return q.h.Poll() }

// Peek returns the head without removing it.
func (q *PriorityQueue[T]) Peek() (T, bool) { return q.h.Peek() }

// Remove deletes item wherever it sits in the queue.
func (q *PriorityQueue[T]) Remove(item T) bool { return q.h.Remove(item) }

// Has reports whether item is queued.
func (q *PriorityQueue[T]) Has(item T) bool { return q.h.Has(item) }

// Rebuild re-heapifies after the keys read by the comparator changed.
func (q *PriorityQueue[T]) Rebuild() { q.h.Rebuild() }

// Clear empties the queue.
func (q *PriorityQueue[T]) Clear() { q.h.Clear() }

// Len returns the number of queued items.
func (q *PriorityQueue[T]) Len() int { return q.h.Len() }

// Items returns a snapshot of the queued items in heap position order.
func (q *PriorityQueue[T]) Items() []T { return q.h.Items() }

// All iterates over a snapshot of the queued items. Order is heap position,
// not priority order; the queue may be modified during iteration.
func (q *PriorityQueue[T]) All() iter.Seq[T] {
	items := q.h.Items()
	return func(yield func(T) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}
