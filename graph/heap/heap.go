// Package heap provides a binary heap with identity-indexed removal and update.
package heap

import "container/heap"

// Comparator orders two items. A negative result means a ranks before b.
type Comparator[T any] func(a, b T) int

// IndexedHeap is a binary heap ordered by a Comparator.
//
// Unlike a plain container/heap slice, IndexedHeap keeps an item-to-index map
// so that an arbitrary element (not just the root) can be removed or re-sifted
// in O(log n). This is what makes reweighting possible: when an item's key
// changes after insertion, Fix or Push moves it to its new position without a
// full rebuild.
//
// When duplicates are disabled (the default), pushing an item that is already
// present updates it in place instead of inserting a second copy. When
// duplicates are enabled the index map is not maintained and Has, Remove and
// Fix fall back to a linear scan.
//
// IndexedHeap is not safe for concurrent use.
type IndexedHeap[T comparable] struct {
	h          *binary[T]
	duplicates bool
}

// Option configures an IndexedHeap.
type Option func(*options)

type options struct {
	duplicates bool
}

// AllowDuplicates controls whether the same item may be pushed more than once.
func AllowDuplicates(allow bool) Option {
	return func(o *options) {
		o.duplicates = allow
	}
}

// New creates an empty IndexedHeap ordered by cmp.
func New[T comparable](cmp Comparator[T], opts ...Option) *IndexedHeap[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := &binary[T]{cmp: cmp}
	if !o.duplicates {
		b.index = make(map[T]int)
	}
	return &IndexedHeap[T]{h: b, duplicates: o.duplicates}
}

// Len returns the number of items in the heap.
func (ih *IndexedHeap[T]) Len() int {
	return len(ih.h.items)
}

// Push inserts item and returns the new size. If duplicates are disabled and
// item is already present, it is re-sifted from its current position.
func (ih *IndexedHeap[T]) Push(item T) int {
	if !ih.duplicates {
		if i, ok := ih.position(item); ok {
			ih.h.items[i] = item
			heap.Fix(ih.h, i)
			return ih.Len()
		}
	}
	heap.Push(ih.h, item)
	return ih.Len()
}

// Peek returns the root without removing it.
func (ih *IndexedHeap[T]) Peek() (T, bool) {
	if ih.Len() == 0 {
		var zero T
		return zero, false
	}
	return ih.h.items[0], true
}

// Poll removes and returns the root.
func (ih *IndexedHeap[T]) Poll() (T, bool) {
	if ih.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(ih.h).(T), true
}

// Remove deletes item from anywhere in the heap. It reports whether the item
// was present.
func (ih *IndexedHeap[T]) Remove(item T) bool {
	i, ok := ih.position(item)
	if !ok {
		return false
	}
	heap.Remove(ih.h, i)
	return true
}

// Has reports whether item is in the heap.
func (ih *IndexedHeap[T]) Has(item T) bool {
	_, ok := ih.position(item)
	return ok
}

// Fix restores heap order after the key of item changed. It reports whether
// the item was present.
func (ih *IndexedHeap[T]) Fix(item T) bool {
	i, ok := ih.position(item)
	if !ok {
		return false
	}
	heap.Fix(ih.h, i)
	return true
}

// Rebuild re-heapifies every item in O(n). Use it after bulk changes to the
// keys the comparator reads.
func (ih *IndexedHeap[T]) Rebuild() {
	heap.Init(ih.h)
}

// Clear removes every item.
func (ih *IndexedHeap[T]) Clear() {
	clear(ih.h.items)
	ih.h.items = ih.h.items[:0]
	if ih.h.index != nil {
		clear(ih.h.index)
	}
}

// Items returns a copy of the backing array in heap position order.
func (ih *IndexedHeap[T]) Items() []T {
	out := make([]T, len(ih.h.items))
	copy(out, ih.h.items)
	return out
}

func (ih *IndexedHeap[T]) position(item T) (int, bool) {
	if ih.h.index != nil {
		i, ok := ih.h.index[item]
		return i, ok
	}
	for i, it := range ih.h.items {
		if it == item {
			return i, true
		}
	}
	return -1, false
}

// binary implements heap.Interface and keeps index in sync on every swap.
type binary[T comparable] struct {
	items []T
	index map[T]int
	cmp   Comparator[T]
}

func (b *binary[T]) Len() int { return len(b.items) }

func (b *binary[T]) Less(i, j int) bool {
	return b.cmp(b.items[i], b.items[j]) < 0
}

func (b *binary[T]) Swap(i, j int) {
	b.items[i], b.items[j] = b.items[j], b.items[i]
	if b.index != nil {
		b.index[b.items[i]] = i
		b.index[b.items[j]] = j
	}
}

func (b *binary[T]) Push(x any) {
	item := x.(T)
	if b.index != nil {
		b.index[item] = len(b.items)
	}
	b.items = append(b.items, item)
}

func (b *binary[T]) Pop() any {
	n := len(b.items)
	item := b.items[n-1]
	var zero T
	b.items[n-1] = zero
	b.items = b.items[:n-1]
	if b.index != nil {
		delete(b.index, item)
	}
	return item
}
