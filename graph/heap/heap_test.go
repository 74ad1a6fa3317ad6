package heap

import (
	"math/rand"
	"testing"
)

type item struct {
	id  string
	key int
}

func byKey(a, b *item) int {
	return a.key - b.key
}

func intCmp(a, b int) int {
	return a - b
}

// TestIndexedHeap_OrderFidelity verifies that polling returns items in
// comparator order regardless of insertion order.
func TestIndexedHeap_OrderFidelity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New(byKey)

	const n = 500
	for i := 0; i < n; i++ {
		h.Push(&item{key: rng.Intn(1000)})
	}
	if h.Len() != n {
		t.Fatalf("expected %d items, got %d", n, h.Len())
	}

	prev := -1
	for i := 0; i < n; i++ {
		it, ok := h.Poll()
		if !ok {
			t.Fatalf("poll %d: heap unexpectedly empty", i)
		}
		if it.key < prev {
			t.Fatalf("poll %d: key %d after %d", i, it.key, prev)
		}
		prev = it.key
	}
	if _, ok := h.Poll(); ok {
		t.Error("expected empty heap after polling every item")
	}
}

// TestIndexedHeap_RemoveArbitrary verifies that removing non-root items keeps
// the heap property for every subsequent poll.
func TestIndexedHeap_RemoveArbitrary(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := New(byKey)

	items := make([]*item, 200)
	for i := range items {
		items[i] = &item{key: rng.Intn(100)}
		h.Push(items[i])
	}

	removed := make(map[*item]bool)
	for i := 0; i < 80; i++ {
		victim := items[rng.Intn(len(items))]
		want := !removed[victim]
		if got := h.Remove(victim); got != want {
			t.Fatalf("remove returned %v, expected %v", got, want)
		}
		removed[victim] = true
	}

	if h.Len() != len(items)-len(removed) {
		t.Fatalf("expected %d items, got %d", len(items)-len(removed), h.Len())
	}

	prev := -1
	for h.Len() > 0 {
		it, _ := h.Poll()
		if removed[it] {
			t.Fatalf("polled removed item with key %d", it.key)
		}
		if it.key < prev {
			t.Fatalf("heap order broken: %d after %d", it.key, prev)
		}
		prev = it.key
	}
}

func TestIndexedHeap_NoDuplicates(t *testing.T) {
	t.Run("push of present item updates in place", func(t *testing.T) {
		h := New(byKey)
		a := &item{id: "a", key: 5}
		b := &item{id: "b", key: 3}
		h.Push(a)
		h.Push(b)

		a.key = 1
		if size := h.Push(a); size != 2 {
			t.Fatalf("expected size 2 after re-push, got %d", size)
		}

		top, _ := h.Peek()
		if top != a {
			t.Errorf("expected a at root after reweight, got %s", top.id)
		}
	})

	t.Run("fix after key change", func(t *testing.T) {
		h := New(byKey)
		a := &item{id: "a", key: 1}
		b := &item{id: "b", key: 2}
		h.Push(a)
		h.Push(b)

		a.key = 10
		if !h.Fix(a) {
			t.Fatal("expected fix to find a")
		}
		top, _ := h.Peek()
		if top != b {
			t.Errorf("expected b at root, got %s", top.id)
		}
		if h.Fix(&item{}) {
			t.Error("expected fix of unknown item to report false")
		}
	})

	t.Run("has tracks membership", func(t *testing.T) {
		h := New(byKey)
		a := &item{id: "a"}
		if h.Has(a) {
			t.Fatal("empty heap reported membership")
		}
		h.Push(a)
		if !h.Has(a) {
			t.Fatal("expected membership after push")
		}
		h.Poll()
		if h.Has(a) {
			t.Error("expected no membership after poll")
		}
	})
}

func TestIndexedHeap_Duplicates(t *testing.T) {
	h := New(intCmp, AllowDuplicates(true))
	for _, v := range []int{3, 1, 3, 2, 1} {
		h.Push(v)
	}
	if h.Len() != 5 {
		t.Fatalf("expected 5 items with duplicates, got %d", h.Len())
	}
	if !h.Remove(3) {
		t.Fatal("expected remove of duplicate value to succeed")
	}
	if !h.Has(3) {
		t.Fatal("expected one copy of 3 to remain")
	}

	var got []int
	for h.Len() > 0 {
		v, _ := h.Poll()
		got = append(got, v)
	}
	want := []int{1, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestIndexedHeap_Rebuild(t *testing.T) {
	h := New(byKey)
	items := []*item{{key: 1}, {key: 2}, {key: 3}, {key: 4}}
	for _, it := range items {
		h.Push(it)
	}

	// Invert every key behind the heap's back.
	for _, it := range items {
		it.key = -it.key
	}
	h.Rebuild()

	top, _ := h.Peek()
	if top.key != -4 {
		t.Fatalf("expected root key -4 after rebuild, got %d", top.key)
	}
	for _, it := range items {
		if !h.Has(it) {
			t.Fatalf("item with key %d lost its index after rebuild", it.key)
		}
	}
	if !h.Remove(items[2]) {
		t.Fatal("expected remove after rebuild to succeed")
	}
}

func TestIndexedHeap_EmptyAndClear(t *testing.T) {
	h := New(intCmp)
	if _, ok := h.Peek(); ok {
		t.Error("expected Peek on empty heap to report false")
	}
	if _, ok := h.Poll(); ok {
		t.Error("expected Poll on empty heap to report false")
	}
	if h.Remove(1) {
		t.Error("expected Remove on empty heap to report false")
	}

	h.Push(1)
	h.Push(2)
	h.Clear()
	if h.Len() != 0 || h.Has(1) {
		t.Errorf("expected empty heap after Clear, got len %d", h.Len())
	}
	if len(h.Items()) != 0 {
		t.Error("expected no items after Clear")
	}
}

// TestIndexedHeap_DuplicatePointers verifies that pushing the same pointer
// twice keeps both entries when duplicates are allowed.
func TestIndexedHeap_DuplicatePointers(t *testing.T) {
	h := New(byKey, AllowDuplicates(true))
	a := &item{id: "a", key: 2}
	b := &item{id: "b", key: 1}
	h.Push(a)
	h.Push(b)
	if size := h.Push(a); size != 3 {
		t.Fatalf("expected size 3 after pushing a twice, got %d", size)
	}

	var got []string
	for h.Len() > 0 {
		it, _ := h.Poll()
		got = append(got, it.id)
	}
	want := []string{"b", "a", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
