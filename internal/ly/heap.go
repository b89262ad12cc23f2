package ly

import "fmt"

// heap is a slot arena. Ptr N addresses slots[N-1]. Released slots are pushed
// on a free list and handed out again by the next alloc, so a stale Ptr may
// silently address an unrelated, newer structure.
type heap[T any] struct {
	slots []*slot[T]
	free  []Ptr
	live  int
}

type slot[T any] struct {
	val    T
	serial uint64
	used   bool
}

func (h *heap[T]) alloc(serial uint64) (Ptr, *T) {
	var p Ptr
	var s *slot[T]
	if n := len(h.free); n > 0 {
		p = h.free[n-1]
		h.free = h.free[:n-1]
		s = h.slots[p-1]
	} else {
		s = &slot[T]{}
		h.slots = append(h.slots, s)
		p = Ptr(len(h.slots))
	}
	var zero T
	s.val = zero
	s.serial = serial
	s.used = true
	h.live++
	return p, &s.val
}

// at dereferences p. A NULL, out of range or released pointer panics.
func (h *heap[T]) at(p Ptr) *T {
	if p == Null || int(p) > len(h.slots) {
		panic(fmt.Sprintf("ly: invalid pointer %d", p))
	}
	s := h.slots[p-1]
	if !s.used {
		panic(fmt.Sprintf("ly: use after free of pointer %d", p))
	}
	return &s.val
}

func (h *heap[T]) release(p Ptr) {
	s := h.slots[p-1]
	if !s.used {
		panic(fmt.Sprintf("ly: double free of pointer %d", p))
	}
	var zero T
	s.val = zero
	s.serial = 0
	s.used = false
	h.free = append(h.free, p)
	h.live--
}

// serialOf returns the allocation serial of p, or 0 when p is not allocated.
func (h *heap[T]) serialOf(p Ptr) uint64 {
	if p == Null || int(p) > len(h.slots) {
		return 0
	}
	s := h.slots[p-1]
	if !s.used {
		return 0
	}
	return s.serial
}

func (h *heap[T]) count() int {
	return h.live
}
