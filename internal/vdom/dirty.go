package vdom

import (
	"container/heap"
	"slices"
)

// DirtyScope identifies a scope awaiting a diff pass.
type DirtyScope struct {
	Height uint32
	ID     ScopeID
}

// less orders shallower scopes first, then by id.
func (d DirtyScope) less(o DirtyScope) bool {
	if d.Height != o.Height {
		return d.Height < o.Height
	}
	return d.ID < o.ID
}

// dirtySet is a set of (height, id) pairs kept as a min-heap, with an index
// from pair to heap position for membership tests and removal.
//
// Removal is keyed on the exact pair, never a blind clear, so a scope that
// re-marks itself while rendering is handled as an ordinary set operation.
type dirtySet struct {
	h dirtyHeap
}

func newDirtySet() *dirtySet {
	return &dirtySet{h: dirtyHeap{pos: make(map[DirtyScope]int)}}
}

func (d *dirtySet) insert(k DirtyScope) bool {
	if _, ok := d.h.pos[k]; ok {
		return false
	}
	heap.Push(&d.h, k)
	return true
}

func (d *dirtySet) remove(k DirtyScope) {
	if i, ok := d.h.pos[k]; ok {
		heap.Remove(&d.h, i)
	}
}

func (d *dirtySet) contains(k DirtyScope) bool {
	_, ok := d.h.pos[k]
	return ok
}

func (d *dirtySet) len() int {
	return len(d.h.items)
}

// min returns the shallowest dirty scope without removing it.
func (d *dirtySet) min() (DirtyScope, bool) {
	if len(d.h.items) == 0 {
		return DirtyScope{}, false
	}
	return d.h.items[0], true
}

// sorted returns the set in (height, id) order.
func (d *dirtySet) sorted() []DirtyScope {
	out := slices.Clone(d.h.items)
	slices.SortFunc(out, func(a, b DirtyScope) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		}
		return 0
	})
	return out
}

// dirtyHeap implements heap.Interface and keeps pos in step with items.
type dirtyHeap struct {
	items []DirtyScope
	pos   map[DirtyScope]int
}

func (h *dirtyHeap) Len() int           { return len(h.items) }
func (h *dirtyHeap) Less(i, j int) bool { return h.items[i].less(h.items[j]) }

func (h *dirtyHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.pos[h.items[i]] = i
	h.pos[h.items[j]] = j
}

func (h *dirtyHeap) Push(x any) {
	k := x.(DirtyScope)
	h.pos[k] = len(h.items)
	h.items = append(h.items, k)
}

func (h *dirtyHeap) Pop() any {
	n := len(h.items) - 1
	k := h.items[n]
	h.items = h.items[:n]
	delete(h.pos, k)
	return k
}
