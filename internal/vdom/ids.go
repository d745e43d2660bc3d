package vdom

import "fmt"

// ScopeID identifies a mounted component instance. Ids are recycled after unmount.
type ScopeID uint32

// String implements fmt.Stringer.
func (id ScopeID) String() string {
	return fmt.Sprintf("scope-%d", uint32(id))
}

// ElementID identifies a host node known to the mutation sink.
type ElementID uint32

// RootElement is the container the root scope is appended to.
const RootElement ElementID = 0

// elementAllocator hands out element ids, reusing freed ones.
type elementAllocator struct {
	next ElementID
	free []ElementID
	live int
}

func newElementAllocator() *elementAllocator {
	return &elementAllocator{next: RootElement + 1}
}

func (a *elementAllocator) alloc() ElementID {
	a.live++
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *elementAllocator) release(id ElementID) {
	if id == RootElement {
		return
	}
	a.free = append(a.free, id)
	a.live--
}
