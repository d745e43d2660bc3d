package cell

import (
	"fmt"
	"sync"
)

// Key addresses one slot in an Arena.
//
// Generation starts at 1, so the zero Key never resolves.
type Key struct {
	Index      uint32
	Generation uint64
}

// String renders the key as index@generation.
func (k Key) String() string {
	return fmt.Sprintf("%d@%d", k.Index, k.Generation)
}

// BorrowState is the borrow currently held on a slot.
type BorrowState int

const (
	// BorrowNone means no guard is live.
	BorrowNone BorrowState = iota
	// BorrowShared means one or more read guards are live.
	BorrowShared
	// BorrowExclusive means a write guard is live.
	BorrowExclusive
)

// String implements fmt.Stringer.
func (s BorrowState) String() string {
	switch s {
	case BorrowNone:
		return "none"
	case BorrowShared:
		return "shared"
	case BorrowExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("BorrowState(%d)", int(s))
	}
}

type slot struct {
	generation uint64
	occupied   bool
	payload    any
	readers    int
	writer     bool

	// epoch changes whenever the payload is replaced or freed.
	// Guards remember the epoch they were issued under.
	epoch uint64
}

func (s *slot) state() BorrowState {
	switch {
	case s.writer:
		return BorrowExclusive
	case s.readers > 0:
		return BorrowShared
	default:
		return BorrowNone
	}
}

// Arena is a generational slab of boxed values.
//
// Vacated indices are reused LIFO. Reuse never resurrects an old Key because
// Invalidate bumps the slot generation first.
//
// Thread-safety: all methods are safe for concurrent use. The mutex protects
// the slab; it is not the borrow mechanism.
type Arena struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		slots: make([]slot, 0, 64),
	}
}

// insert stores v in a fresh or recycled slot.
// Callers go through Owner.Insert so every live slot has exactly one owner.
func (a *Arena) insert(v any) Key {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{generation: 1})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.occupied = true
	s.payload = v
	s.readers = 0
	s.writer = false
	a.live++

	return Key{Index: idx, Generation: s.generation}
}

// lookup resolves k. Caller must hold a.mu.
func (a *Arena) lookup(k Key) (*slot, error) {
	if int(k.Index) >= len(a.slots) {
		return nil, newStale(k, "slot index out of range")
	}
	s := &a.slots[k.Index]
	if !s.occupied || s.generation != k.Generation {
		return nil, newStale(k, fmt.Sprintf("generation mismatch (slot at %d)", s.generation))
	}
	return s, nil
}

// current resolves k and checks the guard epoch. Caller must hold a.mu.
func (a *Arena) current(k Key, epoch uint64) (*slot, error) {
	s, err := a.lookup(k)
	if err != nil {
		return nil, err
	}
	if s.epoch != epoch {
		return nil, newStale(k, "borrow detached by payload replacement")
	}
	return s, nil
}

// Borrow acquires a shared read guard on k.
//
// Fails with BORROW_CONFLICT while a write guard is live, or STALE_HANDLE
// if k no longer matches its slot.
func (a *Arena) Borrow(k Key) (*ReadGuard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(k)
	if err != nil {
		return nil, err
	}
	if s.writer {
		return nil, newConflict(k, BorrowExclusive, "cannot read while a write borrow is active")
	}
	s.readers++
	return &ReadGuard{arena: a, key: k, epoch: s.epoch}, nil
}

// BorrowMut acquires an exclusive write guard on k.
//
// Fails with BORROW_CONFLICT if any guard is live, or STALE_HANDLE if k no
// longer matches its slot.
func (a *Arena) BorrowMut(k Key) (*WriteGuard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(k)
	if err != nil {
		return nil, err
	}
	if held := s.state(); held != BorrowNone {
		return nil, newConflict(k, held, "cannot write while another borrow is active")
	}
	s.writer = true
	return &WriteGuard{arena: a, key: k, epoch: s.epoch}, nil
}

// Set replaces the payload of k outright.
// Outstanding guards on the old payload are detached.
func (a *Arena) Set(k Key, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(k)
	if err != nil {
		return err
	}
	s.payload = v
	s.readers = 0
	s.writer = false
	s.epoch++
	return nil
}

// Invalidate frees the slot behind k and bumps its generation.
// Every Key issued for the slot becomes stale.
func (a *Arena) Invalidate(k Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(k)
	if err != nil {
		return err
	}
	s.generation++
	s.occupied = false
	s.payload = nil
	s.readers = 0
	s.writer = false
	s.epoch++
	a.free = append(a.free, k.Index)
	a.live--
	return nil
}

// Validate reports whether k still resolves.
func (a *Arena) Validate(k Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.lookup(k)
	return err
}

// State returns the borrow currently held on k.
func (a *Arena) State(k Key) (BorrowState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.lookup(k)
	if err != nil {
		return BorrowNone, err
	}
	return s.state(), nil
}

// Len returns the number of live slots.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// ReadGuard is a shared borrow of one slot.
type ReadGuard struct {
	arena    *Arena
	key      Key
	epoch    uint64
	released bool
}

// Key returns the key this guard was acquired for.
func (g *ReadGuard) Key() Key { return g.key }

// Value returns the borrowed payload.
func (g *ReadGuard) Value() (any, error) {
	g.arena.mu.Lock()
	defer g.arena.mu.Unlock()

	if g.released {
		return nil, newStale(g.key, "read guard already released")
	}
	s, err := g.arena.current(g.key, g.epoch)
	if err != nil {
		return nil, err
	}
	return s.payload, nil
}

// Release ends the borrow. Safe to call more than once.
func (g *ReadGuard) Release() {
	g.arena.mu.Lock()
	defer g.arena.mu.Unlock()

	if g.released {
		return
	}
	g.released = true
	if s, err := g.arena.current(g.key, g.epoch); err == nil && s.readers > 0 {
		s.readers--
	}
}

// WriteGuard is an exclusive borrow of one slot.
type WriteGuard struct {
	arena    *Arena
	key      Key
	epoch    uint64
	released bool
}

// Key returns the key this guard was acquired for.
func (g *WriteGuard) Key() Key { return g.key }

// Value returns the borrowed payload.
func (g *WriteGuard) Value() (any, error) {
	g.arena.mu.Lock()
	defer g.arena.mu.Unlock()

	s, err := g.live()
	if err != nil {
		return nil, err
	}
	return s.payload, nil
}

// Set replaces the payload through the exclusive borrow.
// The guard stays valid.
func (g *WriteGuard) Set(v any) error {
	g.arena.mu.Lock()
	defer g.arena.mu.Unlock()

	s, err := g.live()
	if err != nil {
		return err
	}
	s.payload = v
	return nil
}

// Release ends the borrow. Safe to call more than once. It reports whether
// a live borrow was ended; a second call or a guard detached by Set or
// Invalidate returns false.
func (g *WriteGuard) Release() bool {
	g.arena.mu.Lock()
	defer g.arena.mu.Unlock()

	if g.released {
		return false
	}
	g.released = true
	s, err := g.arena.current(g.key, g.epoch)
	if err != nil {
		return false
	}
	s.writer = false
	return true
}

// live resolves the guarded slot. Caller must hold g.arena.mu.
func (g *WriteGuard) live() (*slot, error) {
	if g.released {
		return nil, newStale(g.key, "write guard already released")
	}
	return g.arena.current(g.key, g.epoch)
}
