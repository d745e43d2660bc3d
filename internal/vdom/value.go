package vdom

import (
	"fmt"

	"github.com/roach88/vcore/internal/cell"
)

// Value is a copyable handle to a reactive cell.
//
// Writes mark the origin scope dirty. The handle goes stale when the origin
// scope's owner is dropped; every access after that fails with
// cell.ErrStaleHandle.
type Value[T any] struct {
	rt     *Runtime
	key    cell.Key
	origin ScopeID
}

// NewValue creates a value owned by the current owner (see CurrentOwner).
func NewValue[T any](rt *Runtime, v T) (Value[T], error) {
	owner, s, err := rt.CurrentOwner()
	if err != nil {
		return Value[T]{}, err
	}
	return insertValue(rt, owner, s.id, v)
}

// NewValueInScope creates a value owned by s regardless of what is running.
func NewValueInScope[T any](s *Scope, v T) (Value[T], error) {
	return insertValue(s.rt, s.Owner(), s.id, v)
}

func insertValue[T any](rt *Runtime, owner *cell.Owner, origin ScopeID, v T) (Value[T], error) {
	p := new(T)
	*p = v
	k, err := owner.Insert(p)
	if err != nil {
		return Value[T]{}, err
	}
	return Value[T]{rt: rt, key: k, origin: origin}, nil
}

// UseValue is the hook form of NewValue: the value is created with init on
// the first render of s and the same handle is returned afterwards.
func UseValue[T any](s *Scope, init func() T) Value[T] {
	return UseHook(s, func() Value[T] {
		v, err := NewValue(s.rt, init())
		if err != nil {
			panic(err)
		}
		return v
	})
}

// Key returns the underlying cell key.
func (v Value[T]) Key() cell.Key { return v.key }

// OriginScope returns the scope that is marked dirty on writes.
func (v Value[T]) OriginScope() ScopeID { return v.origin }

// Equal reports whether two handles refer to the same cell.
func (v Value[T]) Equal(o Value[T]) bool { return v.key == o.key }

// String implements fmt.Stringer.
func (v Value[T]) String() string {
	return fmt.Sprintf("Value(%s, %s)", v.key, v.origin)
}

// Ref is a shared borrow of a value. Release it when done.
type Ref[T any] struct {
	guard *cell.ReadGuard
}

// Value returns the borrowed payload.
func (r *Ref[T]) Value() (T, error) {
	p, err := r.guard.Value()
	if err != nil {
		var zero T
		return zero, err
	}
	return *(p.(*T)), nil
}

// Release ends the borrow.
func (r *Ref[T]) Release() { r.guard.Release() }

// Mut is an exclusive borrow of a value. Releasing it marks the origin scope
// dirty.
type Mut[T any] struct {
	guard  *cell.WriteGuard
	rt     *Runtime
	origin ScopeID
}

// Ptr returns a pointer to the payload for in-place edits. The pointer must
// not be used after Release.
func (m *Mut[T]) Ptr() (*T, error) {
	p, err := m.guard.Value()
	if err != nil {
		return nil, err
	}
	return p.(*T), nil
}

// Release ends the borrow and marks the origin scope dirty. A borrow that
// was already detached (the value was replaced or its owner dropped) marks
// nothing: the origin id may belong to another scope by now.
func (m *Mut[T]) Release() {
	if m.guard.Release() {
		m.rt.MarkDirty(m.origin)
	}
}

// Read borrows the value shared. It fails with a borrow conflict while a
// writer is active.
func (v Value[T]) Read() (*Ref[T], error) {
	g, err := v.rt.arena.Borrow(v.key)
	if err != nil {
		return nil, v.observe(err)
	}
	return &Ref[T]{guard: g}, nil
}

// Write borrows the value exclusively. It fails with a borrow conflict while
// any other borrow is active.
func (v Value[T]) Write() (*Mut[T], error) {
	g, err := v.rt.arena.BorrowMut(v.key)
	if err != nil {
		return nil, v.observe(err)
	}
	return &Mut[T]{guard: g, rt: v.rt, origin: v.origin}, nil
}

// Get returns a copy of the current payload.
func (v Value[T]) Get() (T, error) {
	r, err := v.Read()
	if err != nil {
		var zero T
		return zero, err
	}
	defer r.Release()
	return r.Value()
}

// MustGet is Get for render functions: a failure panics and the runtime
// abandons the render.
func (v Value[T]) MustGet() T {
	x, err := v.Get()
	if err != nil {
		panic(err)
	}
	return x
}

// Set replaces the payload outright and marks the origin scope dirty.
// Borrows of the old payload are detached.
func (v Value[T]) Set(x T) error {
	p := new(T)
	*p = x
	if err := v.rt.arena.Set(v.key, p); err != nil {
		return v.observe(err)
	}
	v.rt.MarkDirty(v.origin)
	return nil
}

// Update edits the payload in place under an exclusive borrow.
func (v Value[T]) Update(fn func(*T)) error {
	m, err := v.Write()
	if err != nil {
		return err
	}
	defer m.Release()
	p, err := m.Ptr()
	if err != nil {
		return err
	}
	fn(p)
	return nil
}

func (v Value[T]) observe(err error) error {
	if cell.IsBorrowConflict(err) {
		borrowConflictsTotal.Inc()
	}
	return err
}
