package vdom

import (
	"context"
	"fmt"
	"reflect"
)

// Scope is the runtime state of one mounted component instance.
//
// INVARIANTS:
//   - last is nil only while the scope's own diff is in progress
//   - mount always describes last.Node
//   - height is parent height + 1; the root scope has height 0
type Scope struct {
	id        ScopeID
	parent    *Scope
	height    uint32
	comp      *Component
	props     any
	last      *RenderReturn
	mount     *Mount
	contexts  map[reflect.Type]any
	hooks     []any
	hookIdx   int
	tasks     []context.CancelFunc
	rt        *Runtime
	unmounted bool
}

// ID returns the scope id.
func (s *Scope) ID() ScopeID { return s.id }

// Height returns the nesting depth; the root scope is 0.
func (s *Scope) Height() uint32 { return s.height }

// Name returns the component name.
func (s *Scope) Name() string { return s.comp.name }

// Component returns the component definition.
func (s *Scope) Component() *Component { return s.comp }

// Props returns the props the scope last rendered (or will render) with.
func (s *Scope) Props() any { return s.props }

// Runtime returns the owning runtime.
func (s *Scope) Runtime() *Runtime { return s.rt }

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// LastRendered returns the stored render result and whether one exists.
func (s *Scope) LastRendered() (RenderReturn, bool) {
	if s.last == nil {
		return RenderReturn{}, false
	}
	return *s.last, true
}

// Mount returns the bookkeeping for the stored tree.
func (s *Scope) Mount() *Mount { return s.mount }

// NeedsUpdate marks the scope dirty.
func (s *Scope) NeedsUpdate() { s.rt.MarkDirty(s.id) }

func (s *Scope) dirtyKey() DirtyScope {
	return DirtyScope{Height: s.height, ID: s.id}
}

// UseHook returns the value stored at the current hook position, calling init
// on the first render. Hooks must be called in the same order on every render.
func UseHook[T any](s *Scope, init func() T) T {
	if s.hookIdx < len(s.hooks) {
		v, ok := s.hooks[s.hookIdx].(T)
		if !ok {
			panic(NewInvariantError(s, fmt.Sprintf("hook %d changed type: have %T", s.hookIdx, s.hooks[s.hookIdx])))
		}
		s.hookIdx++
		return v
	}
	v := init()
	s.hooks = append(s.hooks, v)
	s.hookIdx++
	return v
}

func contextKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ProvideContext stores v in the scope's context map, keyed by T.
func ProvideContext[T any](s *Scope, v T) T {
	if s.contexts == nil {
		s.contexts = make(map[reflect.Type]any)
	}
	s.contexts[contextKey[T]()] = v
	return v
}

// HasContext looks up T in this scope only.
func HasContext[T any](s *Scope) (T, bool) {
	v, ok := s.contexts[contextKey[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// ConsumeContext looks up T in this scope, then in each enclosing scope.
func ConsumeContext[T any](s *Scope) (T, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := HasContext[T](cur); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// scopeTable is a dense store of scopes indexed by id. Freed ids are reused.
type scopeTable struct {
	slots []*Scope
	free  []ScopeID
}

func (t *scopeTable) insert(build func(id ScopeID) *Scope) *Scope {
	var id ScopeID
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, nil)
		id = ScopeID(len(t.slots) - 1)
	}
	s := build(id)
	t.slots[id] = s
	return s
}

func (t *scopeTable) get(id ScopeID) (*Scope, bool) {
	if int(id) >= len(t.slots) || t.slots[id] == nil {
		return nil, false
	}
	return t.slots[id], true
}

func (t *scopeTable) remove(id ScopeID) {
	if int(id) >= len(t.slots) || t.slots[id] == nil {
		return
	}
	t.slots[id] = nil
	t.free = append(t.free, id)
}

func (t *scopeTable) len() int {
	return len(t.slots) - len(t.free)
}
