package vdom

import (
	"fmt"
	"sync/atomic"
)

// ComponentID is the stable identity token of a component definition.
type ComponentID uint64

var componentSeq atomic.Uint64

// MemoPolicy decides whether new props are equivalent enough to skip a re-render.
type MemoPolicy func(old, new any) bool

// Component is a registered component definition.
//
// Two placeholders refer to the same component instance position iff their
// definitions share an ID. Definitions are created once and reused.
type Component struct {
	id     ComponentID
	name   string
	render func(s *Scope, props any) (*VNode, error)
	memo   MemoPolicy
}

// ID returns the identity token.
func (c *Component) ID() ComponentID { return c.id }

// Name returns the display name.
func (c *Component) Name() string { return c.name }

// Memoize applies the component's memo policy. Components without a policy
// always re-render.
func (c *Component) Memoize(old, new any) bool {
	if c.memo == nil {
		return false
	}
	return c.memo(old, new)
}

// Define registers a component that re-renders whenever its parent does.
//
// The render function returns the tree to mount, (nil, nil) for an aborted
// render, or an error to abandon the render for this scope.
func Define[P any](name string, render func(s *Scope, props P) (*VNode, error)) *Component {
	return &Component{
		id:   ComponentID(componentSeq.Add(1)),
		name: name,
		render: func(s *Scope, props any) (*VNode, error) {
			p, err := castProps[P](s, props)
			if err != nil {
				return nil, err
			}
			return render(s, p)
		},
	}
}

// DefineMemo registers a component that skips re-rendering when equal(old, new).
func DefineMemo[P any](name string, render func(s *Scope, props P) (*VNode, error), equal func(old, new P) bool) *Component {
	c := Define(name, render)
	c.memo = func(old, new any) bool {
		o, ok1 := old.(P)
		n, ok2 := new.(P)
		if !ok1 || !ok2 {
			return false
		}
		return equal(o, n)
	}
	return c
}

// DefineComparable registers a component memoized on props equality.
func DefineComparable[P comparable](name string, render func(s *Scope, props P) (*VNode, error)) *Component {
	return DefineMemo(name, render, func(old, new P) bool { return old == new })
}

func castProps[P any](s *Scope, props any) (P, error) {
	var zero P
	if props == nil {
		return zero, nil
	}
	p, ok := props.(P)
	if !ok {
		return zero, NewInvariantError(s, fmt.Sprintf("props of type %T passed to component expecting %T", props, zero))
	}
	return p, nil
}
