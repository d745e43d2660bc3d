package vdom

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DiffScope diffs ret against the scope's stored tree, emits the patch to the
// sink and stores ret as the scope's new tree.
//
// Both results must have the same variant; a ready tree replacing an aborted
// one (or the reverse) is an invariant violation and nothing is emitted.
func (rt *Runtime) DiffScope(to MutationSink, id ScopeID, ret RenderReturn) error {
	s, ok := rt.scopes.get(id)
	if !ok {
		return newScopeNotFound(id)
	}
	old := s.last
	if old == nil {
		return NewInvariantError(s, "scope has no stored tree to diff against")
	}
	if old.Aborted != ret.Aborted {
		return NewInvariantError(s, fmt.Sprintf("render variant changed: old aborted=%t, new aborted=%t", old.Aborted, ret.Aborted))
	}

	start := time.Now()
	defer func() { diffDuration.Observe(time.Since(start).Seconds()) }()

	rt.pushScope(id)
	defer rt.popScope()

	oldMount := s.mount
	next := newMount(ret.Node)
	s.last = nil

	if _, _, err := rt.diffNode(to, s, old.Node, ret.Node, oldMount, next, 0, 0); err != nil {
		s.last = old
		return err
	}
	s.last = &ret
	s.mount = next
	return nil
}

// diffNode compares the old node at oi with the new node at ni and returns the
// indices following both subtrees.
func (rt *Runtime) diffNode(to MutationSink, s *Scope, old, new *VNode, om, nm *Mount, oi, ni int) (int, int, error) {
	if !sameNode(old, new) {
		return rt.replace(to, s, old, new, om, nm, oi, ni)
	}

	switch new.Kind {
	case KindElement:
		id := om.Nodes[oi].Element
		nm.Nodes[ni].Element = id
		diffAttrs(to, id, old.Attrs, new.Attrs)
		return rt.diffChildren(to, s, id, old, new, om, nm, oi+1, ni+1)

	case KindText:
		id := om.Nodes[oi].Element
		nm.Nodes[ni].Element = id
		if !textEqual(old.Text, new.Text) {
			to.SetText(id, new.Text)
		}
		return oi + 1, ni + 1, nil

	case KindPlaceholder:
		nm.Nodes[ni].Element = om.Nodes[oi].Element
		return oi + 1, ni + 1, nil

	case KindComponent:
		if err := rt.diffComponent(to, old, new, om, nm, oi, ni); err != nil {
			return 0, 0, err
		}
		return oi + 1, ni + 1, nil
	}
	return 0, 0, NewInvariantError(s, fmt.Sprintf("unknown node kind %s", new.Kind))
}

// sameNode reports whether new can be patched in place of old.
func sameNode(old, new *VNode) bool {
	if old.Kind != new.Kind {
		return false
	}
	switch new.Kind {
	case KindElement:
		return old.Tag == new.Tag
	case KindComponent:
		return old.Component.Comp.id == new.Component.Comp.id
	}
	return true
}

// textEqual compares texts in NFC so canonically equivalent strings never
// produce a text patch.
func textEqual(a, b string) bool {
	if a == b {
		return true
	}
	return norm.NFC.String(a) == norm.NFC.String(b)
}

// diffAttrs emits a SetAttribute for every new or changed attribute, in new
// order, then a RemoveAttribute for every attribute that disappeared.
func diffAttrs(to MutationSink, id ElementID, old, new []Attribute) {
	for _, na := range new {
		ov, ok := attrValue(old, na.Name)
		if !ok || ov != na.Value {
			to.SetAttribute(id, na.Name, na.Value)
		}
	}
	for _, oa := range old {
		if _, ok := attrValue(new, oa.Name); !ok {
			to.RemoveAttribute(id, oa.Name)
		}
	}
}

func attrValue(attrs []Attribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// diffChildren pairs children by position. Surplus new children are created
// and appended; surplus old children are removed.
func (rt *Runtime) diffChildren(to MutationSink, s *Scope, parent ElementID, old, new *VNode, om, nm *Mount, oi, ni int) (int, int, error) {
	var err error
	common := min(len(old.Children), len(new.Children))
	for i := 0; i < common; i++ {
		oi, ni, err = rt.diffNode(to, s, old.Children[i], new.Children[i], om, nm, oi, ni)
		if err != nil {
			return 0, 0, err
		}
	}
	for _, c := range new.Children[common:] {
		var el ElementID
		el, ni, err = rt.createNode(to, s, c, nm, ni)
		if err != nil {
			return 0, 0, err
		}
		to.AppendChild(parent, el)
	}
	for _, c := range old.Children[common:] {
		to.Remove(rt.hostOf(c, om, oi))
		oi = rt.unmountNode(c, om, oi)
	}
	return oi, ni, nil
}

// diffComponent handles two placeholders for the same component. The scope
// is reused: memoizable props skip it entirely, otherwise it re-renders with
// the new props and its tree is diffed.
func (rt *Runtime) diffComponent(to MutationSink, old, new *VNode, om, nm *Mount, oi, ni int) error {
	id := om.Nodes[oi].Scope
	nm.Nodes[ni].Scope = id

	child, ok := rt.scopes.get(id)
	if !ok {
		return &RuntimeError{
			Code:    ErrCodeInvariantViolation,
			Message: fmt.Sprintf("component %s mounted as %s, which is gone", old.Component.Comp.name, id),
			Scope:   id,
		}
	}

	props := new.Component.Props
	if child.comp.Memoize(child.props, props) {
		memoizedTotal.Inc()
		slog.Debug("component memoized", "scope", id, "component", child.comp.name)
		return nil
	}
	child.props = props
	return rt.updateScope(to, child)
}

// replace mounts new detached, swaps it in for old with one ReplaceNode and
// then tears old down. The teardown emits nothing.
func (rt *Runtime) replace(to MutationSink, s *Scope, old, new *VNode, om, nm *Mount, oi, ni int) (int, int, error) {
	oldHost := rt.hostOf(old, om, oi)

	el, next, err := rt.createNode(to, s, new, nm, ni)
	if err != nil {
		return 0, 0, err
	}
	to.ReplaceNode(oldHost, el)

	if old.Kind == KindComponent || new.Kind == KindComponent {
		replacementsTotal.Inc()
		slog.Debug("node replaced", "scope", s.id, "old", old.Kind, "new", new.Kind)
	}
	return rt.unmountNode(old, om, oi), next, nil
}

// createNode creates host nodes for the subtree n, recording them in m from
// index idx. It returns the subtree's host root and the index after it.
// Elements are populated before they are returned for attachment.
func (rt *Runtime) createNode(to MutationSink, s *Scope, n *VNode, m *Mount, idx int) (ElementID, int, error) {
	switch n.Kind {
	case KindElement:
		id := rt.elements.alloc()
		m.Nodes[idx].Element = id
		to.CreateElement(id, n.Tag)
		for _, a := range n.Attrs {
			to.SetAttribute(id, a.Name, a.Value)
		}
		next := idx + 1
		for _, c := range n.Children {
			var el ElementID
			var err error
			el, next, err = rt.createNode(to, s, c, m, next)
			if err != nil {
				return 0, 0, err
			}
			to.AppendChild(id, el)
		}
		return id, next, nil

	case KindText:
		id := rt.elements.alloc()
		m.Nodes[idx].Element = id
		to.CreateText(id, n.Text)
		return id, idx + 1, nil

	case KindPlaceholder:
		id := rt.elements.alloc()
		m.Nodes[idx].Element = id
		to.CreatePlaceholder(id)
		return id, idx + 1, nil

	case KindComponent:
		child := rt.newScope(n.Component.Comp, n.Component.Props, s)
		m.Nodes[idx].Scope = child.id
		el, err := rt.mountScope(to, child)
		if err != nil {
			return 0, 0, err
		}
		return el, idx + 1, nil
	}
	return 0, 0, NewInvariantError(s, fmt.Sprintf("unknown node kind %s", n.Kind))
}
