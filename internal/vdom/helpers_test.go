package vdom

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

type labelProps struct {
	X int
}

// counterFixture is the "High-Five counter": one cell, one text node.
type counterFixture struct {
	comp    *Component
	count   Value[int]
	scope   *Scope
	renders int
}

func newCounter() *counterFixture {
	f := &counterFixture{}
	f.comp = Define("counter", func(s *Scope, start int) (*VNode, error) {
		f.renders++
		f.scope = s
		f.count = UseValue(s, func() int { return start })
		return El("div", nil, Textf("High-Five counter: %d", f.count.MustGet())), nil
	})
	return f
}

// labelFixture renders a paragraph whose only dynamic field is data-x.
type labelFixture struct {
	comp    *Component
	renders int
}

func newLabel() *labelFixture {
	f := &labelFixture{}
	f.comp = DefineComparable("label", func(s *Scope, p labelProps) (*VNode, error) {
		f.renders++
		return El("p", Attrs("data-x", strconv.Itoa(p.X)), Text("label")), nil
	})
	return f
}

func rebuild(t *testing.T, rt *Runtime) *Mutations {
	t.Helper()
	m := &Mutations{}
	require.NoError(t, rt.Rebuild(m))
	return m
}

func flush(t *testing.T, rt *Runtime) *Mutations {
	t.Helper()
	m := &Mutations{}
	require.NoError(t, rt.RenderImmediate(m))
	return m
}

func opsOf(m *Mutations) []Op {
	out := make([]Op, 0, len(m.Edits))
	for _, e := range m.Edits {
		out = append(out, e.Op)
	}
	return out
}
