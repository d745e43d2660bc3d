package vdom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcore/internal/cell"
)

func newValueRuntime(t *testing.T) *Runtime {
	t.Helper()
	comp := Define("host", func(s *Scope, _ struct{}) (*VNode, error) {
		return Text("host"), nil
	})
	rt := New(comp, nil)
	rebuild(t, rt)
	return rt
}

func TestValue_ReadersAndWriter(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), 1)
	require.NoError(t, err)

	r1, err := v.Read()
	require.NoError(t, err)
	r2, err := v.Read()
	require.NoError(t, err)

	_, err = v.Write()
	require.Error(t, err)
	assert.True(t, cell.IsBorrowConflict(err))

	r1.Release()
	r2.Release()

	w, err := v.Write()
	require.NoError(t, err)

	_, err = v.Read()
	assert.True(t, cell.IsBorrowConflict(err))
	_, err = v.Write()
	assert.True(t, cell.IsBorrowConflict(err))

	p, err := w.Ptr()
	require.NoError(t, err)
	*p = 5
	w.Release()

	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.True(t, rt.IsDirty(0))
}

func TestValue_SetDetachesBorrows(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), "old")
	require.NoError(t, err)

	r, err := v.Read()
	require.NoError(t, err)

	require.NoError(t, v.Set("new"))

	_, err = r.Value()
	assert.True(t, cell.IsStaleHandle(err))
	r.Release()

	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestValue_UpdateInPlace(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), []string{"a"})
	require.NoError(t, err)

	require.NoError(t, v.Update(func(s *[]string) { *s = append(*s, "b") }))

	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []DirtyScope{{Height: 0, ID: 0}}, rt.DirtyScopes())
}

func TestValue_UpdateConflict(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), 0)
	require.NoError(t, err)

	r, err := v.Read()
	require.NoError(t, err)
	defer r.Release()

	err = v.Update(func(n *int) { *n++ })
	assert.True(t, cell.IsBorrowConflict(err))
	assert.Empty(t, rt.DirtyScopes())
}

func TestValue_Identity(t *testing.T) {
	rt := newValueRuntime(t)
	a, err := NewValueInScope(rt.RootScope(), 1)
	require.NoError(t, err)
	b, err := NewValueInScope(rt.RootScope(), 1)
	require.NoError(t, err)

	copied := a
	assert.True(t, a.Equal(copied))
	assert.False(t, a.Equal(b))
	assert.Equal(t, ScopeID(0), a.OriginScope())
	assert.True(t, rt.RootScope().Owner().Owns(a.Key()))
	assert.Contains(t, a.String(), "scope-0")
}

func TestValue_NewValueWithoutScope(t *testing.T) {
	rt := newValueRuntime(t)

	_, err := NewValue(rt, 1)
	require.Error(t, err)
	assert.Equal(t, ErrCodeScopeNotFound, Code(err))
}

func TestValue_MustGetPanicsWhenStale(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), 1)
	require.NoError(t, err)

	rt.RootScope().Owner().Drop()

	assert.Panics(t, func() { v.MustGet() })
}

func TestValue_StaleWriteReleaseLeavesReusedScopeClean(t *testing.T) {
	c := newCounter()
	other := Define("other", func(s *Scope, _ struct{}) (*VNode, error) {
		return Text("other"), nil
	})
	var showCounter Value[bool]
	app := Define("app", func(s *Scope, _ struct{}) (*VNode, error) {
		showCounter = UseValue(s, func() bool { return true })
		if showCounter.MustGet() {
			return El("div", nil, Comp(c.comp, 1)), nil
		}
		return El("div", nil, Comp(other, nil)), nil
	})
	rt := New(app, nil)
	rebuild(t, rt)

	first := c.scope.ID()
	m, err := c.count.Write()
	require.NoError(t, err)

	require.NoError(t, showCounter.Set(false))
	flush(t, rt)
	require.NoError(t, showCounter.Set(true))
	flush(t, rt)
	require.Equal(t, first, c.scope.ID(), "remounted counter reuses the freed scope id")
	require.Empty(t, rt.DirtyScopes())

	_, err = m.Ptr()
	assert.True(t, cell.IsStaleHandle(err))
	m.Release()

	assert.False(t, rt.IsDirty(first))
	assert.Empty(t, rt.DirtyScopes())
}

func TestValue_WriteReleaseMarksOnce(t *testing.T) {
	rt := newValueRuntime(t)
	v, err := NewValueInScope(rt.RootScope(), 1)
	require.NoError(t, err)

	m, err := v.Write()
	require.NoError(t, err)
	m.Release()
	assert.True(t, rt.IsDirty(0))

	flush(t, rt)
	m.Release()
	assert.False(t, rt.IsDirty(0))
}
