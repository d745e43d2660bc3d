package cell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOwner(t *testing.T) (*Arena, *Owner) {
	t.Helper()
	a := NewArena()
	return a, a.NewOwner()
}

func mustInsert(t *testing.T, o *Owner, v any) Key {
	t.Helper()
	k, err := o.Insert(v)
	require.NoError(t, err)
	return k
}

func TestArena_ZeroKeyNeverResolves(t *testing.T) {
	a, o := newTestOwner(t)
	mustInsert(t, o, 1)

	err := a.Validate(Key{})
	require.Error(t, err)
	assert.True(t, IsStaleHandle(err))
}

func TestArena_ManyReaders(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 10)

	g1, err := a.Borrow(k)
	require.NoError(t, err)
	g2, err := a.Borrow(k)
	require.NoError(t, err)

	state, err := a.State(k)
	require.NoError(t, err)
	assert.Equal(t, BorrowShared, state)

	v, err := g1.Value()
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	g1.Release()
	g2.Release()

	state, err = a.State(k)
	require.NoError(t, err)
	assert.Equal(t, BorrowNone, state)
}

func TestArena_WriteExcludesRead(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, "x")

	w, err := a.BorrowMut(k)
	require.NoError(t, err)

	_, err = a.Borrow(k)
	require.Error(t, err)
	assert.True(t, IsBorrowConflict(err))
	assert.True(t, errors.Is(err, ErrBorrowConflict))

	var be *BorrowError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, BorrowExclusive, be.Held)

	w.Release()
	r, err := a.Borrow(k)
	require.NoError(t, err)
	r.Release()
}

func TestArena_WriteExcludesWrite(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	w, err := a.BorrowMut(k)
	require.NoError(t, err)
	defer w.Release()

	_, err = a.BorrowMut(k)
	require.Error(t, err)
	assert.True(t, IsBorrowConflict(err))
}

func TestArena_ReadExcludesWrite(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	r, err := a.Borrow(k)
	require.NoError(t, err)

	_, err = a.BorrowMut(k)
	require.Error(t, err)
	var be *BorrowError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, BorrowShared, be.Held)

	r.Release()
	w, err := a.BorrowMut(k)
	require.NoError(t, err)
	w.Release()
}

func TestArena_BorrowSequence(t *testing.T) {
	// Drive a mixed sequence and check the live-guard invariant at each step.
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 0)

	type op struct {
		write   bool
		release int // index of guard to release instead of acquiring, -1 for none
		wantErr bool
	}
	ops := []op{
		{release: -1},
		{release: -1},
		{write: true, release: -1, wantErr: true},
		{release: 0},
		{release: 1},
		{write: true, release: -1},
		{release: -1, wantErr: true},
		{write: true, release: -1, wantErr: true},
	}

	var releases []func()
	for i, step := range ops {
		if step.release >= 0 {
			releases[step.release]()
			continue
		}
		var err error
		if step.write {
			var g *WriteGuard
			g, err = a.BorrowMut(k)
			if err == nil {
				releases = append(releases, func() { g.Release() })
			}
		} else {
			var g *ReadGuard
			g, err = a.Borrow(k)
			if err == nil {
				releases = append(releases, g.Release)
			}
		}
		if step.wantErr {
			assert.True(t, IsBorrowConflict(err), "op %d", i)
		} else {
			assert.NoError(t, err, "op %d", i)
		}
	}
}

func TestArena_WriteGuardSet(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	w, err := a.BorrowMut(k)
	require.NoError(t, err)
	require.NoError(t, w.Set(2))
	w.Release()

	r, err := a.Borrow(k)
	require.NoError(t, err)
	defer r.Release()
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestArena_SetDetachesGuards(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, "old")

	r, err := a.Borrow(k)
	require.NoError(t, err)

	require.NoError(t, a.Set(k, "new"))

	_, err = r.Value()
	assert.True(t, IsStaleHandle(err))

	// Detached guard no longer blocks writers.
	w, err := a.BorrowMut(k)
	require.NoError(t, err)
	v, err := w.Value()
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	// Releasing the detached guard must not disturb the live writer.
	r.Release()
	state, err := a.State(k)
	require.NoError(t, err)
	assert.Equal(t, BorrowExclusive, state)
	w.Release()
}

func TestArena_ReleaseIdempotent(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	r1, err := a.Borrow(k)
	require.NoError(t, err)
	r2, err := a.Borrow(k)
	require.NoError(t, err)

	r1.Release()
	r1.Release()

	state, err := a.State(k)
	require.NoError(t, err)
	assert.Equal(t, BorrowShared, state, "double release must not drop the second reader")

	_, err = r1.Value()
	assert.True(t, IsStaleHandle(err))
	r2.Release()
}

func TestArena_InvalidateMakesStale(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	require.NoError(t, a.Invalidate(k))

	_, err := a.Borrow(k)
	assert.True(t, IsStaleHandle(err))
	_, err = a.BorrowMut(k)
	assert.True(t, IsStaleHandle(err))
	assert.True(t, IsStaleHandle(a.Set(k, 2)))
	assert.True(t, IsStaleHandle(a.Invalidate(k)))
	assert.Equal(t, 0, a.Len())
}

func TestArena_ReusedIndexStaysStale(t *testing.T) {
	a, o := newTestOwner(t)
	old := mustInsert(t, o, "first")
	require.NoError(t, a.Invalidate(old))

	fresh := mustInsert(t, o, "second")
	require.Equal(t, old.Index, fresh.Index, "free list should recycle the index")
	assert.NotEqual(t, old.Generation, fresh.Generation)

	_, err := a.Borrow(old)
	assert.True(t, IsStaleHandle(err))

	r, err := a.Borrow(fresh)
	require.NoError(t, err)
	defer r.Release()
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestArena_WriteReleaseReportsLiveBorrow(t *testing.T) {
	a, o := newTestOwner(t)
	k := mustInsert(t, o, 1)

	w, err := a.BorrowMut(k)
	require.NoError(t, err)
	assert.True(t, w.Release())
	assert.False(t, w.Release(), "second release ends nothing")

	w, err = a.BorrowMut(k)
	require.NoError(t, err)
	require.NoError(t, a.Invalidate(k))
	assert.False(t, w.Release(), "guard was detached by Invalidate")

	k = mustInsert(t, o, 2)
	w, err = a.BorrowMut(k)
	require.NoError(t, err)
	require.NoError(t, a.Set(k, 3))
	assert.False(t, w.Release(), "guard was detached by Set")
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "3@7", Key{Index: 3, Generation: 7}.String())
	assert.Equal(t, "exclusive", BorrowExclusive.String())
}
