package vdom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitSink hands each flush's mutations to the test goroutine.
type commitSink struct {
	Mutations
	commits chan []Mutation
}

func newCommitSink() *commitSink {
	return &commitSink{commits: make(chan []Mutation, 64)}
}

func (c *commitSink) Commit() error {
	c.commits <- c.Take()
	return nil
}

func (c *commitSink) next(t *testing.T) []Mutation {
	t.Helper()
	select {
	case edits := <-c.commits:
		return edits
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit")
		return nil
	}
}

func startRun(t *testing.T, rt *Runtime, sink MutationSink) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx, sink) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRun_TaskPostsUpdates(t *testing.T) {
	ticker := Define("ticker", func(s *Scope, _ struct{}) (*VNode, error) {
		count := UseValue(s, func() int { return 0 })
		UseTask(s, func(ctx context.Context, post PostFunc) {
			for i := 0; i < 3; i++ {
				if !post(func() { _ = count.Update(func(n *int) { *n++ }) }) {
					return
				}
			}
		})
		return Textf("ticks: %d", count.MustGet()), nil
	})
	rt := New(ticker, nil)
	sink := newCommitSink()
	require.NoError(t, rt.Rebuild(sink))
	assert.Equal(t, []Mutation{
		{Op: OpCreateText, ID: 1, Value: "ticks: 0"},
		{Op: OpAppendChild, ID: RootElement, Other: 1},
	}, sink.next(t))

	cancel, done := startRun(t, rt, sink)

	var last string
	for last != "ticks: 3" {
		for _, e := range sink.next(t) {
			require.Equal(t, OpSetText, e.Op)
			last = e.Value
		}
	}

	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestRun_StopReturnsNil(t *testing.T) {
	rt := newValueRuntime(t)

	_, done := startRun(t, rt, &Mutations{})
	rt.Stop()

	assert.NoError(t, waitRun(t, done))
	assert.False(t, rt.Post(rt.RootScope(), func() {}))
}

func TestRun_FatalErrorStopsLoop(t *testing.T) {
	var show Value[bool]
	app := Define("maybe", func(s *Scope, _ struct{}) (*VNode, error) {
		show = UseValue(s, func() bool { return true })
		if !show.MustGet() {
			return nil, nil
		}
		return Text("shown"), nil
	})
	rt := New(app, nil)
	rebuild(t, rt)

	require.True(t, rt.Post(rt.RootScope(), func() { _ = show.Set(false) }))
	_, done := startRun(t, rt, &Mutations{})

	err := waitRun(t, done)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
}

func TestRun_RenderFailureKeepsLooping(t *testing.T) {
	var fail Value[bool]
	app := Define("flaky", func(s *Scope, _ struct{}) (*VNode, error) {
		fail = UseValue(s, func() bool { return false })
		if fail.MustGet() {
			return nil, errors.New("flaky")
		}
		return Text("ok"), nil
	})
	rt := New(app, nil)
	sink := newCommitSink()
	require.NoError(t, rt.Rebuild(sink))
	sink.next(t)

	_, done := startRun(t, rt, sink)
	rt.Post(rt.RootScope(), func() { _ = fail.Set(true) })
	assert.Empty(t, sink.next(t))

	rt.Stop()
	assert.NoError(t, waitRun(t, done))
}

func TestRun_EventsForUnmountedScopesAreDropped(t *testing.T) {
	rt := siblings(t)
	a, _ := rt.Scope(1)

	ran := false
	require.True(t, rt.Post(a, func() { ran = true }))
	rt.removeScope(a.ID())

	assert.Equal(t, 1, rt.drainEvents())
	assert.False(t, ran)
	assert.Zero(t, rt.Pending())
}

func TestRun_PostedEventsRunInSourceEffect(t *testing.T) {
	rt := siblings(t)
	b, _ := rt.Scope(2)

	var v Value[int]
	rt.Post(b, func() { v, _ = NewValue(rt, 3) })
	rt.drainEvents()

	assert.Equal(t, b.ID(), v.OriginScope())
	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestTask_CancelledOnUnmount(t *testing.T) {
	stopped := make(chan struct{})
	worker := Define("worker", func(s *Scope, _ struct{}) (*VNode, error) {
		UseTask(s, func(ctx context.Context, post PostFunc) {
			<-ctx.Done()
			close(stopped)
		})
		return Text("working"), nil
	})
	var on Value[bool]
	app := Define("app", func(s *Scope, _ struct{}) (*VNode, error) {
		on = UseValue(s, func() bool { return true })
		if on.MustGet() {
			return El("div", nil, Comp(worker, nil)), nil
		}
		return El("div", nil, Text("idle")), nil
	})
	rt := New(app, nil)
	rebuild(t, rt)

	require.NoError(t, on.Set(false))
	flush(t, rt)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not cancelled")
	}
}

func TestStep_AppliesEventsAndFlushes(t *testing.T) {
	c := newCounter()
	rt := New(c.comp, 0)
	rebuild(t, rt)

	var sink Mutations
	require.NoError(t, rt.Step(&sink))
	assert.Zero(t, sink.Len())

	rt.Post(rt.RootScope(), func() { _ = c.count.Set(4) })
	require.NoError(t, rt.Step(&sink))
	assert.Equal(t, []Mutation{{Op: OpSetText, ID: 2, Value: "High-Five counter: 4"}}, sink.Edits)
}
