package vdom

import (
	"context"
	"log/slog"
)

// PostFunc queues work for the runtime goroutine. It returns false once the
// task's scope is unmounted or the runtime has stopped.
type PostFunc func(fn func()) bool

// Spawn starts fn on its own goroutine, bound to the scope.
//
// fn must not touch values directly. It hands work back through post; that
// work runs on the runtime goroutine inside an effect whose source is this
// scope, so values it creates belong to this scope. ctx is cancelled when the
// scope unmounts or the runtime loop exits.
func (s *Scope) Spawn(fn func(ctx context.Context, post PostFunc)) {
	ctx, cancel := context.WithCancel(context.Background())
	s.tasks = append(s.tasks, cancel)

	post := func(work func()) bool {
		if ctx.Err() != nil {
			return false
		}
		return s.rt.Post(s, work)
	}
	slog.Debug("task spawned", "scope", s.id, "component", s.comp.name)
	go fn(ctx, post)
}

type taskHook struct{}

// UseTask spawns fn on the first render of s only.
func UseTask(s *Scope, fn func(ctx context.Context, post PostFunc)) {
	UseHook(s, func() taskHook {
		s.Spawn(fn)
		return taskHook{}
	})
}
