package vdom

import (
	"log/slog"

	"github.com/roach88/vcore/internal/cell"
)

// Effect is an active side-effect context. Source is the scope the effect
// was started from; values created inside the effect belong to it.
type Effect struct {
	Source ScopeID
}

// RunEffect runs fn inside an effect context bound to source.
func (rt *Runtime) RunEffect(source ScopeID, fn func()) error {
	if _, ok := rt.scopes.get(source); !ok {
		return newScopeNotFound(source)
	}
	rt.effectStack = append(rt.effectStack, Effect{Source: source})
	defer func() { rt.effectStack = rt.effectStack[:len(rt.effectStack)-1] }()
	fn()
	return nil
}

// CurrentEffect returns the innermost running effect.
func (rt *Runtime) CurrentEffect() (Effect, bool) {
	if n := len(rt.effectStack); n > 0 {
		return rt.effectStack[n-1], true
	}
	return Effect{}, false
}

// CurrentOwner returns the owner new values should belong to, and the scope
// it is bound to.
//
// Inside an effect this is the owner of the effect's source scope, even when
// some other scope is rendering. Otherwise it is the owner of the scope on
// top of the scope stack. Owners are created on first use.
func (rt *Runtime) CurrentOwner() (*cell.Owner, *Scope, error) {
	var id ScopeID
	if e, ok := rt.CurrentEffect(); ok {
		id = e.Source
	} else if cur, ok := rt.CurrentScope(); ok {
		id = cur
	} else {
		return nil, nil, &RuntimeError{
			Code:    ErrCodeScopeNotFound,
			Message: "no scope or effect is active",
		}
	}
	s, ok := rt.scopes.get(id)
	if !ok {
		return nil, nil, newScopeNotFound(id)
	}
	return s.Owner(), s, nil
}

// Owner returns the scope's owner, creating and registering it in the
// scope's context map on first use.
func (s *Scope) Owner() *cell.Owner {
	if o, ok := HasContext[*cell.Owner](s); ok {
		return o
	}
	o := ProvideContext(s, s.rt.arena.NewOwner())
	slog.Debug("owner created", "scope", s.id, "owner", o.ID())
	return o
}
