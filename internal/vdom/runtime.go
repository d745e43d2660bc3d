package vdom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vcore/internal/cell"
)

// DefaultMaxRendersPerFlush bounds how many scopes one flush may re-render.
// Scopes that keep dirtying each other hit this instead of spinning forever.
const DefaultMaxRendersPerFlush = 1000

// Runtime is the single-writer reconciliation runtime.
//
// Thread-safety model:
//   - Post(), Stop(): safe from any goroutine
//   - everything else, including Value reads and writes: runtime goroutine only
type Runtime struct {
	arena    *cell.Arena
	scopes   scopeTable
	elements *elementAllocator
	dirty    *dirtySet
	queue    *eventQueue

	// scopeStack is pushed for every render and diff; top is the current scope.
	scopeStack []ScopeID
	// effectStack is pushed while an effect runs; it takes precedence for owner lookup.
	effectStack []Effect

	root      *Component
	rootProps any
	rootScope *Scope

	maxRenders int

	// renderErrs collects abandoned renders for the current pass.
	renderErrs []error
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxRendersPerFlush sets the render quota for one flush.
//
// Default: 1000 (DefaultMaxRendersPerFlush)
func WithMaxRendersPerFlush(n int) Option {
	return func(rt *Runtime) {
		rt.maxRenders = n
	}
}

// WithArena makes the runtime allocate reactive cells from a.
func WithArena(a *cell.Arena) Option {
	return func(rt *Runtime) {
		rt.arena = a
	}
}

// New creates a runtime for the given root component. Nothing is rendered
// until Rebuild.
func New(root *Component, rootProps any, opts ...Option) *Runtime {
	rt := &Runtime{
		arena:      cell.NewArena(),
		elements:   newElementAllocator(),
		dirty:      newDirtySet(),
		queue:      newEventQueue(),
		root:       root,
		rootProps:  rootProps,
		maxRenders: DefaultMaxRendersPerFlush,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Arena returns the reactive cell storage.
func (rt *Runtime) Arena() *cell.Arena { return rt.arena }

// RootScope returns the root scope, or nil before Rebuild.
func (rt *Runtime) RootScope() *Scope { return rt.rootScope }

// Scope returns a mounted scope by id.
func (rt *Runtime) Scope(id ScopeID) (*Scope, bool) { return rt.scopes.get(id) }

// ScopeCount returns the number of mounted scopes.
func (rt *Runtime) ScopeCount() int { return rt.scopes.len() }

// ElementCount returns the number of live element ids.
func (rt *Runtime) ElementCount() int { return rt.elements.live }

// CurrentScope returns the scope on top of the scope stack.
func (rt *Runtime) CurrentScope() (ScopeID, bool) {
	if n := len(rt.scopeStack); n > 0 {
		return rt.scopeStack[n-1], true
	}
	return 0, false
}

func (rt *Runtime) pushScope(id ScopeID) { rt.scopeStack = append(rt.scopeStack, id) }

func (rt *Runtime) popScope() { rt.scopeStack = rt.scopeStack[:len(rt.scopeStack)-1] }

// MarkDirty queues a scope for the next flush. Unknown ids are ignored.
func (rt *Runtime) MarkDirty(id ScopeID) {
	s, ok := rt.scopes.get(id)
	if !ok {
		return
	}
	if rt.dirty.insert(s.dirtyKey()) {
		slog.Debug("scope marked dirty", "scope", id, "component", s.comp.name)
	}
}

// IsDirty reports whether a scope awaits a diff pass.
func (rt *Runtime) IsDirty(id ScopeID) bool {
	s, ok := rt.scopes.get(id)
	return ok && rt.dirty.contains(s.dirtyKey())
}

// DirtyScopes returns the pending scopes in (height, id) order.
func (rt *Runtime) DirtyScopes() []DirtyScope {
	return rt.dirty.sorted()
}

func (rt *Runtime) newScope(comp *Component, props any, parent *Scope) *Scope {
	return rt.scopes.insert(func(id ScopeID) *Scope {
		s := &Scope{id: id, parent: parent, comp: comp, props: props, rt: rt}
		if parent != nil {
			s.height = parent.height + 1
		}
		return s
	})
}

// Rebuild mounts the root component and appends it to RootElement.
func (rt *Runtime) Rebuild(to MutationSink) error {
	if rt.rootScope != nil {
		return NewInvariantError(rt.rootScope, "runtime already rebuilt")
	}
	to = countingSink{to: to}
	rt.renderErrs = nil

	s := rt.newScope(rt.root, rt.rootProps, nil)
	rt.rootScope = s
	el, err := rt.mountScope(to, s)
	if err != nil {
		return err
	}
	to.AppendChild(RootElement, el)
	return rt.finishPass(to)
}

// RenderImmediate diffs every dirty scope, shallowest first, until the dirty
// set is empty. Abandoned renders are reported together at the end; fatal
// errors stop the flush immediately.
func (rt *Runtime) RenderImmediate(to MutationSink) error {
	to = countingSink{to: to}
	rt.renderErrs = nil

	renders := 0
	for {
		d, ok := rt.dirty.min()
		if !ok {
			break
		}
		s, ok := rt.scopes.get(d.ID)
		if !ok || s.height != d.Height {
			rt.dirty.remove(d)
			continue
		}
		renders++
		if rt.maxRenders > 0 && renders > rt.maxRenders {
			err := NewQuotaError(renders, rt.maxRenders)
			slog.Error("render quota exceeded", "renders", renders, "limit", rt.maxRenders)
			return err
		}
		if err := rt.updateScope(to, s); err != nil {
			return err
		}
	}
	return rt.finishPass(to)
}

// finishPass commits the sink if it wants it and reports abandoned renders.
func (rt *Runtime) finishPass(to MutationSink) error {
	var commitErr error
	if cs, ok := to.(countingSink); ok {
		to = cs.to
	}
	if c, ok := to.(Committer); ok {
		if err := c.Commit(); err != nil {
			commitErr = fmt.Errorf("commit mutations: %w", err)
		}
	}
	errs := rt.renderErrs
	rt.renderErrs = nil
	if commitErr != nil {
		errs = append(errs, commitErr)
	}
	return errors.Join(errs...)
}

// updateScope re-renders a dirty scope and diffs the result.
func (rt *Runtime) updateScope(to MutationSink, s *Scope) error {
	ret, err := rt.RunScope(s.id)
	if err != nil {
		rt.dirty.remove(s.dirtyKey())
		if IsInvariantViolation(err) {
			return err
		}
		rt.renderErrs = append(rt.renderErrs, err)
		return nil
	}
	if err := rt.DiffScope(to, s.id, ret); err != nil {
		return err
	}
	rt.dirty.remove(s.dirtyKey())
	return nil
}

// RunScope invokes a scope's render function with the scope pushed.
//
// A render that returns an error, or panics with a *RuntimeError or a
// *cell.BorrowError, is abandoned: the error is returned and the scope keeps
// its stored tree.
func (rt *Runtime) RunScope(id ScopeID) (ret RenderReturn, err error) {
	s, ok := rt.scopes.get(id)
	if !ok {
		return RenderReturn{}, newScopeNotFound(id)
	}

	s.hookIdx = 0
	rt.pushScope(id)
	defer rt.popScope()
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				panic(r)
			}
			var re *RuntimeError
			var be *cell.BorrowError
			if !errors.As(perr, &re) && !errors.As(perr, &be) {
				panic(r)
			}
			ret, err = RenderReturn{}, rt.renderFailed(s, perr)
		}
	}()

	node, rerr := s.comp.render(s, s.props)
	if rerr != nil {
		return RenderReturn{}, rt.renderFailed(s, rerr)
	}
	if node == nil {
		rendersTotal.WithLabelValues("aborted").Inc()
		return Aborted(), nil
	}
	rendersTotal.WithLabelValues("ready").Inc()
	return Ready(node), nil
}

func (rt *Runtime) renderFailed(s *Scope, err error) error {
	rendersTotal.WithLabelValues("failed").Inc()
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeInvariantViolation {
		slog.Error("render hit invariant violation", "scope", s.id, "component", s.comp.name, "error", err)
		return err
	}
	slog.Error("render abandoned", "scope", s.id, "component", s.comp.name, "error", err)
	return NewRenderError(s, err)
}

// mountScope renders a freshly created scope and creates its host nodes.
// It returns the scope's host root.
//
// If the first render fails the scope is mounted with a ready placeholder and
// the failure is recorded, so sibling scopes are unaffected.
func (rt *Runtime) mountScope(to MutationSink, s *Scope) (ElementID, error) {
	ret, err := rt.RunScope(s.id)
	if err != nil {
		if IsInvariantViolation(err) {
			return 0, err
		}
		rt.renderErrs = append(rt.renderErrs, err)
		ret = Ready(Placeholder())
	}
	s.last = &ret
	el, err := rt.CreateScope(to, s.id, ret.Node)
	if err != nil {
		return 0, err
	}
	rt.dirty.remove(s.dirtyKey())
	return el, nil
}

// CreateScope creates host nodes for node as the scope's tree and returns the
// host root. The scope is pushed for the duration.
func (rt *Runtime) CreateScope(to MutationSink, id ScopeID, node *VNode) (ElementID, error) {
	s, ok := rt.scopes.get(id)
	if !ok {
		return 0, newScopeNotFound(id)
	}
	rt.pushScope(id)
	defer rt.popScope()

	s.mount = newMount(node)
	el, _, err := rt.createNode(to, s, node, s.mount, 0)
	return el, err
}

// hostRoot resolves the host node a scope is mounted as.
func (rt *Runtime) hostRoot(id ScopeID) ElementID {
	s, ok := rt.scopes.get(id)
	if !ok || s.last == nil {
		return RootElement
	}
	return rt.hostOf(s.last.Node, s.mount, 0)
}

// hostOf resolves the host node for the tree node at idx.
func (rt *Runtime) hostOf(n *VNode, m *Mount, idx int) ElementID {
	if n.Kind == KindComponent {
		return rt.hostRoot(m.Nodes[idx].Scope)
	}
	return m.Nodes[idx].Element
}

// removeScope unmounts a scope and everything below it, dropping its owner.
// No mutations are emitted; the caller removes or replaces the host root.
func (rt *Runtime) removeScope(id ScopeID) {
	s, ok := rt.scopes.get(id)
	if !ok {
		return
	}
	if s.last != nil && s.mount != nil {
		rt.unmountNode(s.last.Node, s.mount, 0)
	}
	for _, cancel := range s.tasks {
		cancel()
	}
	s.tasks = nil
	if owner, ok := HasContext[*cell.Owner](s); ok {
		owner.Drop()
	}
	s.unmounted = true
	rt.dirty.remove(s.dirtyKey())
	rt.scopes.remove(id)
	slog.Debug("scope removed", "scope", id, "component", s.comp.name)
}

// unmountNode frees the element ids and scopes of the subtree at idx and
// returns the index after it.
func (rt *Runtime) unmountNode(n *VNode, m *Mount, idx int) int {
	switch n.Kind {
	case KindComponent:
		rt.removeScope(m.Nodes[idx].Scope)
		return idx + 1
	case KindElement:
		rt.elements.release(m.Nodes[idx].Element)
		next := idx + 1
		for _, c := range n.Children {
			next = rt.unmountNode(c, m, next)
		}
		return next
	default:
		rt.elements.release(m.Nodes[idx].Element)
		return idx + 1
	}
}

// Post queues fn to run on the runtime goroutine inside scope's effect context.
// Safe from any goroutine. Returns false once the runtime has stopped.
func (rt *Runtime) Post(scope *Scope, fn func()) bool {
	return rt.queue.Enqueue(event{scope: scope, fn: fn})
}

// Stop closes the event queue, which makes Run return.
func (rt *Runtime) Stop() {
	rt.queue.Close()
}

// Pending returns the number of posted events not yet applied.
func (rt *Runtime) Pending() int {
	return rt.queue.Len()
}

// Run is the single-writer loop. It applies posted events in FIFO order and
// flushes dirty scopes to the sink after each batch. Blocks until ctx is
// cancelled or Stop is called.
//
// Abandoned renders are logged and the loop continues. Fatal errors
// (invariant violations, render quota) stop the loop and are returned.
func (rt *Runtime) Run(ctx context.Context, to MutationSink) error {
	slog.Info("runtime starting")
	defer rt.cancelTasks()

	for {
		if err := rt.Step(to); err != nil {
			if IsFatal(err) {
				slog.Error("runtime stopping: fatal render error", "error", err)
				rt.queue.Close()
				return err
			}
			slog.Warn("flush finished with abandoned renders", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("runtime stopping: context cancelled")
			rt.queue.Close()
			return ctx.Err()
		case <-rt.queue.Wait():
			if rt.queue.Closed() && rt.queue.Len() == 0 {
				slog.Info("runtime stopping: queue closed")
				return nil
			}
		}
	}
}

// Step is one turn of the loop without the wait: it applies queued events and
// flushes if anything ran or is dirty.
func (rt *Runtime) Step(to MutationSink) error {
	applied := rt.drainEvents()
	if applied == 0 && rt.dirty.len() == 0 {
		return nil
	}
	return rt.RenderImmediate(to)
}

// drainEvents applies every queued event and returns how many ran.
func (rt *Runtime) drainEvents() int {
	n := 0
	for {
		ev, ok := rt.queue.TryDequeue()
		if !ok {
			return n
		}
		n++
		if ev.scope.unmounted {
			slog.Debug("dropping event for unmounted scope", "scope", ev.scope.id)
			continue
		}
		if err := rt.RunEffect(ev.scope.id, ev.fn); err != nil {
			slog.Warn("event skipped", "scope", ev.scope.id, "error", err)
		}
	}
}

func (rt *Runtime) cancelTasks() {
	for _, s := range rt.scopes.slots {
		if s == nil {
			continue
		}
		for _, cancel := range s.tasks {
			cancel()
		}
	}
}
