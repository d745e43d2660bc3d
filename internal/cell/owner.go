package cell

import (
	"sort"
	"sync"
	"sync/atomic"
)

var ownerSeq atomic.Uint64

// Owner groups the slots created by one scope or effect and frees them together.
type Owner struct {
	id    uint64
	arena *Arena

	mu       sync.Mutex
	keys     map[uint32]Key
	cleanups []func()
	dropped  bool
}

// NewOwner creates an owner whose slots live in a.
func (a *Arena) NewOwner() *Owner {
	return &Owner{
		id:    ownerSeq.Add(1),
		arena: a,
		keys:  make(map[uint32]Key),
	}
}

// ID returns the process-unique owner id.
func (o *Owner) ID() uint64 {
	return o.id
}

// Arena returns the arena the owner allocates from.
func (o *Owner) Arena() *Arena {
	return o.arena
}

// Insert stores v in a new slot held by this owner.
// Fails with STALE_HANDLE once the owner has been dropped.
func (o *Owner) Insert(v any) (Key, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dropped {
		return Key{}, newStale(Key{}, "owner already dropped")
	}
	k := o.arena.insert(v)
	o.keys[k.Index] = k
	return k, nil
}

// Owns reports whether k is a live slot of this owner. A key invalidated
// directly through the arena is forgotten here.
func (o *Owner) Owns(k Key) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	held, ok := o.keys[k.Index]
	if !ok || held != k {
		return false
	}
	if o.arena.Validate(k) != nil {
		delete(o.keys, k.Index)
		return false
	}
	return true
}

// Len returns the number of live slots held.
func (o *Owner) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prune()
	return len(o.keys)
}

// prune drops keys whose slots were invalidated behind the owner's back.
// Caller must hold o.mu.
func (o *Owner) prune() {
	for idx, k := range o.keys {
		if o.arena.Validate(k) != nil {
			delete(o.keys, idx)
		}
	}
}

// Dropped reports whether Drop has run.
func (o *Owner) Dropped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// OnDrop registers fn to run after the owner's slots are freed.
// Runs fn immediately if the owner is already dropped.
func (o *Owner) OnDrop(fn func()) {
	o.mu.Lock()
	if o.dropped {
		o.mu.Unlock()
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
	o.mu.Unlock()
}

// Drop invalidates every slot held by the owner, then runs OnDrop
// callbacks in reverse registration order. Idempotent.
func (o *Owner) Drop() {
	o.mu.Lock()
	if o.dropped {
		o.mu.Unlock()
		return
	}
	o.dropped = true

	keys := make([]Key, 0, len(o.keys))
	for _, k := range o.keys {
		keys = append(keys, k)
	}
	o.keys = make(map[uint32]Key)
	cleanups := o.cleanups
	o.cleanups = nil
	o.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Index < keys[j].Index })
	for _, k := range keys {
		// Already-stale keys were invalidated directly through the arena.
		_ = o.arena.Invalidate(k)
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
