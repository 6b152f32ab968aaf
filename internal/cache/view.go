package cache

import (
	"sync"

	"casual-tasker/internal/model"
)

// ChangeKind tells view subscribers what happened to the mirror.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeRemoved
	ChangeUpdated
	ChangeReset
	ChangeFiltered
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeUpdated:
		return "updated"
	case ChangeReset:
		return "reset"
	case ChangeFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Change is delivered to view subscribers after every mutation. Item is a
// copy of the affected entry and is nil for resets and filter changes.
type Change[PT any] struct {
	Kind ChangeKind
	Item PT
}

// View is the ordered, filterable mirror of one store. Entries are owned by
// the view; readers always get copies.
type View[T any, PT model.EntityPtr[T]] struct {
	mu        sync.RWMutex
	items     []PT
	filter    func(PT) bool
	listeners map[int]func(Change[PT])
	nextID    int
}

func NewView[T any, PT model.EntityPtr[T]]() *View[T, PT] {
	return &View[T, PT]{listeners: make(map[int]func(Change[PT]))}
}

// Items returns the entries that pass the current filter, in mirror order.
func (v *View[T, PT]) Items() []PT {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filtered()
}

func (v *View[T, PT]) filtered() []PT {
	out := make([]PT, 0, len(v.items))
	for _, item := range v.items {
		if v.filter == nil || v.filter(item) {
			out = append(out, PT(item.Clone()))
		}
	}
	return out
}

// All returns every entry regardless of the filter.
func (v *View[T, PT]) All() []PT {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]PT, len(v.items))
	for i, item := range v.items {
		out[i] = PT(item.Clone())
	}
	return out
}

func (v *View[T, PT]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// SetFilter restricts Items to entries matching pred. A nil pred clears it.
func (v *View[T, PT]) SetFilter(pred func(PT) bool) {
	v.mu.Lock()
	v.filter = pred
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: ChangeFiltered})
}

// Filter sets pred like SetFilter and returns the entries it lets through,
// read under the same lock so a concurrent SetFilter cannot interleave.
func (v *View[T, PT]) Filter(pred func(PT) bool) []PT {
	v.mu.Lock()
	v.filter = pred
	out := v.filtered()
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: ChangeFiltered})
	return out
}

// Subscribe registers fn for change notifications and returns a func that
// removes it again.
func (v *View[T, PT]) Subscribe(fn func(Change[PT])) (cancel func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}

func (v *View[T, PT]) get(id uint) PT {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i := v.indexOf(id); i >= 0 {
		return PT(v.items[i].Clone())
	}
	return nil
}

func (v *View[T, PT]) first() PT {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.items) == 0 {
		return nil
	}
	return PT(v.items[0].Clone())
}

func (v *View[T, PT]) add(item PT) {
	entry := PT(item.Clone())

	v.mu.Lock()
	v.items = append(v.items, entry)
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: ChangeAdded, Item: PT(item.Clone())})
}

func (v *View[T, PT]) remove(id uint) bool {
	v.mu.Lock()
	i := v.indexOf(id)
	if i < 0 {
		v.mu.Unlock()
		return false
	}
	removed := v.items[i]
	v.items = append(v.items[:i], v.items[i+1:]...)
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: ChangeRemoved, Item: removed})
	return true
}

// merge overwrites the entry with src's id in place. With appendMissing an
// absent entry is appended instead.
func (v *View[T, PT]) merge(src PT, appendMissing bool) (PT, bool) {
	v.mu.Lock()
	i := v.indexOf(src.GetID())
	kind := ChangeUpdated
	switch {
	case i >= 0:
		v.items[i].MergeFrom(src)
	case appendMissing:
		v.items = append(v.items, PT(src.Clone()))
		i = len(v.items) - 1
		kind = ChangeAdded
	default:
		v.mu.Unlock()
		return nil, false
	}
	merged := PT(v.items[i].Clone())
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: kind, Item: PT(merged.Clone())})
	return merged, true
}

func (v *View[T, PT]) reset(items []PT) {
	entries := make([]PT, len(items))
	for i, item := range items {
		entries[i] = PT(item.Clone())
	}

	v.mu.Lock()
	v.items = entries
	v.mu.Unlock()

	v.notify(Change[PT]{Kind: ChangeReset})
}

// indexOf expects v.mu to be held.
func (v *View[T, PT]) indexOf(id uint) int {
	for i, item := range v.items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

func (v *View[T, PT]) notify(change Change[PT]) {
	v.mu.RLock()
	listeners := make([]func(Change[PT]), 0, len(v.listeners))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	v.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}
