// Package ecs implements the entity-component store: a slot-allocated
// entity table plus typed component columns (dense, sparse, or marker),
// masked iteration, and scoped multi-borrow of disjoint component
// columns. The store itself never mutates world model state directly —
// callers borrow columns through Dense, Sparse and MarkerFor and operate
// on them.
package ecs

import (
	"sync"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
)

// Store is the entity table plus the registry of component columns
// attached to it. A nil *Store is not usable; construct with NewStore.
type Store struct {
	mu       sync.Mutex // guards slots/freelist/generation bookkeeping only
	slots    []slotState
	freelist []uint32
	columns  map[string]anyColumn
	alive    *bitset.Set
}

type slotState struct {
	generation uint32
}

// NewStore returns an empty entity store.
func NewStore() *Store {
	return &Store{
		columns: make(map[string]anyColumn),
		alive:   bitset.New(0),
	}
}

// Create allocates a new entity handle, reusing a freed slot's index with
// an incremented generation when one is available.
func (s *Store) Create() ids.EntityId {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.freelist); n > 0 {
		idx := s.freelist[n-1]
		s.freelist = s.freelist[:n-1]
		s.alive.Set(int(idx), true)
		return ids.NewEntityId(idx, s.slots[idx].generation)
	}

	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slotState{generation: 1})
	s.alive.Resize(int(idx) + 1)
	s.alive.Set(int(idx), true)
	return ids.NewEntityId(idx, 1)
}

// Destroy frees the entity's slot (bumping its generation so outstanding
// handles become stale) and removes it from every component column. It is
// a no-op if the handle is already stale or invalid.
func (s *Store) Destroy(e ids.EntityId) {
	if !s.IsAlive(e) {
		return
	}
	for _, c := range s.columnsSnapshot() {
		c.removeEntity(e.Index())
	}
	s.mu.Lock()
	idx := e.Index()
	s.slots[idx].generation++
	s.alive.Set(int(idx), false)
	s.freelist = append(s.freelist, idx)
	s.mu.Unlock()
}

// IsAlive reports whether the handle refers to a live entity at its
// recorded generation (i.e. has not been destroyed, or the slot has not
// been reused for a different entity since).
func (s *Store) IsAlive(e ids.EntityId) bool {
	if !e.IsValid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := e.Index()
	if int(idx) >= len(s.slots) {
		return false
	}
	return s.slots[idx].generation == e.Generation() && s.alive.Get(int(idx))
}

// Len returns the number of currently live entities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive.Count()
}

// Each calls fn with every currently live entity handle, in slot order.
// fn must not call Create or Destroy on the store.
func (s *Store) Each(fn func(ids.EntityId)) {
	s.mu.Lock()
	gens := make([]uint32, len(s.slots))
	for i, sl := range s.slots {
		gens[i] = sl.generation
	}
	alive := s.alive
	s.mu.Unlock()

	alive.ForEach(func(i int) {
		fn(ids.NewEntityId(uint32(i), gens[i]))
	})
}

func (s *Store) columnsSnapshot() []anyColumn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]anyColumn, 0, len(s.columns))
	for _, c := range s.columns {
		out = append(out, c)
	}
	return out
}

// anyColumn is the type-erased half of a component column, used only so
// Store.Destroy can sweep every registered column without knowing its
// component type.
type anyColumn interface {
	removeEntity(index uint32)
}
