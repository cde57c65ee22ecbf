package ecs

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/brentp/intintmap"

	"github.com/thinkofname/univercity-core/internal/bitset"
)

// denseColumn backs a component that most entities carry (Position,
// Rotation, ...): values live directly at their owning entity's slot
// index, with a presence bitset distinguishing "never set" from a zero
// value.
type denseColumn[T any] struct {
	mu      sync.RWMutex
	present bitset.Set
	data    []T
}

func newDenseColumn[T any]() *denseColumn[T] { return &denseColumn[T]{} }

func (c *denseColumn[T]) removeEntity(i uint32) {
	c.mu.Lock()
	c.present.Set(int(i), false)
	c.mu.Unlock()
}

func (c *denseColumn[T]) get(i uint32) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.present.Get(int(i)) {
		var zero T
		return zero, false
	}
	return c.data[i], true
}

func (c *denseColumn[T]) set(i uint32, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(i) >= len(c.data) {
		grown := make([]T, i+1)
		copy(grown, c.data)
		c.data = grown
	}
	c.data[i] = v
	c.present.Set(int(i), true)
}

func (c *denseColumn[T]) remove(i uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.present.Set(int(i), false)
}

func (c *denseColumn[T]) has(i uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present.Get(int(i))
}

// sparseColumn backs a component few entities carry (RoomController,
// TimeTable, ...): values live in a packed slice, indexed through an
// entity-index -> slot map so iterating present entities never walks
// absent slots.
type sparseColumn[T any] struct {
	mu     sync.RWMutex
	index  *intintmap.Map
	data   []T
	owner  []uint32
	byOwnr map[uint32]int // entity index -> slot, mirrors index for removeEntity bookkeeping parity with other columns
}

func newSparseColumn[T any]() *sparseColumn[T] {
	return &sparseColumn[T]{
		index:  intintmap.New(64, 0.6),
		byOwnr: make(map[uint32]int),
	}
}

func (c *sparseColumn[T]) removeEntity(i uint32) { c.remove(i) }

func (c *sparseColumn[T]) get(i uint32) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.byOwnr[i]
	if !ok {
		var zero T
		return zero, false
	}
	return c.data[slot], true
}

func (c *sparseColumn[T]) set(i uint32, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot, ok := c.byOwnr[i]; ok {
		c.data[slot] = v
		return
	}
	slot := len(c.data)
	c.data = append(c.data, v)
	c.owner = append(c.owner, i)
	c.byOwnr[i] = slot
	c.index.Put(int64(i), int64(slot))
}

func (c *sparseColumn[T]) remove(i uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.byOwnr[i]
	if !ok {
		return
	}
	last := len(c.data) - 1
	if slot != last {
		c.data[slot] = c.data[last]
		c.owner[slot] = c.owner[last]
		c.byOwnr[c.owner[slot]] = slot
		c.index.Put(int64(c.owner[slot]), int64(slot))
	}
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
	c.owner = c.owner[:last]
	delete(c.byOwnr, i)
	c.index.Del(int64(i))
}

func (c *sparseColumn[T]) has(i uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byOwnr[i]
	return ok
}

func (c *sparseColumn[T]) forEach(fn func(index uint32, v *T)) {
	c.mu.RLock()
	owners := append([]uint32(nil), c.owner...)
	c.mu.RUnlock()
	for _, idx := range owners {
		c.mu.Lock()
		slot, ok := c.byOwnr[idx]
		if !ok {
			c.mu.Unlock()
			continue
		}
		v := c.data[slot]
		c.mu.Unlock()
		fn(idx, &v)
		c.mu.Lock()
		if slot, ok := c.byOwnr[idx]; ok {
			c.data[slot] = v
		}
		c.mu.Unlock()
	}
}

// markerColumn backs a tag component with no payload (Frozen, Quitting,
// Highlighted, ...): presence is the entire value.
type markerColumn struct {
	mu      sync.RWMutex
	present bitset.Set
}

func newMarkerColumn() *markerColumn { return &markerColumn{} }

func (c *markerColumn) removeEntity(i uint32) { c.set(i, false) }

func (c *markerColumn) set(i uint32, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.present.Set(int(i), v)
}

func (c *markerColumn) has(i uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present.Get(int(i))
}

// componentKey derives the registry key for a component type T.
func componentKey[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", zero)
	}
	return t.PkgPath() + "." + t.Name()
}

func denseFor[T any](s *Store) *denseColumn[T] {
	key := "dense:" + componentKey[T]()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.columns[key]; ok {
		return existing.(*denseColumn[T])
	}
	col := newDenseColumn[T]()
	s.columns[key] = col
	return col
}

func sparseFor[T any](s *Store) *sparseColumn[T] {
	key := "sparse:" + componentKey[T]()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.columns[key]; ok {
		return existing.(*sparseColumn[T])
	}
	col := newSparseColumn[T]()
	s.columns[key] = col
	return col
}

func markerFor[T any](s *Store) *markerColumn {
	key := "marker:" + componentKey[T]()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.columns[key]; ok {
		return existing.(*markerColumn)
	}
	col := newMarkerColumn()
	s.columns[key] = col
	return col
}
