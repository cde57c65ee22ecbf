package ecs

import "github.com/thinkofname/univercity-core/ids"

// DenseComponent is a scoped borrow of a dense component column: a typed
// view that can be read and written without touching any other column,
// so two systems that touch disjoint components (e.g. Position and
// Money) never contend with each other.
type DenseComponent[T any] struct{ col *denseColumn[T] }

// Dense returns the dense column for component T, creating it on first
// use. Safe to call concurrently and repeatedly; the same column is
// returned for the lifetime of the store.
func Dense[T any](s *Store) DenseComponent[T] { return DenseComponent[T]{col: denseFor[T](s)} }

// Get returns the component value for e and whether it is present.
func (d DenseComponent[T]) Get(e ids.EntityId) (T, bool) { return d.col.get(e.Index()) }

// Set assigns the component value for e, adding it if absent.
func (d DenseComponent[T]) Set(e ids.EntityId, v T) { d.col.set(e.Index(), v) }

// Remove clears the component for e. A no-op if it was not present.
func (d DenseComponent[T]) Remove(e ids.EntityId) { d.col.remove(e.Index()) }

// Has reports whether e carries this component.
func (d DenseComponent[T]) Has(e ids.EntityId) bool { return d.col.has(e.Index()) }

// SparseComponent is a scoped borrow of a sparse component column,
// packed for components only a minority of entities carry.
type SparseComponent[T any] struct{ col *sparseColumn[T] }

// Sparse returns the sparse column for component T, creating it on first
// use.
func Sparse[T any](s *Store) SparseComponent[T] { return SparseComponent[T]{col: sparseFor[T](s)} }

func (d SparseComponent[T]) Get(e ids.EntityId) (T, bool) { return d.col.get(e.Index()) }
func (d SparseComponent[T]) Set(e ids.EntityId, v T)      { d.col.set(e.Index(), v) }
func (d SparseComponent[T]) Remove(e ids.EntityId)        { d.col.remove(e.Index()) }
func (d SparseComponent[T]) Has(e ids.EntityId) bool      { return d.col.has(e.Index()) }

// ForEach visits every entity currently carrying this component. fn
// receives a pointer to a detached copy of the value; mutations through
// it are written back once fn returns.
func (d SparseComponent[T]) ForEach(fn func(index uint32, v *T)) { d.col.forEach(fn) }

// Marker is a presence-only tag component (Frozen, Quitting, ...).
type Marker[T any] struct{ col *markerColumn }

// MarkerFor returns the marker column for tag type T.
func MarkerFor[T any](s *Store) Marker[T] { return Marker[T]{col: markerFor[T](s)} }

// Set assigns whether e carries this tag.
func (m Marker[T]) Set(e ids.EntityId, v bool) { m.col.set(e.Index(), v) }

// Has reports whether e carries this tag.
func (m Marker[T]) Has(e ids.EntityId) bool { return m.col.has(e.Index()) }

// Query2 visits every live entity that carries both component A and B,
// in store iteration order (masked iteration over two disjoint dense
// columns).
func Query2[A, B any](s *Store, a DenseComponent[A], b DenseComponent[B], fn func(ids.EntityId, *A, *B)) {
	s.Each(func(e ids.EntityId) {
		av, ok := a.Get(e)
		if !ok {
			return
		}
		bv, ok := b.Get(e)
		if !ok {
			return
		}
		fn(e, &av, &bv)
		a.Set(e, av)
		b.Set(e, bv)
	})
}

// Query3 is Query2 extended to a third required component.
func Query3[A, B, C any](s *Store, a DenseComponent[A], b DenseComponent[B], c DenseComponent[C], fn func(ids.EntityId, *A, *B, *C)) {
	s.Each(func(e ids.EntityId) {
		av, ok := a.Get(e)
		if !ok {
			return
		}
		bv, ok := b.Get(e)
		if !ok {
			return
		}
		cv, ok := c.Get(e)
		if !ok {
			return
		}
		fn(e, &av, &bv, &cv)
		a.Set(e, av)
		b.Set(e, bv)
		c.Set(e, cv)
	})
}
