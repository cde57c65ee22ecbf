package script

import (
	"fmt"
	"reflect"
	"sync"
)

// BorrowRegistry enforces the same "one writer xor many readers" rule
// lua::Read<T>/Write<T> give the original engine, but keyed by
// reflect.Type instead of a generated trait, so any resource a script
// needs exposed (the entity store, the room registry, the tile grid)
// can register itself without this package needing to know its type in
// advance.
type BorrowRegistry struct {
	mu    sync.Mutex
	state map[reflect.Type]*borrowState
}

type borrowState struct {
	writer bool
	readers int
}

// NewBorrowRegistry returns an empty registry.
func NewBorrowRegistry() *BorrowRegistry {
	return &BorrowRegistry{state: make(map[reflect.Type]*borrowState)}
}

// ErrBorrowConflict is returned when a read or write borrow would
// violate the one-writer-xor-many-readers rule.
var ErrBorrowConflict = fmt.Errorf("script: borrow conflict")

func keyFor[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}

// BorrowRead acquires a shared (read) borrow of T. Fails if T is
// currently write-borrowed. A free function, not a method, because Go
// methods cannot carry their own type parameters.
func BorrowRead[T any](r *BorrowRegistry) (func(), error) {
	return r.borrowRead(keyFor[T]())
}

func (r *BorrowRegistry) borrowRead(t reflect.Type) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[t]
	if !ok {
		st = &borrowState{}
		r.state[t] = st
	}
	if st.writer {
		return nil, ErrBorrowConflict
	}
	st.readers++
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		st.readers--
	}, nil
}

// BorrowWrite acquires an exclusive (write) borrow of T. Fails if T is
// currently borrowed at all, read or write.
func BorrowWrite[T any](r *BorrowRegistry) (func(), error) {
	return r.borrowWrite(keyFor[T]())
}

func (r *BorrowRegistry) borrowWrite(t reflect.Type) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[t]
	if !ok {
		st = &borrowState{}
		r.state[t] = st
	}
	if st.writer || st.readers > 0 {
		return nil, ErrBorrowConflict
	}
	st.writer = true
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		st.writer = false
	}, nil
}
