package ecs

import (
	"testing"

	"github.com/thinkofname/univercity-core/ids"
)

func TestCreateDestroyGeneration(t *testing.T) {
	s := NewStore()
	e1 := s.Create()
	if !s.IsAlive(e1) {
		t.Fatalf("freshly created entity should be alive")
	}
	s.Destroy(e1)
	if s.IsAlive(e1) {
		t.Fatalf("destroyed entity should not be alive")
	}

	e2 := s.Create()
	if e2.Index() != e1.Index() {
		t.Fatalf("expected slot reuse, got index %d want %d", e2.Index(), e1.Index())
	}
	if e2.Generation() == e1.Generation() {
		t.Fatalf("expected generation bump on reuse, both were %d", e1.Generation())
	}
	if s.IsAlive(e1) {
		t.Fatalf("stale handle e1 must not report alive after slot reuse")
	}
	if !s.IsAlive(e2) {
		t.Fatalf("current handle e2 must report alive")
	}
}

func TestDenseComponentGetSetRemove(t *testing.T) {
	s := NewStore()
	e := s.Create()
	pos := Dense[Position](s)

	if _, ok := pos.Get(e); ok {
		t.Fatalf("unset component should not be present")
	}
	pos.Set(e, Position{})
	if _, ok := pos.Get(e); !ok {
		t.Fatalf("component should be present after Set")
	}
	pos.Remove(e)
	if _, ok := pos.Get(e); ok {
		t.Fatalf("component should be absent after Remove")
	}
}

func TestDestroyClearsDenseAndSparseAndMarker(t *testing.T) {
	s := NewStore()
	e := s.Create()

	pos := Dense[Position](s)
	pos.Set(e, Position{})

	tt := Sparse[TimeTable](s)
	tt.Set(e, TimeTable{})

	frozen := MarkerFor[Frozen](s)
	frozen.Set(e, true)

	s.Destroy(e)

	if pos.Has(e) || tt.Has(e) || frozen.Has(e) {
		t.Fatalf("all columns must drop a destroyed entity's data")
	}
}

func TestSparseComponentForEach(t *testing.T) {
	s := NewStore()
	col := Sparse[TimeTable](s)

	var entities []ids.EntityId
	for i := 0; i < 5; i++ {
		e := s.Create()
		entities = append(entities, e)
		col.Set(e, TimeTable{Slots: []TimeTableSlot{{Start: i}}})
	}
	// Only entities 1 and 3 keep the component.
	col.Remove(entities[0])
	col.Remove(entities[2])
	col.Remove(entities[4])

	seen := map[uint32]int{}
	col.ForEach(func(index uint32, v *TimeTable) {
		if len(v.Slots) != 1 {
			t.Fatalf("unexpected payload for index %d: %+v", index, v)
		}
		seen[index] = v.Slots[0].Start
	})

	if len(seen) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(seen))
	}
	if seen[entities[1].Index()] != 1 {
		t.Fatalf("wrong payload for entity 1: %d", seen[entities[1].Index()])
	}
	if seen[entities[3].Index()] != 3 {
		t.Fatalf("wrong payload for entity 3: %d", seen[entities[3].Index()])
	}
}

func TestSparseComponentRemoveSwapsLastSlot(t *testing.T) {
	s := NewStore()
	col := Sparse[TimeTable](s)

	a := s.Create()
	b := s.Create()
	c := s.Create()
	col.Set(a, TimeTable{Slots: []TimeTableSlot{{Start: 1}}})
	col.Set(b, TimeTable{Slots: []TimeTableSlot{{Start: 2}}})
	col.Set(c, TimeTable{Slots: []TimeTableSlot{{Start: 3}}})

	col.Remove(a) // swaps c into a's freed slot internally

	if col.Has(a) {
		t.Fatalf("removed entity must report absent")
	}
	bv, ok := col.Get(b)
	if !ok || bv.Slots[0].Start != 2 {
		t.Fatalf("unrelated entity b corrupted by removal: %+v ok=%v", bv, ok)
	}
	cv, ok := col.Get(c)
	if !ok || cv.Slots[0].Start != 3 {
		t.Fatalf("swapped entity c corrupted by removal: %+v ok=%v", cv, ok)
	}
}

func TestMarkerColumn(t *testing.T) {
	s := NewStore()
	m := MarkerFor[Frozen](s)
	e := s.Create()

	if m.Has(e) {
		t.Fatalf("marker should start unset")
	}
	m.Set(e, true)
	if !m.Has(e) {
		t.Fatalf("marker should be set")
	}
	m.Set(e, false)
	if m.Has(e) {
		t.Fatalf("marker should be cleared")
	}
}

func TestQuery2OnlyVisitsEntitiesWithBothComponents(t *testing.T) {
	s := NewStore()
	pos := Dense[Position](s)
	rot := Dense[Rotation](s)

	both := s.Create()
	pos.Set(both, Position{})
	rot.Set(both, Rotation{Radians: 1})

	onlyPos := s.Create()
	pos.Set(onlyPos, Position{})

	visited := map[uint32]bool{}
	Query2(s, pos, rot, func(e ids.EntityId, p *Position, r *Rotation) {
		visited[e.Index()] = true
		r.Radians += 1
	})

	if !visited[both.Index()] {
		t.Fatalf("entity with both components must be visited")
	}
	if visited[onlyPos.Index()] {
		t.Fatalf("entity missing Rotation must not be visited")
	}

	got, _ := rot.Get(both)
	if got.Radians != 2 {
		t.Fatalf("Query2 must write back mutations, got %+v", got)
	}
}

func TestQuery3RequiresAllThreeComponents(t *testing.T) {
	s := NewStore()
	pos := Dense[Position](s)
	rot := Dense[Rotation](s)
	speed := Dense[MovementSpeed](s)

	full := s.Create()
	pos.Set(full, Position{})
	rot.Set(full, Rotation{})
	speed.Set(full, MovementSpeed{Linear: 1})

	partial := s.Create()
	pos.Set(partial, Position{})
	rot.Set(partial, Rotation{})

	count := 0
	Query3(s, pos, rot, speed, func(e ids.EntityId, p *Position, r *Rotation, m *MovementSpeed) {
		count++
	})
	if count != 1 {
		t.Fatalf("expected exactly 1 entity visited, got %d", count)
	}
}

func TestControllerEqual(t *testing.T) {
	a := RoomController(ids.RoomId(5))
	b := RoomController(ids.RoomId(5))
	c := RoomController(ids.RoomId(6))
	if !a.Equal(b) {
		t.Fatalf("equal room controllers should compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("different rooms should not compare equal")
	}
	if a.Equal(NoneController) {
		t.Fatalf("room controller should not equal none")
	}
}
