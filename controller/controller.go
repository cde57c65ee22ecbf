// Package controller implements the authority hand-off protocol for
// entities: requesting, releasing and force-releasing control between
// rooms and the idle subsystem, and the idle-choice weighted table used
// to pick what an unclaimed entity does with itself.
//
// The protocol is cooperative by default (Release asks nicely by
// setting Controlled.ShouldRelease and letting the owning script notice
// on its next tick) with ForceRelease as the non-cooperative escape
// hatch used when a room is being demolished out from under its
// occupants.
package controller

import (
	"math/rand"

	"github.com/thinkofname/univercity-core/ecs"
	"github.com/thinkofname/univercity-core/ids"
)

// Components bundles the column borrows the protocol operates over, so
// callers construct it once per tick (or once at startup, since columns
// are stable for the store's lifetime) instead of re-resolving each
// column on every call.
type Components struct {
	store *ecs.Store

	Controlled      ecs.DenseComponent[ecs.Controlled]
	RoomOwned       ecs.DenseComponent[ecs.RoomOwned]
	Idle            ecs.SparseComponent[ecs.Idle]
	Living          ecs.DenseComponent[ecs.Living]
	RoomControllers ecs.SparseComponent[ecs.RoomControllerState]
	Quitting        ecs.Marker[ecs.Quitting]
}

// NewComponents resolves every column Components needs from store.
func NewComponents(store *ecs.Store) Components {
	return Components{
		store:           store,
		Controlled:      ecs.Dense[ecs.Controlled](store),
		RoomOwned:       ecs.Dense[ecs.RoomOwned](store),
		Idle:            ecs.Sparse[ecs.Idle](store),
		Living:          ecs.Dense[ecs.Living](store),
		RoomControllers: ecs.Sparse[ecs.RoomControllerState](store),
		Quitting:        ecs.MarkerFor[ecs.Quitting](store),
	}
}

// RequestEntity searches every idle (uncontrolled-by-a-room) entity
// whose Living.Kind matches kind and transfers the first one found to
// room's authority: RoomOwned{room} and Controlled.by = Room(room) are
// set and it is pushed onto controllerEntity's RoomControllerState.
// Entities. If none is free, the request is instead recorded in
// controllerEntity's ScriptRequests count, to be granted later (by a
// system that re-runs RequestEntity) once a matching entity frees up.
func (c Components) RequestEntity(room ids.RoomId, controllerEntity ids.EntityId, kind ids.ResourceKey) (ids.EntityId, bool) {
	found := ids.InvalidEntity
	c.store.Each(func(e ids.EntityId) {
		if found.IsValid() {
			return
		}
		living, ok := c.Living.Get(e)
		if !ok || living.Kind != kind {
			return
		}
		ctl, ok := c.Controlled.Get(e)
		if !ok || ctl.By.Kind != ecs.ControllerIdle {
			return
		}
		found = e
	})

	if !found.IsValid() {
		rc, _ := c.RoomControllers.Get(controllerEntity)
		if rc.ScriptRequests == nil {
			rc.ScriptRequests = make(map[ids.ResourceKey]int)
		}
		rc.ScriptRequests[kind]++
		c.RoomControllers.Set(controllerEntity, rc)
		return ids.InvalidEntity, false
	}

	c.RoomOwned.Set(found, ecs.RoomOwned{Room: room, Active: true})
	c.Controlled.Set(found, ecs.Controlled{By: ecs.RoomController(room)})
	rc, _ := c.RoomControllers.Get(controllerEntity)
	rc.Entities = append(rc.Entities, found)
	c.RoomControllers.Set(controllerEntity, rc)
	return found, true
}

// Request asks for authority over e to move to want. If e is currently
// uncontrolled the hand-off happens immediately; otherwise the request
// is recorded as Wanted and ShouldRelease is raised so the current
// controller notices and cooperatively releases on its own next tick.
func (c Components) Request(e ids.EntityId, want ecs.Controller) {
	cur, ok := c.Controlled.Get(e)
	if !ok || cur.By.Kind == ecs.ControllerNone {
		c.Controlled.Set(e, ecs.Controlled{By: want})
		return
	}
	if cur.By.Equal(want) {
		return
	}
	cur.Wanted = want
	cur.ShouldRelease = true
	c.Controlled.Set(e, cur)
}

// Release voluntarily surrenders control of e. If a Wanted authority was
// pending, it is handed control immediately; otherwise e becomes
// uncontrolled. A no-op if e currently has no Controlled component.
func (c Components) Release(e ids.EntityId) {
	cur, ok := c.Controlled.Get(e)
	if !ok {
		return
	}
	if cur.Wanted.Kind != ecs.ControllerNone {
		c.Controlled.Set(e, ecs.Controlled{By: cur.Wanted})
		return
	}
	c.Controlled.Set(e, ecs.Controlled{})
}

// ForceRelease immediately strips e of its current controller and any
// room ownership, without waiting for the owning script to cooperate.
// Used when a room is demolished and its occupants must be evicted this
// tick regardless of what they were doing.
func (c Components) ForceRelease(e ids.EntityId) {
	c.Controlled.Set(e, ecs.Controlled{})
	c.RoomOwned.Remove(e)
	c.Idle.Remove(e)
}

// Quit tags e with ecs.Quitting: it keeps running under its current
// controller until the ECS systems walk it out of whatever room it
// occupies, at which point ProcessQuitting removes it from the store.
// Unlike Request/Release this is not cooperative - the entity does not
// need to notice or surrender authority itself.
func (c Components) Quit(e ids.EntityId) {
	c.Quitting.Set(e, true)
}

// ProcessQuitting removes every entity tagged Quitting that is no longer
// inside a room (RoomOwned absent, or its room reports it inactive).
// Called once per tick after room/controller systems have had a chance
// to walk a quitting entity out of its room.
func (c Components) ProcessQuitting() {
	var done []ids.EntityId
	c.store.Each(func(e ids.EntityId) {
		if !c.Quitting.Has(e) {
			return
		}
		if ro, ok := c.RoomOwned.Get(e); ok && ro.Active {
			return
		}
		done = append(done, e)
	})
	for _, e := range done {
		c.store.Destroy(e)
	}
}

// ShouldRelease reports whether e's current controller has been asked to
// release, either because another authority is waiting (Controlled.
// ShouldRelease) or because its room has gone inactive
// (RoomOwned.ShouldReleaseIfInactive combined with RoomOwned.Active ==
// false).
func (c Components) ShouldRelease(e ids.EntityId) bool {
	if ctl, ok := c.Controlled.Get(e); ok && ctl.ShouldRelease {
		return true
	}
	if ro, ok := c.RoomOwned.Get(e); ok && ro.ShouldReleaseIfInactive && !ro.Active {
		return true
	}
	return false
}

// Choice is one weighted option in an IdleChoiceTable.
type Choice struct {
	Script ids.ResourceKey
	Weight float32
}

// IdleChoiceTable picks what an idle entity does next, weighted toward
// options whose Weight is higher. An entity already running a choice
// keeps running it until it releases; only unclaimed entities draw from
// the table.
type IdleChoiceTable struct {
	choices []Choice
	total   float32
}

// NewIdleChoiceTable builds a table from the given weighted choices.
// Choices with a non-positive weight are dropped (they could never be
// selected and would otherwise skew nothing, but keeping them out keeps
// Total meaningful).
func NewIdleChoiceTable(choices ...Choice) *IdleChoiceTable {
	t := &IdleChoiceTable{}
	for _, c := range choices {
		if c.Weight <= 0 {
			continue
		}
		t.choices = append(t.choices, c)
		t.total += c.Weight
	}
	return t
}

// Choose draws a weighted-random choice using rng. Returns false if the
// table has no eligible choices.
func (t *IdleChoiceTable) Choose(rng *rand.Rand) (ids.ResourceKey, bool) {
	if len(t.choices) == 0 {
		return ids.ResourceKey{}, false
	}
	roll := rng.Float32() * t.total
	for _, c := range t.choices {
		if roll < c.Weight {
			return c.Script, true
		}
		roll -= c.Weight
	}
	return t.choices[len(t.choices)-1].Script, true
}
