package controller

import (
	"math/rand"
	"testing"

	"github.com/thinkofname/univercity-core/ecs"
	"github.com/thinkofname/univercity-core/ids"
)

func TestRequestOnUncontrolledEntityIsImmediate(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()

	c.Request(e, ecs.RoomController(ids.RoomId(1)))

	got, ok := c.Controlled.Get(e)
	if !ok || got.By.Kind != ecs.ControllerRoom || got.By.Room != ids.RoomId(1) {
		t.Fatalf("expected immediate hand-off, got %+v ok=%v", got, ok)
	}
}

func TestRequestOnControlledEntitySetsWantedAndShouldRelease(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.Controlled.Set(e, ecs.Controlled{By: ecs.RoomController(ids.RoomId(1))})

	c.Request(e, ecs.RoomController(ids.RoomId(2)))

	got, _ := c.Controlled.Get(e)
	if got.By.Room != ids.RoomId(1) {
		t.Fatalf("current controller must not change until release, got %+v", got)
	}
	if !got.ShouldRelease || got.Wanted.Room != ids.RoomId(2) {
		t.Fatalf("expected pending request recorded, got %+v", got)
	}
}

func TestReleaseHandsOffToWantedIfPending(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.Controlled.Set(e, ecs.Controlled{
		By:            ecs.RoomController(ids.RoomId(1)),
		Wanted:        ecs.RoomController(ids.RoomId(2)),
		ShouldRelease: true,
	})

	c.Release(e)

	got, _ := c.Controlled.Get(e)
	if got.By.Room != ids.RoomId(2) {
		t.Fatalf("expected hand-off to the wanted controller, got %+v", got)
	}
	if got.ShouldRelease || got.Wanted.Kind != ecs.ControllerNone {
		t.Fatalf("stale request state must be cleared on hand-off, got %+v", got)
	}
}

func TestReleaseWithNoPendingRequestBecomesUncontrolled(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.Controlled.Set(e, ecs.Controlled{By: ecs.RoomController(ids.RoomId(1))})

	c.Release(e)

	got, _ := c.Controlled.Get(e)
	if got.By.Kind != ecs.ControllerNone {
		t.Fatalf("expected uncontrolled, got %+v", got)
	}
}

func TestForceReleaseStripsControlAndRoomOwnership(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.Controlled.Set(e, ecs.Controlled{By: ecs.RoomController(ids.RoomId(1))})
	c.RoomOwned.Set(e, ecs.RoomOwned{Room: ids.RoomId(1), Active: true})
	c.Idle.Set(e, ecs.Idle{CurrentChoice: 3})

	c.ForceRelease(e)

	got, _ := c.Controlled.Get(e)
	if got.By.Kind != ecs.ControllerNone {
		t.Fatalf("expected uncontrolled after force release, got %+v", got)
	}
	if c.RoomOwned.Has(e) {
		t.Fatalf("expected room ownership cleared")
	}
	if c.Idle.Has(e) {
		t.Fatalf("expected idle state cleared")
	}
}

func TestShouldReleaseFromInactiveRoom(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.RoomOwned.Set(e, ecs.RoomOwned{Room: ids.RoomId(1), Active: false, ShouldReleaseIfInactive: true})

	if !c.ShouldRelease(e) {
		t.Fatalf("expected should-release due to inactive room")
	}
}

func TestQuitTagsEntityButLeavesControlUntouched(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	e := store.Create()
	c.Controlled.Set(e, ecs.Controlled{By: ecs.RoomController(ids.RoomId(1))})

	c.Quit(e)

	if !c.Quitting.Has(e) {
		t.Fatalf("expected entity tagged Quitting")
	}
	got, _ := c.Controlled.Get(e)
	if got.By.Room != ids.RoomId(1) {
		t.Fatalf("Quit must not itself change the current controller, got %+v", got)
	}
}

func TestProcessQuittingRemovesOnlyThoseOutOfAnyRoom(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)

	stillInRoom := store.Create()
	c.Quitting.Set(stillInRoom, true)
	c.RoomOwned.Set(stillInRoom, ecs.RoomOwned{Room: ids.RoomId(1), Active: true})

	leftRoom := store.Create()
	c.Quitting.Set(leftRoom, true)

	notQuitting := store.Create()

	c.ProcessQuitting()

	if !store.IsAlive(stillInRoom) {
		t.Fatalf("entity still inside an active room must not be removed yet")
	}
	if store.IsAlive(leftRoom) {
		t.Fatalf("entity with no active room ownership should have been removed")
	}
	if !store.IsAlive(notQuitting) {
		t.Fatalf("entity never tagged Quitting must be untouched")
	}
}

func TestRequestEntityTransfersIdleEntityToRoomAuthority(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	kind := ids.New("base", "student")

	idleEntity := store.Create()
	c.Living.Set(idleEntity, ecs.Living{Kind: kind})
	c.Controlled.Set(idleEntity, ecs.Controlled{By: ecs.IdleController(0)})

	controllerEntity := store.Create()
	room := ids.RoomId(5)

	got, ok := c.RequestEntity(room, controllerEntity, kind)
	if !ok || got != idleEntity {
		t.Fatalf("expected idle entity to be found, got %v ok=%v", got, ok)
	}

	ro, _ := c.RoomOwned.Get(idleEntity)
	if ro.Room != room || !ro.Active {
		t.Fatalf("expected entity claimed by room, got %+v", ro)
	}
	ctl, _ := c.Controlled.Get(idleEntity)
	if ctl.By.Kind != ecs.ControllerRoom || ctl.By.Room != room {
		t.Fatalf("expected controller authority transferred to room, got %+v", ctl)
	}
	rc, _ := c.RoomControllers.Get(controllerEntity)
	if len(rc.Entities) != 1 || rc.Entities[0] != idleEntity {
		t.Fatalf("expected entity recorded on the controller, got %+v", rc)
	}
}

func TestRequestEntityRecordsScriptRequestWhenNoneIdle(t *testing.T) {
	store := ecs.NewStore()
	c := NewComponents(store)
	kind := ids.New("base", "student")
	controllerEntity := store.Create()

	_, ok := c.RequestEntity(ids.RoomId(1), controllerEntity, kind)
	if ok {
		t.Fatalf("expected no entity to be found")
	}

	rc, _ := c.RoomControllers.Get(controllerEntity)
	if rc.ScriptRequests[kind] != 1 {
		t.Fatalf("expected the request recorded against the kind, got %+v", rc.ScriptRequests)
	}
}

func TestIdleChoiceTableWeighting(t *testing.T) {
	table := NewIdleChoiceTable(
		Choice{Script: ids.New("base", "idle/wander"), Weight: 0},
		Choice{Script: ids.New("base", "idle/sit"), Weight: 1},
	)
	rng := rand.New(rand.NewSource(1))
	choice, ok := table.Choose(rng)
	if !ok {
		t.Fatalf("expected a choice")
	}
	if choice.String() != "base:idle/sit" {
		t.Fatalf("zero-weight choice must never be selected, got %s", choice)
	}
}

func TestIdleChoiceTableEmpty(t *testing.T) {
	table := NewIdleChoiceTable()
	if _, ok := table.Choose(rand.New(rand.NewSource(1))); ok {
		t.Fatalf("empty table should report no choice")
	}
}
