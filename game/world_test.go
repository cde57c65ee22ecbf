package game

import (
	"testing"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/script"
)

func TestAccountChargeAndRefund(t *testing.T) {
	a := NewAccount(ids.PlayerId(1), 100)
	if !a.Charge(40) {
		t.Fatalf("expected charge within balance to succeed")
	}
	if a.Balance() != 60 {
		t.Fatalf("expected balance 60, got %d", a.Balance())
	}
	if a.Charge(1000) {
		t.Fatalf("expected charge above balance to fail")
	}
	a.Refund(40)
	if a.Balance() != 100 {
		t.Fatalf("expected balance restored to 100, got %d", a.Balance())
	}
}

func TestWorldPlayerLookupTracksAddAndRemove(t *testing.T) {
	w := NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, script.NewEngine(nil))
	w.AddPlayer(ids.PlayerId(1), 500)

	p, ok := w.Player(ids.PlayerId(1))
	if !ok || p.Balance() != 500 {
		t.Fatalf("expected a registered account with balance 500, ok=%v", ok)
	}

	w.RemoveAccount(ids.PlayerId(1))
	if _, ok := w.Player(ids.PlayerId(1)); ok {
		t.Fatalf("expected the account gone after RemoveAccount")
	}
}

func TestWorldSpawnAndDestroyRoomController(t *testing.T) {
	w := NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, script.NewEngine(nil))
	e := w.SpawnRoomController(ids.RoomId(1))

	ctl, ok := w.Controllers.Controlled.Get(e)
	if !ok || ctl.By.Room != ids.RoomId(1) {
		t.Fatalf("expected the spawned entity controlled by room 1")
	}

	w.DestroyEntity(e)
	if w.Store.IsAlive(e) {
		t.Fatalf("expected the entity destroyed")
	}
}

func TestWorldDescriptorLookup(t *testing.T) {
	key := ids.New("base", "classroom")
	descriptors := map[ids.ResourceKey]room.Descriptor{key: {MinWidth: 2, MinHeight: 2}}
	w := NewWorld(nil, descriptors, script.NewEngine(nil))

	d, ok := w.Descriptor(key)
	if !ok || d.MinWidth != 2 {
		t.Fatalf("expected the registered descriptor, ok=%v", ok)
	}
	if _, ok := w.Descriptor(ids.New("base", "unknown")); ok {
		t.Fatalf("expected no descriptor for an unregistered key")
	}
}

func TestRunRoomEntryFailsWhenScriptHasNoOnRequestHook(t *testing.T) {
	w := NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, script.NewEngine(nil))
	key := ids.New("base", "classroom")
	controllerKey := ids.New("base", "classroom_controller")
	w.AddPlayer(ids.PlayerId(1), 1000)
	w.descriptors[key] = room.Descriptor{MinWidth: 2, MinHeight: 2, Controller: controllerKey}
	w.RegisterScript(controllerKey, "") // no hooks defined

	id := w.Rooms().BeginPlanning(ids.PlayerId(1), key, room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, nil)
	desc, _ := w.Descriptor(key)
	if err := w.Rooms().StartBuilding(id, desc); err != nil {
		t.Fatalf("StartBuilding: %v", err)
	}

	if err := w.RunRoomEntry(id, ids.EntryPoint{Key: controllerKey, Method: "open"}); err == nil {
		t.Fatalf("expected an error since the registered script defines no OnRequest hook")
	}
}

func TestRunRoomEntryFailsWhenScriptNotRegistered(t *testing.T) {
	w := NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, script.NewEngine(nil))
	key := ids.New("base", "classroom")
	controllerKey := ids.New("base", "classroom_controller")
	w.AddPlayer(ids.PlayerId(1), 1000)
	w.descriptors[key] = room.Descriptor{MinWidth: 2, MinHeight: 2, Controller: controllerKey}

	id := w.Rooms().BeginPlanning(ids.PlayerId(1), key, room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, nil)
	desc, _ := w.Descriptor(key)
	if err := w.Rooms().StartBuilding(id, desc); err != nil {
		t.Fatalf("StartBuilding: %v", err)
	}

	if err := w.RunRoomEntry(id, ids.EntryPoint{Key: controllerKey}); err == nil {
		t.Fatalf("expected an error since no source was ever registered for the controller key")
	}
}

func TestRunRoomEntryFailsWithoutDescriptorController(t *testing.T) {
	w := NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, script.NewEngine(nil))
	key := ids.New("base", "classroom")
	w.AddPlayer(ids.PlayerId(1), 1000)
	w.descriptors[key] = room.Descriptor{MinWidth: 2, MinHeight: 2}

	id := w.Rooms().BeginPlanning(ids.PlayerId(1), key, room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, nil)
	if err := w.RunRoomEntry(id, ids.EntryPoint{}); err == nil {
		t.Fatalf("expected an error for a descriptor with no controller script")
	}
}

var _ command.World = (*World)(nil)
