package command

import (
	"testing"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/placement"
	"github.com/thinkofname/univercity-core/room"
)

const classroomCostPerTile = 10

func classroomWorld() (*testWorld, ids.ResourceKey) {
	w := newTestWorld()
	key := ids.New("base", "classroom")
	w.descriptors[key] = room.Descriptor{
		MinWidth: 2, MinHeight: 2, BaseCost: 100, CostPerTile: classroomCostPerTile,
		Tile: ids.New("base", "floor"),
	}
	return w, key
}

func TestPlaceRoomExecuteAndUndo(t *testing.T) {
	w, key := classroomWorld()
	area := room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	cmd := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: area}

	if err := cmd.Execute(w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(w.rooms.RoomsOwnedBy(ids.PlayerId(1))) != 1 {
		t.Fatalf("expected a Planning room to exist")
	}

	cmd.Undo(w)
	if len(w.rooms.RoomsOwnedBy(ids.PlayerId(1))) != 0 {
		t.Fatalf("expected undo to remove the planned room")
	}
}

func TestPlaceRoomRejectsBelowMinimumSize(t *testing.T) {
	w, key := classroomWorld()
	cmd := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}}

	if err := cmd.Execute(w); err != ErrRoomTooSmall {
		t.Fatalf("expected ErrRoomTooSmall, got %v", err)
	}
}

func TestResizeRoomExecuteAndUndo(t *testing.T) {
	w, key := classroomWorld()
	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	if err := place.Execute(w); err != nil {
		t.Fatalf("PlaceRoom: %v", err)
	}

	resize := &ResizeRoom{Room: place.roomID, NewArea: room.Bounds{MinX: 0, MinY: 0, MaxX: 3, MaxY: 1}}
	if err := resize.Execute(w); err != nil {
		t.Fatalf("ResizeRoom: %v", err)
	}
	p, _ := w.rooms.Get(place.roomID)
	if p.Area.Width() != 4 {
		t.Fatalf("expected resized width 4, got %d", p.Area.Width())
	}

	resize.Undo(w)
	p, _ = w.rooms.Get(place.roomID)
	if p.Area.Width() != 2 {
		t.Fatalf("expected undo to restore the original width, got %d", p.Area.Width())
	}
}

func TestFinalizeRoomPlacementChargesAndAdvancesLifecycle(t *testing.T) {
	w, key := classroomWorld()
	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	if err := place.Execute(w); err != nil {
		t.Fatalf("PlaceRoom: %v", err)
	}

	startBuilding := &FinalizeRoomPlacement{Room: place.roomID}
	if err := startBuilding.Execute(w); err != nil {
		t.Fatalf("FinalizeRoomPlacement (start building): %v", err)
	}
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 900 {
		t.Fatalf("expected base cost charged, balance=%d", bal)
	}
	p, _ := w.rooms.Get(place.roomID)
	if p.State != room.Building {
		t.Fatalf("expected room in Building state, got %v", p.State)
	}

	startBuilding.Undo(w)
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 1000 {
		t.Fatalf("expected base cost refunded, balance=%d", bal)
	}
	p, _ = w.rooms.Get(place.roomID)
	if p.State != room.Planning {
		t.Fatalf("expected undo to restore Planning state, got %v", p.State)
	}
}

func TestFinalizeRoomPlacementRejectsMissingRequiredObjects(t *testing.T) {
	w, key := classroomWorld()
	desc := w.descriptors[key]
	desc.RequiredObjects = map[ids.ResourceKey]int{ids.New("base", "desk"): 1}
	w.descriptors[key] = desc

	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	if err := place.Execute(w); err != nil {
		t.Fatalf("PlaceRoom: %v", err)
	}
	if err := (&FinalizeRoomPlacement{Room: place.roomID}).Execute(w); err != nil {
		t.Fatalf("FinalizeRoomPlacement (start building): %v", err)
	}

	commit := &FinalizeRoomPlacement{Room: place.roomID}
	if err := commit.Execute(w); err != ErrObjectsMissing {
		t.Fatalf("expected ErrObjectsMissing, got %v", err)
	}
}

func TestFinalizeRoomPlacementCommitAndUndoReopens(t *testing.T) {
	w, key := classroomWorld()
	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 2, MaxY: 1}}
	if err := place.Execute(w); err != nil {
		t.Fatalf("PlaceRoom: %v", err)
	}
	if err := (&FinalizeRoomPlacement{Room: place.roomID}).Execute(w); err != nil {
		t.Fatalf("start building: %v", err)
	}

	commit := &FinalizeRoomPlacement{Room: place.roomID}
	if err := commit.Execute(w); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p, _ := w.rooms.Get(commit.committedID)
	if p.State != room.Done {
		t.Fatalf("expected Done state, got %v", p.State)
	}
	if bal := w.players[ids.PlayerId(1)].Balance(); bal >= 900 {
		t.Fatalf("expected remaining cost charged on top of the base cost, balance=%d", bal)
	}

	commit.Undo(w)
	if _, err := w.rooms.Get(commit.committedID); err != room.ErrRoomNotFound {
		t.Fatalf("expected the committed id gone after undo, got %v", err)
	}
	reopened, err := w.rooms.Get(place.roomID)
	if err != nil || reopened.State != room.Building {
		t.Fatalf("expected the room reopened as Building, err=%v state=%v", err, reopened.State)
	}
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 900 {
		t.Fatalf("expected only the base cost still charged after undoing the commit, balance=%d", bal)
	}
}

func TestCancelRoomPlacementRefundsAndRestores(t *testing.T) {
	w, key := classroomWorld()
	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	place.Execute(w)
	(&FinalizeRoomPlacement{Room: place.roomID}).Execute(w)

	cancel := &CancelRoomPlacement{Room: place.roomID}
	if err := cancel.Execute(w); err != nil {
		t.Fatalf("CancelRoomPlacement: %v", err)
	}
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 1000 {
		t.Fatalf("expected placement cost refunded, balance=%d", bal)
	}
	if _, err := w.rooms.Get(place.roomID); err != room.ErrRoomNotFound {
		t.Fatalf("expected the room removed, got %v", err)
	}

	cancel.Undo(w)
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 900 {
		t.Fatalf("expected undo to re-charge the refunded cost, balance=%d", bal)
	}
}

func TestPlaceObjectAndRemoveObjectRoundTrip(t *testing.T) {
	w, key := classroomWorld()
	place := &PlaceRoom{Player: ids.PlayerId(1), Key: key, Area: room.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	place.Execute(w)
	(&FinalizeRoomPlacement{Room: place.roomID}).Execute(w)

	deskKey := ids.New("base", "desk")
	actions := []placement.Action{placement.RoomBound(0, 0, 1, 1)}
	place2 := &PlaceObject{Room: place.roomID, Slot: 1, Key: deskKey, Version: 1, Actions: actions}
	if err := place2.Execute(w); err != nil {
		t.Fatalf("PlaceObject: %v", err)
	}
	p, _ := w.rooms.Get(place.roomID)
	if p.Building.Objects[1] == nil {
		t.Fatalf("expected object placed at slot 1")
	}

	remove := &RemoveObject{Room: place.roomID, Slot: 1}
	if err := remove.Execute(w); err != nil {
		t.Fatalf("RemoveObject: %v", err)
	}
	if p.Building.Objects[1] != nil {
		t.Fatalf("expected slot 1 freed")
	}

	remove.Undo(w)
	if p.Building.Objects[1] == nil || p.Building.Objects[1].Key != deskKey {
		t.Fatalf("expected undo to restore the removed object")
	}

	place2.Undo(w)
	if p.Building.Objects[1] != nil {
		t.Fatalf("expected PlaceObject undo to free the slot again")
	}
}

func TestPayStaffExecuteAndUndo(t *testing.T) {
	w, _ := classroomWorld()
	cmd := &PayStaff{Player: ids.PlayerId(1), Amount: 250}
	if err := cmd.Execute(w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 750 {
		t.Fatalf("expected balance charged, got %d", bal)
	}
	cmd.Undo(w)
	if bal := w.players[ids.PlayerId(1)].Balance(); bal != 1000 {
		t.Fatalf("expected undo to refund, got %d", bal)
	}
}

func TestPayStaffInsufficientFunds(t *testing.T) {
	w, _ := classroomWorld()
	cmd := &PayStaff{Player: ids.PlayerId(1), Amount: 5000}
	if err := cmd.Execute(w); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestExecRoomAndExecIdleAreNotUndoable(t *testing.T) {
	w, _ := classroomWorld()
	exec := &ExecRoom{Room: ids.RoomId(1), Entry: ids.EntryPoint{}}
	if err := exec.Execute(w); err != nil {
		t.Fatalf("ExecRoom.Execute: %v", err)
	}
	exec.Undo(w) // must not panic; no state to reverse

	idle := (&ExecIdle{Entity: ids.NewEntityId(1, 1), Entry: ids.EntryPoint{}})
	if err := idle.Execute(w); err != nil {
		t.Fatalf("ExecIdle.Execute: %v", err)
	}
	idle.Undo(w)
}

func TestSorryIsInertAndDispatchable(t *testing.T) {
	w, _ := classroomWorld()
	s := &Sorry{Reason: "room gone"}
	if err := s.Execute(w); err != nil {
		t.Fatalf("Sorry.Execute should never fail: %v", err)
	}
	s.Undo(w)

	h := &recordingHandler{}
	entry := Entry{ID: ids.CommandId(1), Player: ids.Server, Command: s}
	dispatchExecute(h, entry)
	dispatchUndo(h, entry)
}
