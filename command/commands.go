package command

import (
	"errors"
	"fmt"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/placement"
	"github.com/thinkofname/univercity-core/room"
)

// ErrRoomTooSmall is returned by PlaceRoom/ResizeRoom when the requested
// area is smaller than the descriptor's min_size.
var ErrRoomTooSmall = errors.New("command: room smaller than minimum size")

// ErrRequirementsNotMet is returned by PlaceRoom when the player does not
// yet own enough of the descriptor's required room kinds.
var ErrRequirementsNotMet = errors.New("command: room requirements not met")

// ErrInsufficientFunds is returned by any command that charges a
// principal more than its current balance.
var ErrInsufficientFunds = errors.New("command: insufficient funds")

// ErrWrongRoomState is returned when a room-lifecycle command runs
// against a room no longer (or not yet) in the state it needs.
var ErrWrongRoomState = errors.New("command: room in the wrong state")

// ErrObjectsMissing is returned by FinalizeRoomPlacement's Building ->
// Done transition when the room's required_objects are not all present.
var ErrObjectsMissing = errors.New("command: required objects not placed")

func unknownPlayer(id ids.PlayerId) error { return fmt.Errorf("command: unknown player %v", id) }

// PlaceRoom begins Planning a new room of Key's kind over Area, owned by
// Player (spec §4.3 PlaceSelection). Fails the area is smaller than the
// descriptor's min_size or the player does not meet its Requirements;
// nothing is charged yet (FinalizeRoomPlacement charges the base cost).
type PlaceRoom struct {
	Player ids.PlayerId
	Key    ids.ResourceKey
	Area   room.Bounds

	roomID ids.RoomId
}

func (c *PlaceRoom) Execute(w World) error {
	if _, ok := w.Player(c.Player); !ok {
		return unknownPlayer(c.Player)
	}
	desc, ok := w.Descriptor(c.Key)
	if !ok {
		return fmt.Errorf("command: unknown room kind %s", c.Key)
	}
	if c.Area.Width() < desc.MinWidth || c.Area.Height() < desc.MinHeight {
		return ErrRoomTooSmall
	}
	owned := w.Rooms().CountOwnedByKind(c.Player)
	if !desc.CheckRequirements(owned) {
		return ErrRequirementsNotMet
	}
	c.roomID = w.Rooms().BeginPlanning(c.Player, c.Key, c.Area, w.Grid())
	return nil
}

func (c *PlaceRoom) Undo(w World) {
	w.Rooms().Remove(c.roomID)
}

// ResizeRoom changes a Planning room's Area (spec §4.3 ResizeRoom).
type ResizeRoom struct {
	Room    ids.RoomId
	NewArea room.Bounds

	oldArea room.Bounds
}

func (c *ResizeRoom) Execute(w World) error {
	p, err := w.Rooms().Get(c.Room)
	if err != nil {
		return err
	}
	desc, ok := w.Descriptor(p.Key)
	if !ok {
		return fmt.Errorf("command: unknown room kind %s", p.Key)
	}
	if c.NewArea.Width() < desc.MinWidth || c.NewArea.Height() < desc.MinHeight {
		return ErrRoomTooSmall
	}
	c.oldArea = p.Area
	return w.Rooms().Resize(c.Room, c.NewArea, w.Grid())
}

func (c *ResizeRoom) Undo(w World) {
	w.Rooms().Resize(c.Room, c.oldArea, w.Grid())
}

// CancelRoomPlacement discards a room that has not yet reached Done,
// refunding whatever PlacementCost has already been charged against it
// (spec §4.3 CancelRoomPlacement/CancelRoom, folded into one command).
type CancelRoomPlacement struct {
	Room ids.RoomId

	player  ids.PlayerId
	refund  int64
	key     ids.ResourceKey
	area    room.Bounds
}

func (c *CancelRoomPlacement) Execute(w World) error {
	p, err := w.Rooms().Get(c.Room)
	if err != nil {
		return err
	}
	if p.State.IsDone() {
		return ErrWrongRoomState
	}
	c.player, c.refund, c.key, c.area = p.Owner, p.PlacementCost, p.Key, p.Area
	if err := w.Rooms().Remove(c.Room); err != nil {
		return err
	}
	if c.refund > 0 {
		if pr, ok := w.Player(c.player); ok {
			pr.Refund(c.refund)
		}
	}
	return nil
}

func (c *CancelRoomPlacement) Undo(w World) {
	if c.refund > 0 {
		if pr, ok := w.Player(c.player); ok {
			pr.Charge(c.refund)
		}
	}
	w.Rooms().BeginPlanning(c.player, c.key, c.area, w.Grid())
}

// FinalizeRoomPlacement advances a room to the next lifecycle stage: a
// Planning room starts Building (charging the descriptor's base cost),
// a Building room commits to Done (charging the remaining cost_for_room,
// requiring every required_objects entry be satisfied, and spawning the
// room's controller entity). Spec §4.3 splits these into
// FinalizeRoomPlacement and FinalizeRoom; §2's top-level command list
// does not name FinalizeRoom separately, so this folds both into the one
// command, dispatching on the room's current state.
type FinalizeRoomPlacement struct {
	Room ids.RoomId

	// committed records whether Execute took the Building -> Done path,
	// so Undo knows which reversal to run.
	committed bool
	player    ids.PlayerId
	charged   int64

	// set when committed: enough to reverse the commit via Reopen.
	reopenID     ids.RoomId
	committedID  ids.RoomId
	vl           *room.VirtualLevel
	preCommit    []room.TileSnapshot
	controllerID ids.EntityId
}

func (c *FinalizeRoomPlacement) Execute(w World) error {
	p, err := w.Rooms().Get(c.Room)
	if err != nil {
		return err
	}
	desc, ok := w.Descriptor(p.Key)
	if !ok {
		return fmt.Errorf("command: unknown room kind %s", p.Key)
	}
	pr, ok := w.Player(p.Owner)
	if !ok {
		return unknownPlayer(p.Owner)
	}

	switch p.State {
	case room.Planning:
		cost := desc.BaseCost
		if !pr.Charge(cost) {
			return ErrInsufficientFunds
		}
		if err := w.Rooms().StartBuilding(c.Room, desc); err != nil {
			pr.Refund(cost)
			return err
		}
		p, _ = w.Rooms().Get(c.Room)
		p.PlacementCost += cost
		c.player, c.charged = p.Owner, cost
		return nil

	case room.Building:
		counts := make(map[ids.ResourceKey]int)
		for _, obj := range p.Building.Objects {
			if obj != nil {
				counts[obj.Key]++
			}
		}
		if !desc.CheckValidPlacement(counts) {
			return ErrObjectsMissing
		}
		remaining, err := w.Rooms().CostForRoom(desc, c.Room)
		if err != nil {
			return err
		}
		if !pr.Charge(remaining) {
			return ErrInsufficientFunds
		}

		grid := w.Grid()
		var preCommit []room.TileSnapshot
		if grid != nil {
			preCommit = room.SnapshotArea(grid, p.Area)
		}
		vl := p.Building
		controllerID := w.SpawnRoomController(c.Room)
		newID, err := w.Rooms().Commit(c.Room, grid, controllerID)
		if err != nil {
			pr.Refund(remaining)
			w.DestroyEntity(controllerID)
			return err
		}

		c.committed = true
		c.player, c.charged = p.Owner, remaining
		c.reopenID, c.committedID, c.vl, c.preCommit, c.controllerID = c.Room, newID, vl, preCommit, controllerID
		return nil

	default:
		return ErrWrongRoomState
	}
}

func (c *FinalizeRoomPlacement) Undo(w World) {
	if c.committed {
		w.Rooms().Reopen(c.committedID, c.reopenID, c.vl, w.Grid(), c.preCommit)
		w.DestroyEntity(c.controllerID)
	} else {
		if p, err := w.Rooms().Get(c.Room); err == nil {
			p.State = room.Planning
			p.Building = nil
		}
	}
	if c.charged > 0 {
		if pr, ok := w.Player(c.player); ok {
			pr.Refund(c.charged)
		}
	}
}

// PlaceObject places an object inside a Building room's virtual
// surface (spec §4.4). Actions is the reversible action
// log a content script computed for this placement; Command only
// validates and applies it.
type PlaceObject struct {
	Room    ids.RoomId
	Slot    int
	Key     ids.ResourceKey
	Version uint32
	Actions []placement.Action
}

func (c *PlaceObject) Execute(w World) error {
	p, err := w.Rooms().Get(c.Room)
	if err != nil {
		return err
	}
	vl := p.Building
	if vl == nil {
		return ErrWrongRoomState
	}
	_, err = vl.PlaceObject(c.Slot, c.Key, c.Version, c.Actions)
	return err
}

func (c *PlaceObject) Undo(w World) {
	if p, err := w.Rooms().Get(c.Room); err == nil && p.Building != nil {
		p.Building.RemoveObject(c.Slot)
	}
}

// RemoveObject reverses a previously placed object (spec §4.4 Remove).
type RemoveObject struct {
	Room ids.RoomId
	Slot int

	removed *room.ObjectState
}

func (c *RemoveObject) Execute(w World) error {
	p, err := w.Rooms().Get(c.Room)
	if err != nil {
		return err
	}
	vl := p.Building
	if vl == nil {
		return ErrWrongRoomState
	}
	if c.Slot < len(vl.Objects) {
		c.removed = vl.Objects[c.Slot]
	}
	return vl.RemoveObject(c.Slot)
}

func (c *RemoveObject) Undo(w World) {
	if c.removed == nil {
		return
	}
	if p, err := w.Rooms().Get(c.Room); err == nil && p.Building != nil {
		p.Building.PlaceObject(c.Slot, c.removed.Key, c.removed.Version, c.removed.Actions)
	}
}

// PayStaff charges Amount against Player's balance as a staff wage
// payment. It does not read or update any entity's Paid component.
type PayStaff struct {
	Player ids.PlayerId
	Amount int64
}

func (c *PayStaff) Execute(w World) error {
	pr, ok := w.Player(c.Player)
	if !ok {
		return unknownPlayer(c.Player)
	}
	if !pr.Charge(c.Amount) {
		return ErrInsufficientFunds
	}
	return nil
}

func (c *PayStaff) Undo(w World) {
	if pr, ok := w.Player(c.Player); ok {
		pr.Refund(c.Amount)
	}
}

// ExecRoom runs a room-controller script entry point (spec §4.6 point
// 5's script-submitted commands, queued to ExtraCommands and applied on
// the next command pass). Not undoable: the script itself is responsible
// for any reversible effect, each produced as its own Command.
type ExecRoom struct {
	Room  ids.RoomId
	Entry ids.EntryPoint
}

func (c *ExecRoom) Execute(w World) error { return w.RunRoomEntry(c.Room, c.Entry) }
func (c *ExecRoom) Undo(World)            {}

// ExecIdle runs an idle-choice script entry point against entity (spec
// §4.6 point 5). Not undoable, for the same reason as ExecRoom.
type ExecIdle struct {
	Entity ids.EntityId
	Entry  ids.EntryPoint
}

func (c *ExecIdle) Execute(w World) error { return w.RunIdleEntry(c.Entity, c.Entry) }
func (c *ExecIdle) Undo(World)            {}

// Sorry is pushed by RejectCommands onto the client's own history after
// undoing its rejected tail, so the client's next_command_id advances
// exactly as the server's did and the id clocks stay aligned (spec
// §4.7). It carries no world effect of its own.
type Sorry struct{ Reason string }

func (*Sorry) Execute(World) error { return nil }
func (*Sorry) Undo(World)          {}
