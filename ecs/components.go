package ecs

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/thinkofname/univercity-core/ids"
)

// Position is the entity's world-space location in tile units.
type Position struct{ Vec mgl32.Vec3 }

// Rotation is the entity's current facing, in radians around the
// vertical axis.
type Rotation struct{ Radians float32 }

// TargetPosition is the position a movement system is steering the
// entity toward.
type TargetPosition struct{ Vec mgl32.Vec3 }

// TargetRotation is the rotation a movement system is steering the
// entity toward.
type TargetRotation struct{ Radians float32 }

// MovementSpeed caps how fast Position/Rotation may approach their
// targets, in tiles (radians) per tick.
type MovementSpeed struct {
	Linear  float32
	Angular float32
}

// Living marks an entity as a person (staff or student) of a given kind
// and named variant.
type Living struct {
	Kind    ids.ResourceKey
	Variant string
	Name    string
}

// Object marks an entity as the runtime counterpart of a placed object
// (e.g. an attached prop that itself has behaviour).
type Object struct{ Kind ids.ResourceKey }

// Owned records the player that owns an entity (a placed object's
// controller entity, for instance).
type Owned struct{ Player ids.PlayerId }

// Controller is a sum type identifying the current authority over an
// entity: no one, a room, or an idle choice.
type Controller struct {
	Kind   ControllerKind
	Room   ids.RoomId
	Choice int
}

// ControllerKind discriminates Controller's payload.
type ControllerKind uint8

const (
	ControllerNone ControllerKind = iota
	ControllerRoom
	ControllerIdle
)

// NoneController is the zero Controller value.
var NoneController = Controller{Kind: ControllerNone}

// RoomController returns a Controller authority tag for room.
func RoomController(room ids.RoomId) Controller { return Controller{Kind: ControllerRoom, Room: room} }

// IdleController returns a Controller authority tag for an idle choice.
func IdleController(choice int) Controller { return Controller{Kind: ControllerIdle, Choice: choice} }

func (c Controller) Equal(o Controller) bool {
	return c.Kind == o.Kind && c.Room == o.Room && c.Choice == o.Choice
}

// Controlled drives the hand-off protocol of spec §4.5: By is the
// authority currently directing the entity, Wanted is the authority a
// request is trying to move it to, and ShouldRelease is set by the core
// to ask a cooperative script to surrender control.
type Controlled struct {
	By            Controller
	Wanted        Controller
	ShouldRelease bool
}

// RoomOwned marks an entity as currently inside/belonging to a room,
// independent of whether that room is also its Controller.
type RoomOwned struct {
	Room                    ids.RoomId
	Active                  bool
	ShouldReleaseIfInactive bool
}

// RoomControllerState is attached to a room's controller entity: the set
// of entities and visitors it currently directs, its waiting list,
// capacity and bookkeeping for pending entity requests.
type RoomControllerState struct {
	Entities           []ids.EntityId
	Visitors           []ids.EntityId
	WaitingList        []ids.EntityId
	Capacity           int
	ScriptRequests     map[ids.ResourceKey]int
	ActiveStaff        []ids.EntityId
	TimetabledVisitors int
}

// NetworkIdentity attaches the stable replication identity to an entity.
type NetworkIdentity struct{ ID ids.NetworkId }

// Idle is attached to an entity the idle subsystem currently owns: which
// choice it is running and how long it has been idle in total.
type Idle struct {
	CurrentChoice int
	TotalIdleTime float64
}

// TimeTableSlot is one entry of a TimeTable.
type TimeTableSlot struct {
	Activity ids.ResourceKey
	Room     ids.RoomId
	Start    int
	End      int
}

// TimeTable is a student or staff member's schedule of activities.
type TimeTable struct{ Slots []TimeTableSlot }

// Activity records the activity an entity is currently engaged in.
type Activity struct{ Current ids.ResourceKey }

// Grades tracks a student's per-subject performance, keyed by subject
// resource key.
type Grades struct{ Subjects map[ids.ResourceKey]float32 }

// Paid tracks the wage bookkeeping for a staff entity.
type Paid struct {
	Cost        int64
	WantedCost  int64
	LastPayment int64
}

// Money is the wallet of a player-owned entity (usually only the
// server's synthetic per-player accounts carry it; see game.Account).
type Money struct{ Amount int64 }

// Tints overrides the palette applied to the entity's model.
type Tints struct{ Colors [3]uint32 }

// Quitting marks an entity to be removed once it exits any room it
// currently occupies.
type Quitting struct{}

// Frozen suspends movement/AI systems for an entity.
type Frozen struct{}

// Highlighted marks an entity for UI emphasis (outside core scope beyond
// the flag itself).
type Highlighted struct{}

// RequiresRoom marks an entity as unable to proceed until a room of a
// given kind exists and owns it.
type RequiresRoom struct{ Kind ids.ResourceKey }

// Follow makes an entity steer toward another entity's position.
type Follow struct{ Target ids.EntityId }

// AttachedTo rigidly attaches an entity to a bone/offset of another
// entity (e.g. a held prop).
type AttachedTo struct {
	Target ids.EntityId
	Bone   string
	Offset mgl32.Vec3
}

// ForceLeave tags an entity for forcible ejection from a room (see
// controller.ForceRelease), distinct from the cooperative Quitting path.
type ForceLeave struct{ Room ids.RoomId }
