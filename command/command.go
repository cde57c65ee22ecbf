// Package command implements the reversible, undoable action pipeline
// shared by client and server: a tagged-union Command with Execute/Undo,
// a client-side optimistic history keyed by a wrapping CommandId clock,
// and the server's authoritative reordering/acknowledgement protocol.
package command

import (
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/tile"
)

// Command is one reversible action a player (or the server, acting on
// ids.Server's behalf) takes against the simulation: placing a room,
// placing an object inside one, paying staff, running a script-submitted
// action, and so on. Implementations are plain structs carrying only
// their own parameters; Execute/Undo receive the world they act on
// through World so Command values themselves stay serialisable.
type Command interface {
	// Execute applies the command to w, returning an error if its
	// preconditions are no longer met (the room was removed since it
	// was queued, the player can no longer afford it, ...). A command
	// that fails to execute is never placed in undo history.
	Execute(w World) error
	// Undo reverses a previously successful Execute. Called at most
	// once per successful Execute, and never before it.
	Undo(w World)
}

// World is the surface Command implementations need against the real
// simulation; the server and client each supply their own implementation
// alongside their much larger own APIs, analogous to how Dragonfly's
// world.Tx is threaded through handlers without those handlers needing
// the rest of *world.World.
type World interface {
	Player(ids.PlayerId) (Principal, bool)

	// Rooms is the registry every room-lifecycle command (PlaceRoom,
	// ResizeRoom, CancelRoomPlacement, FinalizeRoomPlacement) drives.
	Rooms() *room.Registry
	// Grid is the main tile surface a room's virtual level is copied
	// onto when FinalizeRoomPlacement commits it to Done.
	Grid() *tile.Grid
	// Descriptor resolves the immutable, content-pack-authored
	// definition for a room kind, false if key names no loaded room.
	Descriptor(key ids.ResourceKey) (room.Descriptor, bool)
	// SpawnRoomController creates the ECS entity a newly Done room's
	// per-tick controller script runs against.
	SpawnRoomController(id ids.RoomId) ids.EntityId
	// DestroyEntity reverses SpawnRoomController when a committing
	// FinalizeRoomPlacement is undone or fails part-way.
	DestroyEntity(e ids.EntityId)

	// RunRoomEntry invokes a room-kind entry point against room id,
	// for ExecRoom. What exactly "invoke" means (looking up compiled
	// script hooks, calling into the interpreter) is up to the caller's
	// World implementation; Command only needs the outcome.
	RunRoomEntry(room ids.RoomId, entry ids.EntryPoint) error
	// RunIdleEntry invokes an entry point against an idle-controlled
	// entity, for ExecIdle.
	RunIdleEntry(entity ids.EntityId, entry ids.EntryPoint) error
}

// Principal is the acting party a Command runs against: a connected
// player, or ids.Server for commands the server originates on its own
// behalf (script-submitted commands, scheduled maintenance). Charge and
// Refund are the only money operations Command implementations need;
// the real account bookkeeping (ecs.Money, wage ledgers) lives behind
// whatever concrete type satisfies Principal.
type Principal interface {
	ID() ids.PlayerId
	// Balance reports the principal's current spendable money.
	Balance() int64
	// Charge deducts amount if the principal can afford it, reporting
	// false (and deducting nothing) otherwise.
	Charge(amount int64) bool
	// Refund credits amount back, the exact inverse of a prior Charge.
	Refund(amount int64)
}

// Entry pairs a Command with the bookkeeping the history needs to
// reconcile it later: who submitted it, its id, and whether it has
// actually been applied (a command that failed Execute is kept out of
// history entirely, so every Entry here did apply).
type Entry struct {
	ID      ids.CommandId
	Player  ids.PlayerId
	Command Command
}
