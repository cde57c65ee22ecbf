// Package game wires the core simulation packages (ecs, room, tile,
// controller, script) into the concrete command.World/command.Principal
// a running server submits commands against. Nothing here is a system in
// its own right; it is the adapter the tick loop and the command
// pipeline both hold a reference to.
package game

import (
	"fmt"
	"sync"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/controller"
	"github.com/thinkofname/univercity-core/ecs"
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/script"
	"github.com/thinkofname/univercity-core/tile"
)

// Account is one player's wallet: command.Principal's concrete
// implementation, backing PayStaff/room-cost charges and refunds (spec
// §3's per-player balance).
type Account struct {
	mu      sync.Mutex
	id      ids.PlayerId
	balance int64
}

// NewAccount returns an account for id, seeded with the given starting
// balance.
func NewAccount(id ids.PlayerId, balance int64) *Account {
	return &Account{id: id, balance: balance}
}

func (a *Account) ID() ids.PlayerId { return a.id }

func (a *Account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Charge debits amount if the account can afford it, reporting whether
// it did. A negative amount always succeeds and credits the account
// instead, matching Refund's reversal of a Charge of the same
// magnitude.
func (a *Account) Charge(amount int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > a.balance {
		return false
	}
	a.balance -= amount
	return true
}

// Refund credits amount unconditionally.
func (a *Account) Refund(amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance += amount
}

// World implements command.World over a single server's live simulation
// state: its entity store, room registry, tile grid and the set of
// connected players' accounts. Descriptors and script sources are
// supplied up front from the loaded content pack.
type World struct {
	Store       *ecs.Store
	Controllers controller.Components
	Rooms_      *room.Registry
	Grid_       *tile.Grid
	Engine      *script.Engine

	mu          sync.Mutex
	accounts    map[ids.PlayerId]*Account
	descriptors map[ids.ResourceKey]room.Descriptor
	scripts     map[ids.ResourceKey]string
}

// NewWorld builds a World over a freshly created entity store, bound to
// grid (the server's real tile surface) and descriptors (the loaded
// room-kind definitions, keyed by their qualified resource key).
func NewWorld(grid *tile.Grid, descriptors map[ids.ResourceKey]room.Descriptor, engine *script.Engine) *World {
	store := ecs.NewStore()
	return &World{
		Store:       store,
		Controllers: controller.NewComponents(store),
		Rooms_:      room.NewRegistry(),
		Grid_:       grid,
		Engine:      engine,
		accounts:    make(map[ids.PlayerId]*Account),
		descriptors: descriptors,
		scripts:     make(map[ids.ResourceKey]string),
	}
}

// AddAccount registers acct under its own id, replacing any account
// previously registered for that player (e.g. a reconnect).
func (w *World) AddAccount(acct *Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts[acct.ID()] = acct
}

// RemoveAccount drops the account for id, e.g. when a player disconnects
// and should no longer be addressable by new commands.
func (w *World) RemoveAccount(id ids.PlayerId) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.accounts, id)
}

// AddPlayer mints a fresh account for id seeded with startingBalance and
// registers it, satisfying univercity.AccountManager so a Server can be
// handed a World without importing this package's *Account type
// directly.
func (w *World) AddPlayer(id ids.PlayerId, startingBalance int64) {
	w.AddAccount(NewAccount(id, startingBalance))
}

// RegisterScript associates a room/idle controller's resource key with
// its compiled source, so RunRoomEntry/RunIdleEntry can find it later.
// Content-pack loading itself (reading these off disk) lives outside
// this package.
func (w *World) RegisterScript(key ids.ResourceKey, source string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scripts[key] = source
}

func (w *World) Player(id ids.PlayerId) (command.Principal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.accounts[id]
	if !ok {
		return nil, false
	}
	return a, true
}

func (w *World) Rooms() *room.Registry { return w.Rooms_ }

func (w *World) Grid() *tile.Grid { return w.Grid_ }

func (w *World) Descriptor(key ids.ResourceKey) (room.Descriptor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.descriptors[key]
	return d, ok
}

// SpawnRoomController creates the entity a newly-Done room's
// RoomControllerState lives on (spec §4.3's controller entity, created
// once per room at commit time).
func (w *World) SpawnRoomController(id ids.RoomId) ids.EntityId {
	e := w.Store.Create()
	w.Controllers.RoomControllers.Set(e, ecs.RoomControllerState{})
	w.Controllers.Controlled.Set(e, ecs.Controlled{By: ecs.RoomController(id)})
	return e
}

// DestroyEntity removes e from the store outright, used to reverse
// SpawnRoomController on a FinalizeRoomPlacement undo.
func (w *World) DestroyEntity(e ids.EntityId) {
	w.Store.Destroy(e)
}

// RunRoomEntry invokes room's controller script's OnRequest hook (the
// one hook Hooks exposes with a result, matching spec §4.6 point 5's
// script-submitted commands). entry.Key names the script source
// registered via RegisterScript; entry.Method is carried for addressing
// parity with the wire format but OnRequest is presently the only
// command-reachable hook a compiled script exposes.
func (w *World) RunRoomEntry(roomID ids.RoomId, entry ids.EntryPoint) error {
	p, err := w.Rooms_.Get(roomID)
	if err != nil {
		return err
	}
	desc, ok := w.Descriptor(p.Key)
	if !ok || desc.Controller.IsZero() {
		return fmt.Errorf("game: room %v has no controller script", roomID)
	}
	return w.runRequest(desc.Controller, entry, script.Context{Room: script.NewScriptRoom(w.Store, roomID)})
}

// RunIdleEntry invokes entity's idle-choice script's OnRequest hook.
// entry.Key names the idle choice's script source (controller.Choice's
// Script field).
func (w *World) RunIdleEntry(e ids.EntityId, entry ids.EntryPoint) error {
	return w.runRequest(entry.Key, entry, script.Context{
		Entity: script.NewScriptEntity(w.Store, e, w.Controllers.Controlled),
	})
}

func (w *World) runRequest(scriptKey ids.ResourceKey, entry ids.EntryPoint, ctx script.Context) error {
	w.mu.Lock()
	source, ok := w.scripts[scriptKey]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("game: no script registered for %v", scriptKey)
	}
	hooks, err := w.Engine.Load(scriptKey.String(), source)
	if err != nil {
		return fmt.Errorf("game: compile %v: %w", scriptKey, err)
	}
	if hooks.OnRequest == nil {
		return fmt.Errorf("game: %v has no OnRequest hook", entry)
	}
	var accepted bool
	w.Engine.Invoke(scriptKey.String(), "OnRequest", func() {
		accepted = hooks.OnRequest(ctx)
	})
	if !accepted {
		return fmt.Errorf("game: %v refused by its OnRequest hook", entry)
	}
	return nil
}
