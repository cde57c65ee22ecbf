package script

import (
	"errors"

	"github.com/thinkofname/univercity-core/ecs"
	"github.com/thinkofname/univercity-core/ids"
)

// ErrStaleScriptReference is returned by a handle method once the
// handle's baked-in controller stamp no longer matches the current
// controller of the thing it addresses: the script held onto a
// reference past the tick (or the hand-off) that invalidated it.
var ErrStaleScriptReference = errors.New("script: stale reference")

// stamp identifies the authority a handle was minted under. A handle is
// valid only as long as its target's current Controller still equals
// the stamp it was minted with; any Request/Release hand-off changes
// the target's controller and so invalidates every outstanding handle
// for it.
type stamp struct {
	controller ecs.Controller
}

func (s stamp) valid(current ecs.Controller) bool { return s.controller.Equal(current) }

// ScriptEntity is a typed, stamp-checked handle to a single entity,
// scoped to one hook invocation.
type ScriptEntity struct {
	store   *ecs.Store
	entity  ids.EntityId
	stamp   stamp
	current func() ecs.Controller
}

// NewScriptEntity mints a handle for e, stamped with its controller at
// mint time.
func NewScriptEntity(store *ecs.Store, e ids.EntityId, controlled ecs.DenseComponent[ecs.Controlled]) *ScriptEntity {
	cur := currentController(controlled, e)
	return &ScriptEntity{
		store:  store,
		entity: e,
		stamp:  stamp{controller: cur},
		current: func() ecs.Controller {
			return currentController(controlled, e)
		},
	}
}

func currentController(controlled ecs.DenseComponent[ecs.Controlled], e ids.EntityId) ecs.Controller {
	if c, ok := controlled.Get(e); ok {
		return c.By
	}
	return ecs.NoneController
}

// checkFresh returns ErrStaleScriptReference if the handle's stamp no
// longer matches the entity's live controller.
func (h *ScriptEntity) checkFresh() error {
	if !h.store.IsAlive(h.entity) {
		return ErrStaleScriptReference
	}
	if !h.stamp.valid(h.current()) {
		return ErrStaleScriptReference
	}
	return nil
}

// ID returns the underlying entity handle, after a freshness check.
func (h *ScriptEntity) ID() (ids.EntityId, error) {
	if err := h.checkFresh(); err != nil {
		return ids.InvalidEntity, err
	}
	return h.entity, nil
}

// ScriptRoom is a typed, stamp-checked handle to a room, scoped to one
// hook invocation (a room controller's own tick, or a single request
// from another entity into the room).
type ScriptRoom struct {
	store *ecs.Store
	room  ids.RoomId
	stamp stamp
}

// NewScriptRoom mints a room handle stamped with the room's own
// controller authority tag (ecs.RoomController(room)), so a handle
// handed out during one room's controller tick is never valid once that
// room stops being the authority it claims (e.g. after demolition).
func NewScriptRoom(store *ecs.Store, room ids.RoomId) *ScriptRoom {
	return &ScriptRoom{store: store, room: room, stamp: stamp{controller: ecs.RoomController(room)}}
}

// Room returns the underlying room id. Room handles are not entity-
// backed, so there is no aliveness check beyond the stamp comparison a
// caller performs by re-minting and comparing, which package room's
// registry is responsible for driving (a demolished room simply stops
// being handed fresh handles).
func (h *ScriptRoom) Room() ids.RoomId { return h.room }

// ScriptObject is a typed, stamp-checked handle to a placed object's
// runtime entity (if it has one), reusing ScriptEntity's freshness
// check.
type ScriptObject struct {
	*ScriptEntity
	ObjectID int
}

// NewScriptObject mints an object handle wrapping the object's runtime
// entity handle.
func NewScriptObject(store *ecs.Store, objectID int, e ids.EntityId, controlled ecs.DenseComponent[ecs.Controlled]) *ScriptObject {
	return &ScriptObject{ScriptEntity: NewScriptEntity(store, e, controlled), ObjectID: objectID}
}
