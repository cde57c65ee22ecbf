package room

import (
	"fmt"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
	"github.com/thinkofname/univercity-core/placement"
	"github.com/thinkofname/univercity-core/tile"
)

// ErrObjectNotFound is returned by RemoveObject for a slot id that was
// never placed, or has already been removed.
var ErrObjectNotFound = fmt.Errorf("room: object not found")

// ErrPlacementBlocked is returned by PlaceObject when any of the
// action log's PlacementBound cells overlap the level's existing
// placement or collision claims.
var ErrPlacementBlocked = fmt.Errorf("room: placement blocked")

// VirtualLevel is the scratch surface a room under construction is built
// against: a tile.Grid covering exactly the room's area (same origin and
// size, no border), and an object-placement log the room's objects are appended to and undone
// from as the player edits the plan. Nothing here is visible to any
// other room or to the real grid until Registry.Commit copies it over.
type VirtualLevel struct {
	Room ids.RoomId
	Area Bounds

	Grid *tile.Grid
	Log  *placement.Log

	// Placement, Collision and Blocked are rebuilt from Log after every
	// mutation; see Rebuild. They are never mutated directly.
	Placement *bitset.Set
	Collision *bitset.Set
	Blocked   *bitset.Set

	// Objects is the level's live object list, indexed by object slot
	// id; a nil entry is a freed slot PlaceObject may reuse.
	Objects []*ObjectState

	Dirty bool
}

// NewVirtualLevel allocates a scratchpad for the given area, seeding its
// tile grid with the descriptor's room/border tile and flagging every
// tile as owned by room.
func NewVirtualLevel(roomID ids.RoomId, area Bounds, desc Descriptor) *VirtualLevel {
	grid := tile.NewGrid(area.MinX, area.MinY, area.Width(), area.Height())
	for y := area.MinY; y <= area.MaxY; y++ {
		for x := area.MinX; x <= area.MaxX; x++ {
			t := desc.Tile
			if desc.HasBorder && onBorder(area, x, y) {
				t = desc.BorderTile
			}
			grid.SetTile(x, y, t)
			grid.SetRoomOwner(x, y, roomID)
		}
	}

	bits := int(area.Width()) * int(area.Height()) * placement.SubTilesPerTile
	vl := &VirtualLevel{
		Room:      roomID,
		Area:      area,
		Grid:      grid,
		Log:       placement.NewLog(),
		Placement: bitset.New(bits),
		Collision: bitset.New(bits),
		Blocked:   bitset.New(bits),
		Dirty:     true,
	}
	return vl
}

func onBorder(area Bounds, x, y int32) bool {
	return x == area.MinX || x == area.MaxX || y == area.MinY || y == area.MaxY
}

// Rebuild recomputes Placement, Collision and Blocked from the current
// contents of Log. Called after every Apply/Reverse so the three bitsets
// never drift from the append-only action log that is their source of
// truth.
func (v *VirtualLevel) Rebuild() {
	placement.RebuildBitsets(v.Log, v.Area.MinX, v.Area.MinY, v.Area.Width(), v.Area.Height(), v.Placement, v.Collision, v.Blocked)
	v.Dirty = true
}

// CanPlace reports whether an object occupying the given placement
// bound (in quarter-tile subtile units local to the level) is free of
// both existing placement claims and the level's own collision map.
func (v *VirtualLevel) CanPlace(subX, subY, subW, subH int) bool {
	width := int(v.Area.Width()) * placement.SubTilesPerAxis
	for y := subY; y < subY+subH; y++ {
		for x := subX; x < subX+subW; x++ {
			if x < 0 || y < 0 || x >= width {
				return false
			}
			idx := x + y*width
			if v.Placement.Get(idx) || v.Collision.Get(idx) {
				return false
			}
		}
	}
	return true
}

// objectSlot grows v.Objects as needed and returns a pointer to slot id.
func (v *VirtualLevel) objectSlot(id int) **ObjectState {
	if id >= len(v.Objects) {
		grown := make([]*ObjectState, id+1)
		copy(grown, v.Objects)
		v.Objects = grown
	}
	return &v.Objects[id]
}

// PlaceObject validates every PlacementBound action in actions against
// the level's existing claims, then applies the log against the
// level's grid (painting tiles, cutting wall flags, marking blocked
// cells) and records the result under id, replacing whatever was
// previously placed at that slot (a versioned "replace in place", per
// §4.4). Rebuild runs before returning so Placement/Collision/Blocked
// reflect the change immediately.
func (v *VirtualLevel) PlaceObject(id int, key ids.ResourceKey, version uint32, actions []placement.Action) (placement.ObjectPlacement, error) {
	for _, a := range actions {
		if a.Kind != placement.PlacementBound {
			continue
		}
		if !v.CanPlace(a.SubX, a.SubY, a.SubW, a.SubH) {
			return placement.ObjectPlacement{}, ErrPlacementBlocked
		}
	}

	applied := placement.Apply(v.Grid, v.Log, id, actions)
	*v.objectSlot(id) = &ObjectState{Key: key, Version: version, Actions: actions, Placed: applied}
	v.Rebuild()
	return applied, nil
}

// RemoveObject reverses a previously placed object, restoring the
// tiles/walls its reverse log recorded and freeing its slot for reuse.
func (v *VirtualLevel) RemoveObject(id int) error {
	slot := v.objectSlot(id)
	if *slot == nil {
		return ErrObjectNotFound
	}
	placement.Reverse(v.Grid, v.Log, (*slot).Placed)
	*slot = nil
	v.Rebuild()
	return nil
}
