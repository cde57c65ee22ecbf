package room

import (
	"fmt"
	"sync"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
	"github.com/thinkofname/univercity-core/placement"
	"github.com/thinkofname/univercity-core/tile"
)

// State is a placed room's position in its lifecycle. Rooms move forward
// through Planning -> Building -> Done, and move back one step when
// Reopen takes a Done room back to Building or when undoing the
// FinalizeRoomPlacement that started building returns a Building room to
// Planning. Remove can happen
// from Planning or Building (an in-progress room can still be scrapped
// for a full refund) but never from Done (a finished room must be
// explicitly demolished through a higher-level operation, not Remove).
type State uint8

const (
	Planning State = iota
	Building
	Done
)

func (s State) String() string {
	switch s {
	case Planning:
		return "planning"
	case Building:
		return "building"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// IsDone reports whether the room has finished construction.
func (s State) IsDone() bool { return s == Done }

// Bounds is an inclusive axis-aligned tile rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY int32
}

// Width and Height report the rectangle's tile extent.
func (b Bounds) Width() int32  { return b.MaxX - b.MinX + 1 }
func (b Bounds) Height() int32 { return b.MaxY - b.MinY + 1 }

// Contains reports whether (x, y) lies within the rectangle.
func (b Bounds) Contains(x, y int32) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// TileSnapshot records one tile's complete prior state - its Info plus
// its south and west walls - so an area the room is about to overwrite
// can be restored later. A nil Wall pointer means that edge carried no
// wall at all.
type TileSnapshot struct {
	X, Y        int32
	Tile        tile.Info
	South, West *tile.WallInfo
}

// ObjectState is one placed object's surviving record on a Done room:
// enough to reconstruct RemoveObject's reverse without keeping the
// VirtualLevel around, and to re-apply it on load (§4.9). A nil entry in
// Placement.Objects marks a freed slot that PlaceObject may reuse.
type ObjectState struct {
	Key     ids.ResourceKey
	Version uint32
	// Actions is the forward action log PlaceObject applied to produce
	// Placed, kept so a later command can redo the same placement (e.g.
	// undoing a RemoveObject) without the caller having to resupply it.
	Actions []placement.Action
	Placed  placement.ObjectPlacement
}

// Placement is a placed room's mutable runtime state: which descriptor
// it was loaded from, who owns it, where it sits, and which state of its
// lifecycle it is in.
type Placement struct {
	ID      ids.RoomId
	Owner   ids.PlayerId
	Area    Bounds
	Key     ids.ResourceKey
	State   State
	Removed bool

	// Building is non-nil exactly while State == Building: the scratch
	// construction surface the placement's objects are being built
	// against before the area is committed to the real grid.
	Building *VirtualLevel

	// ControllerEntity is the ECS entity FinalizeRoom spawns to run this
	// room's per-tick script; ids.InvalidEntity before the room reaches
	// Done.
	ControllerEntity ids.EntityId

	// OriginalTiles snapshots every tile this room's area is about to
	// overwrite, captured at BeginPlanning before anything is painted,
	// so CancelRoomPlacement/a later demolish can restore the main grid
	// exactly as it was.
	OriginalTiles []TileSnapshot

	// PlacementCost is the money already charged against this room:
	// FinalizeRoomPlacement's base cost only. Placing an object charges
	// nothing and adds nothing here. It is subtracted from
	// Descriptor.CostForArea when FinalizeRoomPlacement's commit step
	// bills the remainder.
	PlacementCost int64

	// Objects, Placement, Collision, Blocked and Log are the committed
	// virtual level's surviving state once the room reaches Done, kept so
	// a later demolish has something to read back from. The PlaceObject
	// and RemoveObject commands do not use them; both require a Building
	// room. Nil while the room is still Planning.
	Objects   []*ObjectState
	Placement *bitset.Set
	Collision *bitset.Set
	Blocked   *bitset.Set
	Log       *placement.Log

	// TileUpdateState is the opaque byte state round-tripped between a
	// descriptor's tile_updater update()/apply() passes.
	TileUpdateState []byte
}

// ErrRoomNotFound is returned by registry lookups for an id that has
// never been allocated or has since been removed.
var ErrRoomNotFound = fmt.Errorf("room: not found")

// ErrInvalidTransition is returned when a state change does not follow
// Planning -> Building -> Done.
var ErrInvalidTransition = fmt.Errorf("room: invalid state transition")

// Registry owns every currently-placed room and the next Planning id to
// hand out. Transient (planning-only) ids are negative and count down
// from -1; committed ids are non-negative and count up from 0, matching
// the split kept by the save format so a reload never collides transient
// scratch state with persisted rooms.
type Registry struct {
	mu         sync.Mutex
	rooms      map[ids.RoomId]*Placement
	nextID     int16
	nextPlanID int16
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[ids.RoomId]*Placement), nextPlanID: -1}
}

// BeginPlanning allocates a new Planning-state room over area, owned by
// player, for the room kind identified by key. grid is the real tile
// grid the room will eventually be committed onto; its current contents
// over area are snapshotted into OriginalTiles before anything is
// painted, so CancelRoomPlacement has something to restore. grid may be
// nil (no snapshot taken) when there is no real grid yet to read from.
func (r *Registry) BeginPlanning(player ids.PlayerId, key ids.ResourceKey, area Bounds, grid *tile.Grid) ids.RoomId {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ids.RoomId(r.nextPlanID)
	r.nextPlanID--
	var snapshot []TileSnapshot
	if grid != nil {
		snapshot = snapshotArea(grid, area)
	}
	r.rooms[id] = &Placement{
		ID: id, Owner: player, Area: area, Key: key, State: Planning,
		ControllerEntity: ids.InvalidEntity,
		OriginalTiles:    snapshot,
	}
	return id
}

// SnapshotArea records grid's current Info and south/west walls over
// every tile in area. Exported so a caller that needs to reverse a later
// mutation of its own (FinalizeRoomPlacement's Building -> Done commit,
// reversed by Reopen) can capture a snapshot the same way BeginPlanning
// does.
func SnapshotArea(grid *tile.Grid, area Bounds) []TileSnapshot {
	return snapshotArea(grid, area)
}

// snapshotArea records grid's current Info and south/west walls over
// every tile in area.
func snapshotArea(grid *tile.Grid, area Bounds) []TileSnapshot {
	out := make([]TileSnapshot, 0, int(area.Width())*int(area.Height()))
	for y := area.MinY; y <= area.MaxY; y++ {
		for x := area.MinX; x <= area.MaxX; x++ {
			snap := TileSnapshot{X: x, Y: y, Tile: grid.GetTile(x, y)}
			if w, ok := grid.GetWall(x, y, tile.South); ok {
				snap.South = &w
			}
			if w, ok := grid.GetWall(x, y, tile.West); ok {
				snap.West = &w
			}
			out = append(out, snap)
		}
	}
	return out
}

// RestoreArea repaints grid's tiles and south/west walls from snapshot,
// undoing whatever a room committed over that area.
func RestoreArea(grid *tile.Grid, snapshot []TileSnapshot) {
	for _, s := range snapshot {
		grid.SetTileRaw(s.X, s.Y, s.Tile)
		grid.SetWall(s.X, s.Y, tile.South, s.South)
		grid.SetWall(s.X, s.Y, tile.West, s.West)
	}
}

// Resize changes a Planning room's area, re-snapshotting OriginalTiles
// over the new bounds so CancelRoomPlacement still has the right area to
// restore. Only legal while the room is Planning, since a Building room
// already has a VirtualLevel (and possibly placed objects) sized to its
// old area that this does not attempt to migrate.
func (r *Registry) Resize(id ids.RoomId, newArea Bounds, grid *tile.Grid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return ErrRoomNotFound
	}
	if p.State != Planning {
		return ErrInvalidTransition
	}
	p.Area = newArea
	if grid != nil {
		p.OriginalTiles = snapshotArea(grid, newArea)
	}
	return nil
}

// Get returns the placement for id.
func (r *Registry) Get(id ids.RoomId) (*Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return nil, ErrRoomNotFound
	}
	return p, nil
}

// StartBuilding transitions id from Planning to Building, attaching a
// fresh VirtualLevel scratchpad sized to its area. Descriptor provides
// the tile/border-tile used to seed the scratchpad.
func (r *Registry) StartBuilding(id ids.RoomId, desc Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return ErrRoomNotFound
	}
	if p.State != Planning {
		return ErrInvalidTransition
	}
	p.Building = NewVirtualLevel(id, p.Area, desc)
	p.State = Building
	return nil
}

// Commit transitions id from Building to Done: copies the virtual
// level's tiles and walls onto grid (grid may be nil in tests that don't
// care about the real surface), persists the virtual level's object
// list and placement/collision/blocked bitsets onto the placement
// itself so they survive the VirtualLevel being dropped, records
// controller as the room's spawned controller entity, replaces the
// placement's final id with a committed (non-negative) one allocated
// from the registry's up-counting sequence, and returns that new id.
func (r *Registry) Commit(id ids.RoomId, grid *tile.Grid, controller ids.EntityId) (ids.RoomId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return ids.NoRoom, ErrRoomNotFound
	}
	if p.State != Building {
		return ids.NoRoom, ErrInvalidTransition
	}

	building := p.Building
	if grid != nil {
		copyVirtualLevel(building, grid)
	}

	p.Objects = building.Objects
	p.Placement = building.Placement
	p.Collision = building.Collision
	p.Blocked = building.Blocked
	p.Log = building.Log
	p.ControllerEntity = controller

	newID := ids.RoomId(r.nextID)
	r.nextID++
	delete(r.rooms, id)
	p.ID = newID
	p.State = Done
	p.Building = nil
	r.rooms[newID] = p
	return newID, nil
}

// copyVirtualLevel paints v's tiles and south/west walls onto grid, one
// tile at a time via SetTileRaw so the destination's wall recomputation
// runs exactly as it would for any other tile change.
func copyVirtualLevel(v *VirtualLevel, grid *tile.Grid) {
	for y := v.Area.MinY; y <= v.Area.MaxY; y++ {
		for x := v.Area.MinX; x <= v.Area.MaxX; x++ {
			grid.SetTileRaw(x, y, v.Grid.GetTile(x, y))
			grid.SetRoomOwner(x, y, v.Grid.RoomOwner(x, y))
			if w, ok := v.Grid.GetWall(x, y, tile.South); ok {
				grid.SetWall(x, y, tile.South, &w)
			}
			if w, ok := v.Grid.GetWall(x, y, tile.West); ok {
				grid.SetWall(x, y, tile.West, &w)
			}
		}
	}
}

// Reopen reverses a just-applied Commit: discards the committed room at
// committedID, reinstates it as a Building room under reopenID with vl
// restored as its construction scratchpad, and repaints grid from
// preCommit (the area's tile/wall snapshot taken immediately before the
// commit that is being undone). Used by FinalizeRoomPlacement's Undo for
// the Building -> Done direction; fails with ErrInvalidTransition if the
// room is no longer in the state Commit left it in.
func (r *Registry) Reopen(committedID, reopenID ids.RoomId, vl *VirtualLevel, grid *tile.Grid, preCommit []TileSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[committedID]
	if !ok || p.Removed || p.State != Done {
		return ErrInvalidTransition
	}
	if grid != nil {
		RestoreArea(grid, preCommit)
	}
	delete(r.rooms, committedID)
	p.ID = reopenID
	p.State = Building
	p.Building = vl
	p.Objects, p.Placement, p.Collision, p.Blocked, p.Log = nil, nil, nil, nil, nil
	p.ControllerEntity = ids.InvalidEntity
	r.rooms[reopenID] = p
	return nil
}

// Remove discards a room that has not yet reached Done. Returns
// ErrInvalidTransition for a Done room; those must go through a
// dedicated demolish operation instead, since removing them silently
// would lose the refund/undo bookkeeping a finished room requires.
func (r *Registry) Remove(id ids.RoomId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return ErrRoomNotFound
	}
	if p.State == Done {
		return ErrInvalidTransition
	}
	p.Removed = true
	delete(r.rooms, id)
	return nil
}

// RoomsOwnedBy returns every live (non-removed) room id owned by player.
func (r *Registry) RoomsOwnedBy(player ids.PlayerId) []ids.RoomId {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ids.RoomId
	for id, p := range r.rooms {
		if !p.Removed && p.Owner == player {
			out = append(out, id)
		}
	}
	return out
}

// CountOwnedByKind returns how many live rooms of each kind player owns,
// for feeding Descriptor.CheckRequirements.
func (r *Registry) CountOwnedByKind(player ids.PlayerId) map[ids.ResourceKey]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[ids.ResourceKey]int)
	for _, p := range r.rooms {
		if !p.Removed && p.Owner == player {
			counts[p.Key]++
		}
	}
	return counts
}

// CostForRoom returns the amount still owed to finish a Building room:
// desc's area-scaled cost minus the PlacementCost FinalizeRoomPlacement
// has already charged against it, floored at zero. Placed objects add
// nothing to the amount.
func (r *Registry) CostForRoom(desc Descriptor, id ids.RoomId) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rooms[id]
	if !ok || p.Removed {
		return 0, ErrRoomNotFound
	}
	remaining := desc.CostForArea(p.Area.Width(), p.Area.Height()) - p.PlacementCost
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RoomAt returns the id of the live room whose area contains (x, y), or
// ids.NoRoom if no room covers that tile.
func (r *Registry) RoomAt(x, y int32) ids.RoomId {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.rooms {
		if !p.Removed && p.Area.Contains(x, y) {
			return id
		}
	}
	return ids.NoRoom
}
