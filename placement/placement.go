// Package placement implements the object-placement action log shared
// by a room's VirtualLevel and (once committed) the real building: a
// per-object record of every bound an object placement claims, from
// which the placement/collision/blocked bitsets are always rebuilt
// rather than mutated directly, so undo and versioned replace can never
// leave the three maps out of sync with the log that produced them.
package placement

import (
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
	"github.com/thinkofname/univercity-core/tile"
)

// SubTilesPerAxis is how many placement subtiles make up one tile edge.
// Object bounds are specified in these quarter-tile units so that small
// objects (a sign, a light switch) can sit flush against a wall without
// claiming an entire tile.
const SubTilesPerAxis = 4

// SubTilesPerTile is the number of subtile cells in one whole tile.
const SubTilesPerTile = SubTilesPerAxis * SubTilesPerAxis

// ActionKind discriminates the payload of an Action.
type ActionKind uint8

const (
	// PlacementBound claims a rectangular region (in subtile units,
	// level-local) as occupied by the object: nothing else may be
	// placed there while this action is active.
	PlacementBound ActionKind = iota
	// CollisionBound marks a rectangular region as physically blocked
	// (entities may not walk through it), independent of whether
	// anything else could still be placed there.
	CollisionBound
	// Blocked marks a rectangular region as unusable regardless of
	// placement/collision (e.g. a doorway's swing arc).
	Blocked
	// WallFlagAction cuts (or, on reverse, restores) a door/window flag
	// into the wall on TileX/TileY's Dir edge.
	WallFlagAction
	// TileAction repaints the tile at TileX/TileY through
	// tile.Grid.SetTileRaw, so the surrounding walls are recomputed.
	TileAction
	// SelectionBound records the outline an object's placement UI
	// should highlight. It never touches a bitset or the grid; it
	// exists purely so the reverse log can hand the same outline back
	// to a renderer without the core deciding placement from it.
	SelectionBound
)

// Action is one entry of the placement log. SubX/SubY/SubW/
// SubH are in subtile units relative to the level's origin and are only
// meaningful for the bitset-affecting kinds (PlacementBound,
// CollisionBound, Blocked, SelectionBound). TileX/TileY/Dir/TileKind/
// Flag/WindowKind carry the payload for TileAction/WallFlagAction.
type Action struct {
	Kind                   ActionKind
	SubX, SubY, SubW, SubH int

	TileX, TileY int32
	Dir          tile.Direction
	TileKind     ids.ResourceKey
	Flag         tile.WallFlag
	WindowKind   ids.ResourceKey
}

// entry ties an object's full action set to the object slot id it
// belongs to, so ReplaceObject can find and discard a specific object's
// prior actions without touching any other object's.
type entry struct {
	objectID int
	version  uint32
	actions  []Action
}

// Log is the record of every object's placement actions, one versioned
// entry per object. ReplaceObject overwrites an object's entry in place
// and Remove deletes it, so the bitset rebuild never sees two versions
// of one object at once.
type Log struct {
	entries []entry
	byID    map[int]int // objectID -> index into entries
}

// NewLog returns an empty placement log.
func NewLog() *Log {
	return &Log{byID: make(map[int]int)}
}

// Place appends a fresh action set for a newly placed object, replacing
// any it already had (a no-op for brand new object ids).
func (l *Log) Place(objectID int, actions []Action) {
	l.ReplaceObject(objectID, actions)
}

// ReplaceObject discards objectID's previous action set (if any) and
// records actions as its new one, bumping its version. Used both for
// genuine edits (move/rotate) and for the initial placement.
func (l *Log) ReplaceObject(objectID int, actions []Action) {
	if idx, ok := l.byID[objectID]; ok {
		l.entries[idx].version++
		l.entries[idx].actions = actions
		return
	}
	l.byID[objectID] = len(l.entries)
	l.entries = append(l.entries, entry{objectID: objectID, version: 1, actions: actions})
}

// Remove discards objectID's action set entirely (reverses the
// placement).
func (l *Log) Remove(objectID int) {
	idx, ok := l.byID[objectID]
	if !ok {
		return
	}
	last := len(l.entries) - 1
	if idx != last {
		l.entries[idx] = l.entries[last]
		l.byID[l.entries[idx].objectID] = idx
	}
	l.entries = l.entries[:last]
	delete(l.byID, objectID)
}

// Version returns the current edit version of objectID's action set, or
// 0 if it has none.
func (l *Log) Version(objectID int) uint32 {
	if idx, ok := l.byID[objectID]; ok {
		return l.entries[idx].version
	}
	return 0
}

// RebuildBitsets recomputes placement, collision and blocked from
// scratch by replaying every live entry in log. originX/originY/width/
// height describe the level's tile-space bounds; the three bitsets are
// addressed in subtile units over that area and are cleared (and grown
// if necessary) before replay.
func RebuildBitsets(log *Log, originX, originY, width, height int32, place, collide, blocked *bitset.Set) {
	subWidth := int(width) * SubTilesPerAxis
	subHeight := int(height) * SubTilesPerAxis
	total := subWidth * subHeight

	place.Resize(total)
	collide.Resize(total)
	blocked.Resize(total)
	place.Clear()
	collide.Clear()
	blocked.Clear()

	for _, e := range log.entries {
		for _, a := range e.actions {
			var target *bitset.Set
			switch a.Kind {
			case PlacementBound:
				target = place
			case CollisionBound:
				target = collide
			case Blocked:
				target = blocked
			default:
				// WallFlagAction/TileAction/SelectionBound carry no
				// bitset footprint of their own.
				continue
			}
			for y := a.SubY; y < a.SubY+a.SubH; y++ {
				if y < 0 || y >= subHeight {
					continue
				}
				for x := a.SubX; x < a.SubX+a.SubW; x++ {
					if x < 0 || x >= subWidth {
						continue
					}
					target.Set(x+y*subWidth, true)
				}
			}
		}
	}
}

// RoomBound converts a room-relative tile rectangle into the subtile
// PlacementBound action it corresponds to, for callers building an
// Action list from a descriptor's object footprint.
func RoomBound(localTileX, localTileY, tileW, tileH int32) Action {
	return Action{
		Kind: PlacementBound,
		SubX: int(localTileX) * SubTilesPerAxis,
		SubY: int(localTileY) * SubTilesPerAxis,
		SubW: int(tileW) * SubTilesPerAxis,
		SubH: int(tileH) * SubTilesPerAxis,
	}
}
