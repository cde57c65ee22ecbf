// Package tile implements the building's tile grid: per-tile type and
// flags, and the wall grid that sits on tile edges. Only the south and
// west wall of each tile is stored; the north and east walls of a tile
// are always the south/west wall of the neighbouring tile, looked up and
// reported with their facing flipped.
package tile

import (
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
)

// Direction is a cardinal facing used to address a tile's walls.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West
)

// Reverse returns the opposite facing.
func (d Direction) Reverse() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// Shift returns the neighbouring location one tile in the given direction.
func (d Direction) Shift(x, y int32) (int32, int32) {
	switch d {
	case North:
		return x, y - 1
	case South:
		return x, y + 1
	case East:
		return x + 1, y
	default:
		return x - 1, y
	}
}

// canonical reports whether d is one of the two directions whose walls
// are stored directly on a tile (South, West), and if not, the location
// and direction to canonicalise to.
func canonical(x, y int32, d Direction) (int32, int32, Direction) {
	switch d {
	case North, East:
		nx, ny := d.Shift(x, y)
		return nx, ny, d.Reverse()
	default:
		return x, y, d
	}
}

// Flags records boolean per-tile state (currently just whether the tile
// has been claimed by a room).
type Flags uint32

const (
	FlagNone  Flags = 0
	FlagOwned Flags = 1 << iota
)

// Info is a tile's type and flags.
type Info struct {
	Type  ids.ResourceKey
	Flags Flags
}

// WallFlag is what, if anything, an object placement has cut into a
// wall. Tile changes never set or clear a flag themselves (§4.1): only
// object placement actions do, and a recomputed wall preserves whatever
// flag it already carried.
type WallFlag uint8

const (
	WallFlagNone WallFlag = iota
	WallFlagWindow
	WallFlagDoor
)

// WallInfo describes a single stored wall: its kind and which room placed
// it, used by the cost/requirement checks in package room, plus any
// door/window cut an object placement has made into it. WindowKind is
// only meaningful when Flag == WallFlagWindow, naming the window variant
// (frosted, bay, ...) the placing object specified.
type WallInfo struct {
	Type       ids.ResourceKey
	Owner      ids.RoomId
	Flag       WallFlag
	WindowKind ids.ResourceKey
}

type wallSlot struct {
	south *WallInfo
	west  *WallInfo
}

// Grid is a rectangular tile surface: every [MODULE] that needs a tile
// surface (the real building and each room's VirtualLevel) embeds or
// implements the same access pattern via Accessor.
type Grid struct {
	originX, originY int32
	width, height    int32

	tiles []Info
	owner []ids.RoomId
	walls []wallSlot

	dirty bitset.Set
}

// NewGrid allocates a grid covering [originX, originX+width) x
// [originY, originY+height), with every tile starting untyped and
// unowned.
func NewGrid(originX, originY, width, height int32) *Grid {
	g := &Grid{
		originX: originX,
		originY: originY,
		width:   width,
		height:  height,
		tiles:   make([]Info, width*height),
		owner:   make([]ids.RoomId, width*height),
	}
	for i := range g.owner {
		g.owner[i] = ids.NoRoom
	}
	// Wall storage needs one extra row/column: tile (x,y)'s south wall
	// sits at the same index as tile (x,y+1)'s north edge, and the grid's
	// north and east border edges still need slots of their own.
	g.walls = make([]wallSlot, (width+1)*(height+1))
	g.dirty.Resize(int(width * height))
	return g
}

// InBounds reports whether (x, y) addresses a tile of this grid.
func (g *Grid) InBounds(x, y int32) bool {
	lx, ly := x-g.originX, y-g.originY
	return lx >= 0 && lx < g.width && ly >= 0 && ly < g.height
}

func (g *Grid) index(x, y int32) int {
	lx, ly := x-g.originX, y-g.originY
	return int(lx + ly*g.width)
}

// GetTile returns the tile info at (x, y), or the zero Info if out of
// bounds.
func (g *Grid) GetTile(x, y int32) Info {
	if !g.InBounds(x, y) {
		return Info{}
	}
	return g.tiles[g.index(x, y)]
}

// SetTile assigns the tile type at (x, y). A no-op if out of bounds.
func (g *Grid) SetTile(x, y int32, kind ids.ResourceKey) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	g.tiles[idx].Type = kind
	g.tiles[idx].Flags = FlagNone
	g.dirty.Set(idx, true)
}

// SetFlags assigns the flags on the tile at (x, y). A no-op if out of
// bounds.
func (g *Grid) SetFlags(x, y int32, flags Flags) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	g.tiles[idx].Flags = flags
	g.dirty.Set(idx, true)
}

// SetTileRaw replaces the full Info at (x, y) - type and flags together -
// and recomputes the walls on all four of its edges: for each direction,
// the tile and its neighbour are each asked whether a wall should exist
// between them (shouldHaveWall), and the canonical edge gains a bare
// WallInfo{Flag: WallFlagNone} if neither already has one and the answer
// is yes, or loses its wall if the answer is no. An edge that already
// carries a wall keeps its Type/Owner/Flag untouched; only existence
// changes. A no-op if out of bounds.
func (g *Grid) SetTileRaw(x, y int32, info Info) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	g.tiles[idx] = info
	g.dirty.Set(idx, true)

	for _, dir := range [...]Direction{North, South, East, West} {
		g.recomputeWall(x, y, dir)
	}
}

// shouldHaveWall reports whether a wall belongs between (x, y) and its
// neighbour in direction dir: the two sides disagree about which room
// (if any) owns them. An out-of-bounds neighbour (the building's outer
// edge) always wants a wall on an owned tile.
func (g *Grid) shouldHaveWall(x, y int32, dir Direction) bool {
	nx, ny := dir.Shift(x, y)
	if !g.InBounds(x, y) {
		return false
	}
	owner := g.RoomOwner(x, y)
	if owner == ids.NoRoom {
		return false
	}
	if !g.InBounds(nx, ny) {
		return true
	}
	return g.RoomOwner(nx, ny) != owner
}

func (g *Grid) recomputeWall(x, y int32, dir Direction) {
	nx, ny := dir.Shift(x, y)
	want := g.shouldHaveWall(x, y, dir) || g.shouldHaveWall(nx, ny, dir.Reverse())

	existing, had := g.GetWall(x, y, dir)
	switch {
	case want && !had:
		g.SetWall(x, y, dir, &WallInfo{Flag: WallFlagNone})
	case !want && had:
		g.SetWall(x, y, dir, nil)
	case want && had:
		// Wall already present with whatever door/window flag an
		// object placement gave it; leave it untouched.
		_ = existing
	}
}

// RoomOwner returns the room that owns the tile at (x, y), or ids.NoRoom
// if unowned or out of bounds.
func (g *Grid) RoomOwner(x, y int32) ids.RoomId {
	if !g.InBounds(x, y) {
		return ids.NoRoom
	}
	return g.owner[g.index(x, y)]
}

// SetRoomOwner assigns the owning room of the tile at (x, y). A no-op if
// out of bounds.
func (g *Grid) SetRoomOwner(x, y int32, room ids.RoomId) {
	if !g.InBounds(x, y) {
		return
	}
	g.owner[g.index(x, y)] = room
}

// wallBounds mirrors InBounds but over the (width+1)x(height+1) wall
// grid: one extra row to the north (row -1) and one extra column to the
// east (column width) hold the storage slots for the grid's own north
// and east border walls.
func (g *Grid) wallBounds(x, y int32) (int, bool) {
	lx, ly := x-g.originX, y-g.originY+1
	if lx < 0 || lx > g.width || ly < 0 || ly > g.height {
		return 0, false
	}
	return int(lx + ly*(g.width+1)), true
}

// GetWall returns the wall stored on the given facing of the tile at
// (x, y). North and East walls are derived by looking up the
// neighbouring tile's South/West wall; there is no independent storage
// for them.
func (g *Grid) GetWall(x, y int32, dir Direction) (WallInfo, bool) {
	cx, cy, cd := canonical(x, y, dir)
	idx, ok := g.wallBounds(cx, cy)
	if !ok {
		return WallInfo{}, false
	}
	slot := &g.walls[idx]
	var info *WallInfo
	if cd == South {
		info = slot.south
	} else {
		info = slot.west
	}
	if info == nil {
		return WallInfo{}, false
	}
	return *info, true
}

// SetWall assigns (or clears, if info is nil) the wall stored on the
// given facing of the tile at (x, y). North/East writes are canonicalised
// onto the neighbour's South/West slot, so setting a tile's North wall is
// indistinguishable from setting its northern neighbour's South wall.
func (g *Grid) SetWall(x, y int32, dir Direction, info *WallInfo) {
	cx, cy, cd := canonical(x, y, dir)
	idx, ok := g.wallBounds(cx, cy)
	if !ok {
		return
	}
	slot := &g.walls[idx]
	if cd == South {
		slot.south = info
	} else {
		slot.west = info
	}
	if i, ok := g.index3(x, y); ok {
		g.dirty.Set(i, true)
	}
}

func (g *Grid) index3(x, y int32) (int, bool) {
	if !g.InBounds(x, y) {
		return 0, false
	}
	return g.index(x, y), true
}

// TakeDirty returns the set of tile indices modified since the last call
// and clears the tracker. Used to limit snapshot work to tiles that
// actually changed.
func (g *Grid) TakeDirty() []int {
	var out []int
	g.dirty.ForEach(func(i int) { out = append(out, i) })
	g.dirty.Clear()
	return out
}

// Width and Height report the grid's extent in tiles.
func (g *Grid) Width() int32  { return g.width }
func (g *Grid) Height() int32 { return g.height }

// Origin reports the grid's lower bound, in world tile coordinates.
func (g *Grid) Origin() (int32, int32) { return g.originX, g.originY }
