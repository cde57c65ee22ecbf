package tile

import (
	"testing"

	"github.com/thinkofname/univercity-core/ids"
)

func TestSetSouthWallReadsBackAsNorthOfNeighbour(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	wall := WallInfo{Type: ids.New("core", "wall/brick"), Owner: ids.RoomId(1)}

	g.SetWall(1, 1, South, &wall)

	got, ok := g.GetWall(1, 1, South)
	if !ok || got != wall {
		t.Fatalf("south wall not readable directly: %+v ok=%v", got, ok)
	}

	got, ok = g.GetWall(1, 2, North)
	if !ok || got != wall {
		t.Fatalf("north wall of southern neighbour should alias the same storage: %+v ok=%v", got, ok)
	}
}

func TestSetWestWallReadsBackAsEastOfNeighbour(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	wall := WallInfo{Type: ids.New("core", "wall/glass"), Owner: ids.RoomId(2)}

	g.SetWall(2, 2, West, &wall)

	got, ok := g.GetWall(2, 2, West)
	if !ok || got != wall {
		t.Fatalf("west wall not readable directly: %+v ok=%v", got, ok)
	}

	got, ok = g.GetWall(1, 2, East)
	if !ok || got != wall {
		t.Fatalf("east wall of western neighbour should alias the same storage: %+v ok=%v", got, ok)
	}
}

func TestSetNorthWallCanonicalisesOntoNeighbourSouth(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	wall := WallInfo{Type: ids.New("core", "wall/brick")}

	g.SetWall(1, 1, North, &wall)

	// North of (1,1) is the same edge as South of (1,0).
	got, ok := g.GetWall(1, 0, South)
	if !ok || got != wall {
		t.Fatalf("setting North should canonicalise onto neighbour's South: %+v ok=%v", got, ok)
	}
}

func TestClearWall(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	wall := WallInfo{Type: ids.New("core", "wall/brick")}
	g.SetWall(1, 1, South, &wall)
	g.SetWall(1, 1, South, nil)

	if _, ok := g.GetWall(1, 1, South); ok {
		t.Fatalf("wall should be cleared")
	}
}

func TestGridOutOfBoundsNeverPanics(t *testing.T) {
	g := NewGrid(0, 0, 2, 2)

	if g.InBounds(-1, 0) || g.InBounds(5, 5) {
		t.Fatalf("out of range coordinates must report not in bounds")
	}
	if info := g.GetTile(-1, -1); !info.Type.IsZero() {
		t.Fatalf("out of bounds tile should be the zero Info, got %+v", info)
	}
	if owner := g.RoomOwner(100, 100); owner != ids.NoRoom {
		t.Fatalf("out of bounds owner should be NoRoom, got %v", owner)
	}
	g.SetTile(-5, -5, ids.New("core", "floor"))
	g.SetWall(50, 50, North, &WallInfo{})
	if _, ok := g.GetWall(-1, -1, West); ok {
		t.Fatalf("fully out of wall-bounds lookup should report absent")
	}
}

func TestTileOwnershipRoundTrip(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	if g.RoomOwner(0, 0) != ids.NoRoom {
		t.Fatalf("tiles should start unowned")
	}
	g.SetRoomOwner(0, 0, ids.RoomId(7))
	if g.RoomOwner(0, 0) != ids.RoomId(7) {
		t.Fatalf("owner not persisted")
	}
}

func TestSetTileRawAddsWallOnRoomBoundary(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	g.SetRoomOwner(1, 1, ids.RoomId(1))
	g.SetRoomOwner(2, 1, ids.RoomId(2))

	g.SetTileRaw(1, 1, Info{Type: ids.New("base", "floor")})

	wall, ok := g.GetWall(1, 1, East)
	if !ok {
		t.Fatalf("expected a wall between two differently-owned rooms")
	}
	if wall.Flag != WallFlagNone {
		t.Fatalf("a freshly derived wall should carry no door/window flag, got %v", wall.Flag)
	}
}

func TestSetTileRawRemovesWallWhenOwnershipMatches(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	g.SetRoomOwner(1, 1, ids.RoomId(1))
	g.SetRoomOwner(2, 1, ids.RoomId(1))
	g.SetWall(1, 1, East, &WallInfo{Type: ids.New("base", "wall/brick")})

	g.SetTileRaw(1, 1, Info{Type: ids.New("base", "floor")})

	if _, ok := g.GetWall(1, 1, East); ok {
		t.Fatalf("wall between same-room tiles should be removed")
	}
}

func TestSetTileRawPreservesExistingDoorFlag(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	g.SetRoomOwner(1, 1, ids.RoomId(1))
	g.SetRoomOwner(2, 1, ids.RoomId(2))
	g.SetWall(1, 1, East, &WallInfo{Type: ids.New("base", "wall/brick"), Flag: WallFlagDoor})

	g.SetTileRaw(1, 1, Info{Type: ids.New("base", "floor/tile")})

	wall, ok := g.GetWall(1, 1, East)
	if !ok || wall.Flag != WallFlagDoor {
		t.Fatalf("a tile repaint must not disturb an object-placed door flag, got %+v ok=%v", wall, ok)
	}
}

func TestTakeDirtyDrainsAndClears(t *testing.T) {
	g := NewGrid(0, 0, 4, 4)
	g.SetTile(0, 0, ids.New("core", "floor"))
	g.SetTile(1, 1, ids.New("core", "floor"))

	dirty := g.TakeDirty()
	if len(dirty) != 2 {
		t.Fatalf("expected 2 dirty tiles, got %d", len(dirty))
	}
	if more := g.TakeDirty(); len(more) != 0 {
		t.Fatalf("dirty set should be empty after draining, got %d", len(more))
	}
}
