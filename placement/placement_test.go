package placement

import (
	"testing"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/internal/bitset"
	"github.com/thinkofname/univercity-core/tile"
)

func TestRebuildBitsetsReflectsLogContents(t *testing.T) {
	log := NewLog()
	log.Place(1, []Action{RoomBound(0, 0, 1, 1)})

	place := bitset.New(0)
	collide := bitset.New(0)
	blocked := bitset.New(0)
	RebuildBitsets(log, 0, 0, 2, 2, place, collide, blocked)

	if !place.Get(0) {
		t.Fatalf("subtile (0,0) should be claimed by the placed object")
	}
	if place.Get(SubTilesPerAxis * SubTilesPerAxis * 2) {
		t.Fatalf("unrelated tile's subtiles should remain clear")
	}
}

func TestRemoveObjectClearsItsClaimOnRebuild(t *testing.T) {
	log := NewLog()
	log.Place(1, []Action{RoomBound(0, 0, 1, 1)})
	log.Remove(1)

	place := bitset.New(0)
	collide := bitset.New(0)
	blocked := bitset.New(0)
	RebuildBitsets(log, 0, 0, 2, 2, place, collide, blocked)

	if place.Any() {
		t.Fatalf("removed object must leave no trace in the rebuilt bitset")
	}
}

func TestReplaceObjectSupersedesPriorVersion(t *testing.T) {
	log := NewLog()
	log.Place(1, []Action{RoomBound(0, 0, 1, 1)})
	v1 := log.Version(1)

	log.ReplaceObject(1, []Action{RoomBound(1, 1, 1, 1)})
	v2 := log.Version(1)
	if v2 <= v1 {
		t.Fatalf("replace must bump the version, got v1=%d v2=%d", v1, v2)
	}

	place := bitset.New(0)
	collide := bitset.New(0)
	blocked := bitset.New(0)
	RebuildBitsets(log, 0, 0, 2, 2, place, collide, blocked)

	if place.Get(0) {
		t.Fatalf("old bound should no longer be claimed after replace")
	}
	newIdx := SubTilesPerAxis + SubTilesPerAxis*(int(2)*SubTilesPerAxis)
	if !place.Get(newIdx) {
		t.Fatalf("new bound should be claimed after replace")
	}
}

func TestApplyReverseRoundTrip(t *testing.T) {
	log := NewLog()
	p := Apply(nil, log, 5, []Action{RoomBound(0, 0, 1, 1)})
	if log.Version(5) != 1 {
		t.Fatalf("expected version 1 after first apply")
	}
	Reverse(nil, log, p)
	if log.Version(5) != 0 {
		t.Fatalf("expected version 0 (absent) after reverse, got %d", log.Version(5))
	}
}

func TestApplyPaintsTileAndReverseRestoresIt(t *testing.T) {
	grid := tile.NewGrid(0, 0, 4, 4)
	grid.SetTile(1, 1, ids.New("base", "floor/wood"))
	log := NewLog()

	door := ids.New("base", "floor/tile")
	p := Apply(grid, log, 1, []Action{{Kind: TileAction, TileX: 1, TileY: 1, TileKind: door}})
	if got := grid.GetTile(1, 1).Type; got != door {
		t.Fatalf("expected tile repainted to %v, got %v", door, got)
	}

	Reverse(grid, log, p)
	if got := grid.GetTile(1, 1).Type; got != ids.New("base", "floor/wood") {
		t.Fatalf("expected tile restored after reverse, got %v", got)
	}
}

func TestApplyCutsDoorFlagAndReverseRestoresIt(t *testing.T) {
	grid := tile.NewGrid(0, 0, 4, 4)
	grid.SetWall(1, 1, tile.South, &tile.WallInfo{Type: ids.New("base", "wall/brick")})
	log := NewLog()

	p := Apply(grid, log, 1, []Action{{Kind: WallFlagAction, TileX: 1, TileY: 1, Dir: tile.South, Flag: tile.WallFlagDoor}})
	wall, ok := grid.GetWall(1, 1, tile.South)
	if !ok || wall.Flag != tile.WallFlagDoor {
		t.Fatalf("expected south wall to carry a door flag, got %+v ok=%v", wall, ok)
	}

	Reverse(grid, log, p)
	wall, ok = grid.GetWall(1, 1, tile.South)
	if !ok || wall.Flag != tile.WallFlagNone {
		t.Fatalf("expected door flag cleared after reverse, got %+v ok=%v", wall, ok)
	}
}

func TestCollisionAndBlockedAreIndependentOfPlacement(t *testing.T) {
	log := NewLog()
	log.Place(1, []Action{
		{Kind: PlacementBound, SubX: 0, SubY: 0, SubW: 1, SubH: 1},
		{Kind: CollisionBound, SubX: 2, SubY: 0, SubW: 1, SubH: 1},
		{Kind: Blocked, SubX: 3, SubY: 0, SubW: 1, SubH: 1},
	})

	place := bitset.New(0)
	collide := bitset.New(0)
	blocked := bitset.New(0)
	RebuildBitsets(log, 0, 0, 2, 2, place, collide, blocked)

	if !place.Get(0) || collide.Get(0) || blocked.Get(0) {
		t.Fatalf("subtile 0 should only be in placement")
	}
	if place.Get(2) || !collide.Get(2) {
		t.Fatalf("subtile 2 should only be in collision")
	}
	if place.Get(3) || !blocked.Get(3) {
		t.Fatalf("subtile 3 should only be in blocked")
	}
}
