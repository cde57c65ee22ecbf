package placement

import (
	"github.com/thinkofname/univercity-core/tile"
)

// ObjectPlacement is the result of applying an object's footprint to a
// level: the object id the actions were recorded under, paired with the
// *reverse* action set Apply computed (old tile kinds, prior wall
// flags, ...), so the caller can hand the same value straight to
// Reverse without recomputing anything.
type ObjectPlacement struct {
	ObjectID int
	Reverse  []Action
}

// Apply executes actions against grid - painting tiles, cutting wall
// flags and marking blocked/collision/placement cells - records the
// forward action set in log under objectID, and returns the
// ObjectPlacement the command pipeline keeps as its own undo payload.
// Grid may be nil (a room still in Planning has no virtual level tile
// grid of its own yet); in that case only the bitset-affecting actions
// are recorded; tile/wall actions are skipped and their reverse is a
// no-op entry of the same kind.
func Apply(grid *tile.Grid, log *Log, objectID int, actions []Action) ObjectPlacement {
	reverse := make([]Action, len(actions))
	for i, a := range actions {
		reverse[i] = a
		if grid == nil {
			continue
		}
		switch a.Kind {
		case TileAction:
			prev := grid.GetTile(a.TileX, a.TileY)
			grid.SetTileRaw(a.TileX, a.TileY, tile.Info{Type: a.TileKind, Flags: prev.Flags})
			reverse[i].TileKind = prev.Type
		case WallFlagAction:
			prevInfo, had := grid.GetWall(a.TileX, a.TileY, a.Dir)
			info := prevInfo
			info.Flag = a.Flag
			info.WindowKind = a.WindowKind
			grid.SetWall(a.TileX, a.TileY, a.Dir, &info)
			if had {
				reverse[i].Flag = prevInfo.Flag
				reverse[i].WindowKind = prevInfo.WindowKind
			} else {
				reverse[i].Flag = tile.WallFlagNone
				reverse[i].WindowKind = prevInfo.WindowKind
			}
		}
	}
	log.ReplaceObject(objectID, actions)
	return ObjectPlacement{ObjectID: objectID, Reverse: reverse}
}

// Reverse undoes an ObjectPlacement previously returned by Apply:
// replays p.Reverse against grid to restore tiles/walls to what they
// were before Apply ran, and discards the object's claim in log
// entirely. Grid may be nil under the same conditions as Apply.
func Reverse(grid *tile.Grid, log *Log, p ObjectPlacement) {
	if grid != nil {
		for _, a := range p.Reverse {
			switch a.Kind {
			case TileAction:
				prev := grid.GetTile(a.TileX, a.TileY)
				grid.SetTileRaw(a.TileX, a.TileY, tile.Info{Type: a.TileKind, Flags: prev.Flags})
			case WallFlagAction:
				info, had := grid.GetWall(a.TileX, a.TileY, a.Dir)
				if !had {
					info = tile.WallInfo{}
				}
				info.Flag = a.Flag
				info.WindowKind = a.WindowKind
				grid.SetWall(a.TileX, a.TileY, a.Dir, &info)
			}
		}
	}
	log.Remove(p.ObjectID)
}
