package room

import (
	"github.com/thinkofname/univercity-core/internal/bitset"
	"github.com/thinkofname/univercity-core/placement"
)

// FindFreePoint runs a breadth-first search over the room's collision
// bitset outward from (subX, subY) - level-local quarter-tile units -
// and returns the nearest cell that is not marked collided. Used by the
// idle/controller systems when an entity's desired position has become
// blocked since it was chosen. Returns false if the room has no active
// collision surface (neither Building nor a committed Done state) or
// every reachable cell is blocked.
func (p *Placement) FindFreePoint(subX, subY int) (int, int, bool) {
	var collide *bitset.Set
	var width, height int32
	switch {
	case p.Building != nil:
		collide = p.Building.Collision
		width, height = p.Building.Area.Width(), p.Building.Area.Height()
	case p.Collision != nil:
		collide = p.Collision
		width, height = p.Area.Width(), p.Area.Height()
	default:
		return 0, 0, false
	}
	return findFreePoint(collide, int(width)*placement.SubTilesPerAxis, int(height)*placement.SubTilesPerAxis, subX, subY)
}

type subtile struct{ x, y int }

var neighbourOffsets = [4]subtile{{0, -1}, {0, 1}, {1, 0}, {-1, 0}}

func findFreePoint(collide *bitset.Set, width, height, startX, startY int) (int, int, bool) {
	inBounds := func(x, y int) bool { return x >= 0 && x < width && y >= 0 && y < height }
	if !inBounds(startX, startY) {
		return 0, 0, false
	}

	start := subtile{startX, startY}
	visited := map[subtile]bool{start: true}
	queue := []subtile{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !collide.Get(cur.x + cur.y*width) {
			return cur.x, cur.y, true
		}
		for _, d := range neighbourOffsets {
			next := subtile{cur.x + d.x, cur.y + d.y}
			if !inBounds(next.x, next.y) || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return 0, 0, false
}
