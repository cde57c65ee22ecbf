// Package room implements room descriptors (the loaded, immutable
// "what is a classroom" data), the room registry (the placed, mutable
// "where are the classrooms" data and its Planning -> Building -> Done
// state machine), and the VirtualLevel construction scratchpad rooms are
// built against before being committed to the real tile grid.
package room

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/thinkofname/univercity-core/ids"
)

// Walls describes the wall textures a descriptor requests around its
// room's perimeter.
type Walls struct {
	Texture     ids.ResourceKey
	TextureTop  ids.ResourceKey
	HasTop      bool
	Priority    bool
}

// Requirement gates whether a player may build a room of this kind.
type Requirement struct {
	Kind  ids.ResourceKey
	Count int
}

// Check reports whether the player meets this requirement, given the
// number of rooms of Kind that player currently owns.
func (r Requirement) Check(ownedCount int) bool { return ownedCount >= r.Count }

// Descriptor is the loaded, content-pack-authored definition of a room
// type: everything needed to validate and cost a placement, independent
// of any particular placed instance.
type Descriptor struct {
	Key  ids.ResourceKey
	Name string

	MinWidth, MinHeight int32

	Tile       ids.ResourceKey
	BorderTile ids.ResourceKey
	HasBorder  bool

	Wall    Walls
	HasWall bool

	TilePlacer ids.EntryPoint
	TileUpdater ids.ResourceKey
	Controller  ids.ResourceKey

	OnlyWithin ids.ResourceKey

	ValidObjects     []ids.ResourceKey
	RequiredObjects  map[ids.ResourceKey]int
	RequiredEntities map[ids.ResourceKey]int

	BuildAnywhere bool
	Requirements  []Requirement

	AllowEdit        bool
	AllowLimitedEdit bool

	BaseCost    int64
	CostPerTile int64

	CanIdle         bool
	UsedForTeaching bool
}

// descriptorJSON mirrors the on-disk "rooms/<name>.json" shape a content
// pack ships.
type descriptorJSON struct {
	Name    string `json:"name"`
	MinSize struct {
		X int32 `json:"x"`
		Y int32 `json:"y"`
	} `json:"min_size"`
	Tile       string `json:"tile"`
	BorderTile string `json:"border_tile,omitempty"`
	TilePlacer string `json:"tile_placer,omitempty"`
	TileUpdater string `json:"tile_updater,omitempty"`
	Wall       *struct {
		Texture     string `json:"texture"`
		TextureTop  string `json:"texture_top,omitempty"`
		Priority    bool   `json:"priority,omitempty"`
	} `json:"wall,omitempty"`
	OnlyWithin     string           `json:"only_within,omitempty"`
	ValidObjects   []string         `json:"valid_objects,omitempty"`
	RequiredObjects  map[string]int `json:"required_objects,omitempty"`
	RequiredEntities map[string]int `json:"required_entities,omitempty"`
	BuildAnywhere    bool           `json:"build_anywhere,omitempty"`
	Requirements     []struct {
		Type  string `json:"type"`
		Key   string `json:"key"`
		Count int    `json:"count"`
	} `json:"requirements,omitempty"`
	Controller       string `json:"controller,omitempty"`
	AllowEdit        bool   `json:"allow_edit,omitempty"`
	AllowLimitedEdit bool   `json:"allow_limited_edit,omitempty"`
	BaseCost         int64  `json:"base_cost,omitempty"`
	CostPerTile      int64  `json:"cost_per_tile,omitempty"`
	CanIdle          bool   `json:"can_idle,omitempty"`
	UsedForTeaching  bool   `json:"used_for_teaching,omitempty"`
}

// ParseDescriptor decodes a room descriptor from its content-pack JSON
// representation. module is the pack the descriptor was loaded from and
// is used to qualify any bare (module-less) keys it references, exactly
// the "LazyResourceKey::or_module" resolution content packs rely on.
func ParseDescriptor(module ids.ModuleKey, r io.Reader) (Descriptor, error) {
	var doc descriptorJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Descriptor{}, fmt.Errorf("room: decode descriptor: %w", err)
	}

	resolve := func(s string) ids.ResourceKey { return ids.ParseLazy(s).OrModule(module) }

	d := Descriptor{
		Name:             doc.Name,
		MinWidth:         doc.MinSize.X,
		MinHeight:        doc.MinSize.Y,
		Tile:             resolve(doc.Tile),
		BuildAnywhere:    doc.BuildAnywhere,
		AllowEdit:        doc.AllowEdit,
		AllowLimitedEdit: doc.AllowLimitedEdit,
		BaseCost:         doc.BaseCost,
		CostPerTile:      doc.CostPerTile,
		CanIdle:          doc.CanIdle,
		UsedForTeaching:  doc.UsedForTeaching,
	}

	if doc.BorderTile != "" {
		d.BorderTile = resolve(doc.BorderTile)
		d.HasBorder = true
	}
	if doc.TileUpdater != "" {
		d.TileUpdater = resolve(doc.TileUpdater)
	}
	if doc.Controller != "" {
		d.Controller = resolve(doc.Controller)
	}
	if doc.OnlyWithin != "" {
		d.OnlyWithin = resolve(doc.OnlyWithin)
	}
	if doc.TilePlacer != "" {
		ep := ids.ParseEntryPoint(doc.TilePlacer)
		d.TilePlacer = ep.OrModule(module)
	}
	if doc.Wall != nil {
		d.HasWall = true
		d.Wall.Texture = resolve(doc.Wall.Texture)
		d.Wall.Priority = doc.Wall.Priority
		if doc.Wall.TextureTop != "" {
			d.Wall.TextureTop = resolve(doc.Wall.TextureTop)
			d.Wall.HasTop = true
		}
	}

	for _, v := range doc.ValidObjects {
		d.ValidObjects = append(d.ValidObjects, resolve(v))
	}
	if len(doc.RequiredObjects) > 0 {
		d.RequiredObjects = make(map[ids.ResourceKey]int, len(doc.RequiredObjects))
		for k, v := range doc.RequiredObjects {
			d.RequiredObjects[resolve(k)] = v
		}
	}
	if len(doc.RequiredEntities) > 0 {
		d.RequiredEntities = make(map[ids.ResourceKey]int, len(doc.RequiredEntities))
		for k, v := range doc.RequiredEntities {
			d.RequiredEntities[resolve(k)] = v
		}
	}
	for _, req := range doc.Requirements {
		switch req.Type {
		case "room", "":
			d.Requirements = append(d.Requirements, Requirement{Kind: resolve(req.Key), Count: req.Count})
		default:
			return Descriptor{}, fmt.Errorf("room: unknown requirement type %q", req.Type)
		}
	}

	return d, nil
}

// CostForArea returns the cost to build a room of this descriptor's kind
// at the given size. Rooms at or below their minimum size are charged
// only the base cost; every tile above minimum adds CostPerTile.
func (d Descriptor) CostForArea(width, height int32) int64 {
	cost := d.BaseCost
	minArea := int64(d.MinWidth) * int64(d.MinHeight)
	area := int64(width) * int64(height)
	if area > minArea {
		cost += (area - minArea) * d.CostPerTile
	}
	return cost
}

// CheckRequirements reports whether a player who owns ownedCounts[kind]
// rooms of each kind meets every one of this descriptor's Requirements.
func (d Descriptor) CheckRequirements(ownedCounts map[ids.ResourceKey]int) bool {
	for _, req := range d.Requirements {
		if !req.Check(ownedCounts[req.Kind]) {
			return false
		}
	}
	return true
}

// CheckValidPlacement reports whether placedCounts (the number of
// currently-placed objects matching each required key, counted with
// weak matching so a different pack's compatible object still counts)
// satisfies every RequiredObjects entry.
func (d Descriptor) CheckValidPlacement(placedCounts map[ids.ResourceKey]int) bool {
	for required, count := range d.RequiredObjects {
		have := 0
		for placedKey, n := range placedCounts {
			if required.WeakMatch(placedKey) {
				have += n
			}
		}
		if have < count {
			return false
		}
	}
	return true
}
