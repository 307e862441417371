package domain

import (
	"fmt"
	"sort"
	"time"

	"citybuilder/internal/catalog"
)

// Building represents a placed structure in a player's city
type Building struct {
	ID           string
	Type         catalog.BuildingType
	Level        int
	X            int
	Y            int
	UpgradeStart *time.Time
	UpgradeEnd   *time.Time
	Rotation     int
	Footprint    catalog.Footprint
}

// Upgrading reports whether an upgrade is scheduled
func (b *Building) Upgrading() bool {
	return b.UpgradeEnd != nil
}

// Tiles returns the grid cells the building covers
func (b *Building) Tiles(cat *catalog.Catalog) []Tile {
	rotatable := false
	if spec, ok := cat.Spec(b.Type); ok {
		rotatable = spec.Rotatable
	}
	return FootprintTiles(b.X, b.Y, EffectiveFootprint(b.Footprint, b.Rotation, rotatable))
}

// Tile is one grid cell
type Tile struct {
	X int
	Y int
}

// EffectiveFootprint applies a quarter-turn rotation to rotatable footprints.
func EffectiveFootprint(fp catalog.Footprint, rotation int, rotatable bool) catalog.Footprint {
	if rotatable {
		r := ((rotation % 360) + 360) % 360
		if r == 90 || r == 270 {
			return catalog.Footprint{W: fp.H, H: fp.W}
		}
	}
	return fp
}

// FootprintTiles lists the tiles of a footprint anchored at its top-left tile (x, y).
func FootprintTiles(x, y int, fp catalog.Footprint) []Tile {
	w, h := fp.W, fp.H
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	tiles := make([]Tile, 0, w*h)
	for dx := 0; dx < w; dx++ {
		for dy := 0; dy < h; dy++ {
			tiles = append(tiles, Tile{X: x + dx, Y: y + dy})
		}
	}
	return tiles
}

// City maps building id to building for one player
type City map[string]*Building

// NewCity creates the starting city: a single level 1 townhall.
func NewCity(cat *catalog.Catalog) City {
	spec := cat.SpecOrFallback(catalog.Townhall)
	return City{
		"townhall_0": {
			ID:        "townhall_0",
			Type:      catalog.Townhall,
			Level:     1,
			X:         spec.DefaultX,
			Y:         spec.DefaultY,
			Footprint: spec.Footprint,
		},
	}
}

// IDs returns the building ids in sorted order
func (c City) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OccupiedBy returns the id of a building covering any of tiles.
func (c City) OccupiedBy(cat *catalog.Catalog, tiles []Tile) (string, bool) {
	want := make(map[Tile]struct{}, len(tiles))
	for _, t := range tiles {
		want[t] = struct{}{}
	}
	for _, id := range c.IDs() {
		for _, t := range c[id].Tiles(cat) {
			if _, hit := want[t]; hit {
				return id, true
			}
		}
	}
	return "", false
}

// CountType counts buildings of type t
func (c City) CountType(t catalog.BuildingType) int {
	n := 0
	for _, b := range c {
		if b.Type == t {
			n++
		}
	}
	return n
}

// EnsureTownhall adds a level 1 townhall to a city that has none. It goes on
// the catalog default tile, or the nearest free tile ring by ring when that
// one is taken. Reports whether the city changed.
func (c City) EnsureTownhall(cat *catalog.Catalog) bool {
	if c.CountType(catalog.Townhall) > 0 {
		return false
	}

	spec := cat.SpecOrFallback(catalog.Townhall)
	id := "townhall_0"
	for n := 1; c[id] != nil; n++ {
		id = fmt.Sprintf("townhall_%d", n)
	}

	b := &Building{ID: id, Type: catalog.Townhall, Level: 1, Footprint: spec.Footprint}
	for r := 0; ; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				b.X, b.Y = spec.DefaultX+dx, spec.DefaultY+dy
				if _, taken := c.OccupiedBy(cat, b.Tiles(cat)); !taken {
					c[id] = b
					return true
				}
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
