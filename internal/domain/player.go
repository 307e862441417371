package domain

import (
	"strconv"
	"strings"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/pkg/utils"
)

// Starting and unlimited-mode resource amounts.
const (
	DefaultGold = 500.0
	DefaultWood = 300.0
	DefaultGems = 0

	UnlimitedGold = 99999999.0
	UnlimitedWood = 99999999.0
	UnlimitedGems = 999999
)

// Resources are a player's currencies plus the last idle collection instant.
type Resources struct {
	Gold        float64
	Wood        float64
	Gems        int64
	LastCollect time.Time
}

// NewResources creates the starting resources
func NewResources(now time.Time, unlimited bool) Resources {
	if unlimited {
		return Resources{Gold: UnlimitedGold, Wood: UnlimitedWood, Gems: UnlimitedGems, LastCollect: now}
	}
	return Resources{Gold: DefaultGold, Wood: DefaultWood, Gems: DefaultGems, LastCollect: now}
}

// RaiseToUnlimitedFloor lifts every currency to at least the unlimited amount.
func (r *Resources) RaiseToUnlimitedFloor() {
	if r.Gold < UnlimitedGold {
		r.Gold = UnlimitedGold
	}
	if r.Wood < UnlimitedWood {
		r.Wood = UnlimitedWood
	}
	if r.Gems < UnlimitedGems {
		r.Gems = UnlimitedGems
	}
}

// Hash returns the stored hash fields
func (r Resources) Hash() map[string]interface{} {
	return map[string]interface{}{
		"gold":         r.Gold,
		"wood":         r.Wood,
		"gems":         r.Gems,
		"last_collect": utils.EpochSeconds(r.LastCollect),
	}
}

// ResourcesFromHash parses stored hash fields. Unparsable currencies read as
// zero and an unparsable last_collect leaves LastCollect zero for the caller
// to stamp with its own clock.
func ResourcesFromHash(fields map[string]string) Resources {
	var res Resources
	if v, ok := parseFloat(fields["gold"]); ok {
		res.Gold = v
	}
	if v, ok := parseFloat(fields["wood"]); ok {
		res.Wood = v
	}
	if v, ok := parseFloat(fields["gems"]); ok {
		res.Gems = int64(v)
	}
	if v, ok := parseFloat(fields["last_collect"]); ok && v > 0 {
		res.LastCollect = utils.FromEpochSeconds(v)
	}
	return res
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

// ResourceView is the rounded client view of resources
type ResourceView struct {
	Gold float64 `json:"gold"`
	Wood float64 `json:"wood"`
	Gems int64   `json:"gems"`
}

// View rounds currencies for display
func (r Resources) View() ResourceView {
	return ResourceView{
		Gold: catalog.Round(r.Gold, 2),
		Wood: catalog.Round(r.Wood, 2),
		Gems: r.Gems,
	}
}

// ResourceRecord is the full resource state including the collection instant
type ResourceRecord struct {
	Gold        float64 `json:"gold"`
	Wood        float64 `json:"wood"`
	Gems        int64   `json:"gems"`
	LastCollect float64 `json:"last_collect"`
}

// Record converts resources for responses that expose last_collect
func (r Resources) Record() ResourceRecord {
	return ResourceRecord{Gold: r.Gold, Wood: r.Wood, Gems: r.Gems, LastCollect: utils.EpochSeconds(r.LastCollect)}
}

// World bounds the placeable area of a city.
const (
	DefaultAnchor = "topleft"
	MaxRadius     = 2000
	MaxExpandStep = 50
)

// World is the square placement region [-Radius, Radius]²
type World struct {
	Radius    int
	Anchor    string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// NewWorld creates a world of the given radius
func NewWorld(radius int, now time.Time) World {
	return World{Radius: radius, Anchor: DefaultAnchor, CreatedAt: now}
}

// Bounds is an inclusive rectangle of tiles
type Bounds struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Bounds returns the placeable rectangle
func (w World) Bounds() Bounds {
	return Bounds{MinX: -w.Radius, MaxX: w.Radius, MinY: -w.Radius, MaxY: w.Radius}
}

// Contains reports whether every tile lies inside the bounds
func (b Bounds) Contains(tiles ...Tile) bool {
	for _, t := range tiles {
		if t.X < b.MinX || t.X > b.MaxX || t.Y < b.MinY || t.Y > b.MaxY {
			return false
		}
	}
	return true
}

// Grid is the size of the placeable area in tiles
type Grid struct {
	W int `json:"w"`
	H int `json:"h"`
}

// WorldView is the client view of the world boundary
type WorldView struct {
	Radius int    `json:"radius"`
	Grid   Grid   `json:"grid"`
	Bounds Bounds `json:"bounds"`
	Anchor string `json:"anchor"`
}

// View builds the client view
func (w World) View() WorldView {
	side := 2*w.Radius + 1
	return WorldView{
		Radius: w.Radius,
		Grid:   Grid{W: side, H: side},
		Bounds: w.Bounds(),
		Anchor: w.Anchor,
	}
}
