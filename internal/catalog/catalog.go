// Package catalog holds the static building catalog and expansion cost curves.
// A Catalog is loaded once at startup and must be treated as read-only.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed buildings.yaml
var defaultCatalogYAML []byte

// BuildingType identifies a catalog entry.
type BuildingType string

const (
	Townhall   BuildingType = "townhall"
	Farm       BuildingType = "farm"
	Lumbermill BuildingType = "lumbermill"
	House      BuildingType = "house"
	Barracks   BuildingType = "barracks"
)

// ErrMissingEntry is returned when a cost or duration table has no entry for
// the requested level.
var ErrMissingEntry = errors.New("catalog table entry missing")

// Footprint is the tile rectangle a building occupies.
type Footprint struct {
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// BuildingSpec is the balance data for one building type.
type BuildingSpec struct {
	Type                  BuildingType `yaml:"-"`
	MaxLevel              int          `yaml:"max_level"`
	DefaultX              int          `yaml:"default_x"`
	DefaultY              int          `yaml:"default_y"`
	Footprint             Footprint    `yaml:"footprint"`
	Rotatable             bool         `yaml:"rotatable"`
	UpgradeCostGold       []float64    `yaml:"upgrade_cost_gold"`
	UpgradeDuration       []float64    `yaml:"upgrade_duration"`
	ProductionPerHourGold []float64    `yaml:"production_per_hour_gold"`
	ProductionPerHourWood []float64    `yaml:"production_per_hour_wood"`
}

// BuildCost is the gold price of placing a new building: the cost of
// reaching level 2.
func (s *BuildingSpec) BuildCost() (float64, error) {
	if len(s.UpgradeCostGold) < 2 {
		return 0, fmt.Errorf("%s build cost: %w", s.Type, ErrMissingEntry)
	}
	return s.UpgradeCostGold[1], nil
}

// UpgradeStep returns the gold cost and duration in seconds of reaching nextLevel.
func (s *BuildingSpec) UpgradeStep(nextLevel int) (cost float64, seconds float64, err error) {
	idx := nextLevel - 1
	if idx < 0 || idx >= len(s.UpgradeCostGold) || idx >= len(s.UpgradeDuration) {
		return 0, 0, fmt.Errorf("%s level %d upgrade: %w", s.Type, nextLevel, ErrMissingEntry)
	}
	return s.UpgradeCostGold[idx], s.UpgradeDuration[idx], nil
}

// Rate looks up a level-indexed production table. Levels past the end of the
// table use the last entry.
func Rate(table []float64, level int) float64 {
	if len(table) == 0 {
		return 0
	}
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(table)-1 {
		idx = len(table) - 1
	}
	return table[idx]
}

// Expansion groups the two world expansion price curves.
type Expansion struct {
	Gold CostCurve `yaml:"gold"`
	Gems CostCurve `yaml:"gems"`
}

// Catalog is the full set of building specs.
type Catalog struct {
	FallbackType       BuildingType                   `yaml:"fallback_type"`
	DemolishRefundRate float64                        `yaml:"demolish_refund_rate"`
	Expansion          Expansion                      `yaml:"expansion"`
	Buildings          map[BuildingType]*BuildingSpec `yaml:"buildings"`

	order []BuildingType
}

// Default parses the embedded catalog. It panics on a malformed embedded
// file, which can only happen at build time.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) init() error {
	if len(c.Buildings) == 0 {
		return errors.New("catalog: no buildings defined")
	}
	if c.FallbackType == "" {
		c.FallbackType = Townhall
	}
	if _, ok := c.Buildings[c.FallbackType]; !ok {
		return fmt.Errorf("catalog: fallback type %q is not defined", c.FallbackType)
	}
	if _, ok := c.Buildings[Townhall]; !ok {
		return errors.New("catalog: townhall is required")
	}

	c.order = c.order[:0]
	for t, spec := range c.Buildings {
		if spec == nil {
			return fmt.Errorf("catalog: %s has no spec", t)
		}
		spec.Type = t
		if spec.MaxLevel < 1 {
			return fmt.Errorf("catalog: %s max_level must be >= 1", t)
		}
		if spec.Footprint.W <= 0 {
			spec.Footprint.W = 1
		}
		if spec.Footprint.H <= 0 {
			spec.Footprint.H = 1
		}
		if _, err := spec.BuildCost(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		c.order = append(c.order, t)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })

	for name, curve := range map[string]CostCurve{"gold": c.Expansion.Gold, "gems": c.Expansion.Gems} {
		if curve.Base <= 0 || curve.Growth < 1 {
			return fmt.Errorf("catalog: %s expansion curve needs base > 0 and growth >= 1", name)
		}
	}
	return nil
}

// Spec returns the spec for t.
func (c *Catalog) Spec(t BuildingType) (*BuildingSpec, bool) {
	spec, ok := c.Buildings[t]
	return spec, ok
}

// SpecOrFallback returns the spec for t, or the fallback type's spec for
// unknown types.
func (c *Catalog) SpecOrFallback(t BuildingType) *BuildingSpec {
	if spec, ok := c.Buildings[t]; ok {
		return spec
	}
	return c.Buildings[c.FallbackType]
}

// Footprint returns the catalog footprint of t, 1x1 for unknown types.
func (c *Catalog) Footprint(t BuildingType) Footprint {
	if spec, ok := c.Buildings[t]; ok {
		return spec.Footprint
	}
	return Footprint{W: 1, H: 1}
}

// EntryView is the client-facing summary of one building type.
type EntryView struct {
	Footprint     Footprint `json:"footprint"`
	Rotatable     bool      `json:"rotatable"`
	MaxLevel      int       `json:"max_level"`
	BuildCostGold float64   `json:"build_cost_gold"`
}

// View builds the client catalog so the build menu needs no hardcoded data.
func (c *Catalog) View() map[string]EntryView {
	out := make(map[string]EntryView, len(c.Buildings))
	for _, t := range c.order {
		spec := c.Buildings[t]
		cost, _ := spec.BuildCost()
		out[string(t)] = EntryView{
			Footprint:     spec.Footprint,
			Rotatable:     spec.Rotatable,
			MaxLevel:      spec.MaxLevel,
			BuildCostGold: cost,
		}
	}
	return out
}
