package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"citybuilder/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFootprintTiles(t *testing.T) {
	tiles := FootprintTiles(2, -1, catalog.Footprint{W: 2, H: 3})
	assert.ElementsMatch(t, []Tile{
		{2, -1}, {2, 0}, {2, 1},
		{3, -1}, {3, 0}, {3, 1},
	}, tiles)

	assert.Equal(t, []Tile{{0, 0}}, FootprintTiles(0, 0, catalog.Footprint{}))
}

func TestEffectiveFootprint(t *testing.T) {
	fp := catalog.Footprint{W: 2, H: 1}
	assert.Equal(t, fp, EffectiveFootprint(fp, 90, false))
	assert.Equal(t, catalog.Footprint{W: 1, H: 2}, EffectiveFootprint(fp, 90, true))
	assert.Equal(t, catalog.Footprint{W: 1, H: 2}, EffectiveFootprint(fp, -90, true))
	assert.Equal(t, fp, EffectiveFootprint(fp, 180, true))
}

func TestCityOccupiedBy(t *testing.T) {
	cat := catalog.Default()
	city := NewCity(cat)
	city["house_1"] = &Building{ID: "house_1", Type: catalog.House, Level: 1, X: 2, Y: 0, Footprint: catalog.Footprint{W: 1, H: 1}}

	id, hit := city.OccupiedBy(cat, []Tile{{2, 0}})
	assert.True(t, hit)
	assert.Equal(t, "house_1", id)

	id, hit = city.OccupiedBy(cat, FootprintTiles(-1, -1, catalog.Footprint{W: 2, H: 2}))
	assert.True(t, hit)
	assert.Equal(t, "townhall_0", id)

	_, hit = city.OccupiedBy(cat, []Tile{{1, 1}})
	assert.False(t, hit)
}

func TestEnsureTownhall(t *testing.T) {
	cat := catalog.Default()

	city := NewCity(cat)
	assert.False(t, city.EnsureTownhall(cat))
	assert.Len(t, city, 1)

	city = City{}
	require.True(t, city.EnsureTownhall(cat))
	require.Contains(t, city, "townhall_0")
	assert.Equal(t, 1, city["townhall_0"].Level)
	assert.Equal(t, 0, city["townhall_0"].X)
	assert.Equal(t, 0, city["townhall_0"].Y)

	// 기본 위치와 id가 이미 다른 건물에 쓰이는 경우
	city = City{
		"townhall_0": {ID: "townhall_0", Type: catalog.Farm, Level: 2, X: 0, Y: 0, Footprint: catalog.Footprint{W: 1, H: 1}},
	}
	require.True(t, city.EnsureTownhall(cat))
	assert.Equal(t, 1, city.CountType(catalog.Townhall))
	th := city["townhall_1"]
	require.NotNil(t, th)
	assert.Equal(t, catalog.Townhall, th.Type)
	_, taken := City{"farm": city["townhall_0"]}.OccupiedBy(cat, th.Tiles(cat))
	assert.False(t, taken)
}

func TestWorldBounds(t *testing.T) {
	w := NewWorld(3, time.Now())
	b := w.Bounds()
	assert.True(t, b.Contains(Tile{-3, 3}, Tile{3, -3}))
	assert.False(t, b.Contains(Tile{4, 0}))

	view := w.View()
	assert.Equal(t, Grid{W: 7, H: 7}, view.Grid)
	assert.Equal(t, Bounds{MinX: -3, MaxX: 3, MinY: -3, MaxY: 3}, view.Bounds)
}

func TestResourcesFromHash(t *testing.T) {
	now := time.Unix(1700000100, 0).UTC()
	res := ResourcesFromHash(map[string]string{
		"gold":         "420.5",
		"wood":         "garbage",
		"gems":         "12",
		"last_collect": "1700000000",
	})

	assert.Equal(t, 420.5, res.Gold)
	assert.Equal(t, 0.0, res.Wood)
	assert.Equal(t, int64(12), res.Gems)
	assert.True(t, res.LastCollect.Equal(time.Unix(1700000000, 0)))

	res = ResourcesFromHash(map[string]string{"gold": "1", "last_collect": "garbage"})
	assert.True(t, res.LastCollect.IsZero())

	res = NewResources(now, false)
	res.RaiseToUnlimitedFloor()
	assert.Equal(t, UnlimitedGold, res.Gold)
	assert.Equal(t, int64(UnlimitedGems), res.Gems)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("place: %w", NewInvalidMutationError("Position is occupied"))

	assert.True(t, errors.Is(err, ErrInvalidMutation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindInvalidMutation, KindOf(err))
	assert.Equal(t, "Position is occupied", MessageOf(err))

	cfg := NewConfigError(catalog.ErrMissingEntry)
	assert.ErrorIs(t, cfg, ErrConfig)
	assert.ErrorIs(t, cfg, catalog.ErrMissingEntry)

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	require.Equal(t, "plain", MessageOf(errors.New("plain")))
}
