package domain

import (
	"encoding/json"
	"testing"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferLegacyType(t *testing.T) {
	cases := map[string]catalog.BuildingType{
		"townhall_0":         catalog.Townhall,
		"farm_17000":         catalog.Farm,
		"lumbermill_1":       catalog.Lumbermill,
		"house_2":            catalog.House,
		"barracks":           catalog.Barracks,
		"castle_9":           catalog.Townhall,
		"":                   catalog.Townhall,
		"my-farm-is-not-one": catalog.Townhall,
	}
	for id, want := range cases {
		assert.Equal(t, want, InferLegacyType(id), id)
	}
}

func TestUpgradeLegacyBuilding(t *testing.T) {
	t.Run("unversioned without type", func(t *testing.T) {
		in := map[string]any{"level": 2.0}
		out, upgraded := UpgradeLegacyBuilding("farm_1", in)
		assert.True(t, upgraded)
		assert.Equal(t, "farm", out["type"])
		assert.Equal(t, float64(RecordVersion), out["v"])
		assert.NotContains(t, in, "type", "input must not be modified")
	})

	t.Run("unversioned with type keeps it", func(t *testing.T) {
		out, upgraded := UpgradeLegacyBuilding("farm_1", map[string]any{"type": "house"})
		assert.True(t, upgraded)
		assert.Equal(t, "house", out["type"])
	})

	t.Run("current version untouched", func(t *testing.T) {
		in := map[string]any{"v": 1.0}
		out, upgraded := UpgradeLegacyBuilding("farm_1", in)
		assert.False(t, upgraded)
		assert.NotContains(t, out, "type")
	})
}

func TestNormalizeBuildingDefaults(t *testing.T) {
	cat := catalog.Default()

	b := NormalizeBuilding(cat, "house_1", map[string]any{
		"type":          "house",
		"upgrade_start": "",
		"upgrade_end":   0.0,
	})
	assert.Equal(t, catalog.House, b.Type)
	assert.Equal(t, 1, b.Level)
	assert.Equal(t, -1, b.X)
	assert.Equal(t, 0, b.Y)
	assert.Nil(t, b.UpgradeStart)
	assert.Nil(t, b.UpgradeEnd)
	assert.Equal(t, 0, b.Rotation)
	assert.Equal(t, catalog.Footprint{W: 1, H: 1}, b.Footprint)
}

func TestNormalizeBuildingCoercion(t *testing.T) {
	cat := catalog.Default()

	t.Run("numeric strings", func(t *testing.T) {
		b := NormalizeBuilding(cat, "farm_1", map[string]any{
			"type": "farm", "level": "3", "x": "-2", "y": 4.0,
			"upgrade_start": "1700000000", "upgrade_end": 1700000060.5,
		})
		assert.Equal(t, 3, b.Level)
		assert.Equal(t, -2, b.X)
		assert.Equal(t, 4, b.Y)
		require.NotNil(t, b.UpgradeEnd)
		assert.Equal(t, 1700000060.5, utils.EpochSeconds(*b.UpgradeEnd))
		assert.Equal(t, 1700000000.0, utils.EpochSeconds(*b.UpgradeStart))
	})

	t.Run("level clamps into range", func(t *testing.T) {
		assert.Equal(t, 10, NormalizeBuilding(cat, "farm_1", map[string]any{"type": "farm", "level": 42.0}).Level)
		assert.Equal(t, 1, NormalizeBuilding(cat, "farm_1", map[string]any{"type": "farm", "level": -3.0}).Level)
	})

	t.Run("out of range numbers fall back to defaults", func(t *testing.T) {
		b := NormalizeBuilding(cat, "farm_1", map[string]any{
			"type": "farm", "level": 1e20, "x": 1e20, "y": "-9e18", "rotation": 5e9,
		})
		assert.Equal(t, 1, b.Level)
		assert.Equal(t, 1, b.X)
		assert.Equal(t, 0, b.Y)
		assert.Equal(t, 0, b.Rotation)

		w, changed := NormalizeWorld([]byte(`{"radius": 1e300, "anchor": "center"}`), 3, time.Unix(1700000000, 0))
		assert.True(t, changed)
		assert.Equal(t, 3, w.Radius)
	})

	t.Run("half set timestamps", func(t *testing.T) {
		b := NormalizeBuilding(cat, "farm_1", map[string]any{"type": "farm", "upgrade_start": 1700000000.0})
		assert.Nil(t, b.UpgradeStart)
		assert.Nil(t, b.UpgradeEnd)

		b = NormalizeBuilding(cat, "farm_1", map[string]any{"type": "farm", "upgrade_end": 1700000000.0})
		require.NotNil(t, b.UpgradeStart)
		assert.True(t, b.UpgradeStart.Equal(*b.UpgradeEnd))
	})

	t.Run("unknown type keeps its name", func(t *testing.T) {
		b := NormalizeBuilding(cat, "castle_1", map[string]any{"type": "castle", "level": 99.0})
		assert.Equal(t, catalog.BuildingType("castle"), b.Type)
		assert.Equal(t, 99, b.Level)
	})
}

func TestNormalizeCityLegacyDocument(t *testing.T) {
	cat := catalog.Default()
	raw := []byte(`{
		"townhall_0": {"type": "townhall", "level": 1, "x": 0, "y": 0, "upgrade_start": null, "upgrade_end": null, "rotation": null},
		"farm_1700000000000": {"level": 2, "x": 1, "y": 0, "upgrade_start": "", "upgrade_end": ""},
		"broken": "not an object"
	}`)

	city, changed := NormalizeCity(cat, raw)
	assert.True(t, changed)
	require.Len(t, city, 3)
	assert.Equal(t, catalog.Farm, city["farm_1700000000000"].Type)
	assert.Equal(t, 2, city["farm_1700000000000"].Level)
	assert.Equal(t, catalog.Townhall, city["broken"].Type)
	assert.Equal(t, "farm_1700000000000", city["farm_1700000000000"].ID)
}

func TestNormalizeCityIsFixedPoint(t *testing.T) {
	cat := catalog.Default()
	start := utils.FromEpochSeconds(1700000000.123456)
	end := start.Add(90 * time.Second)

	city := NewCity(cat)
	city["farm_1"] = &Building{
		ID: "farm_1", Type: catalog.Farm, Level: 3, X: 1, Y: 0,
		UpgradeStart: &start, UpgradeEnd: &end, Footprint: catalog.Footprint{W: 1, H: 1},
	}

	raw, err := EncodeCity(city)
	require.NoError(t, err)

	first, changed := NormalizeCity(cat, raw)
	assert.False(t, changed)
	assert.Equal(t, city.Records(), first.Records())

	again, err := EncodeCity(first)
	require.NoError(t, err)
	second, changed := NormalizeCity(cat, again)
	assert.False(t, changed)
	assert.Equal(t, first.Records(), second.Records())
}

func TestNormalizeCityLegacyConvergesAfterOnePass(t *testing.T) {
	cat := catalog.Default()
	raw := []byte(`{"house_1": {"x": 2, "y": 0, "upgrade_start": 1700000000.1234567891, "upgrade_end": 1700000060.9876543219}}`)

	city, changed := NormalizeCity(cat, raw)
	require.True(t, changed)

	encoded, err := EncodeCity(city)
	require.NoError(t, err)
	_, changed = NormalizeCity(cat, encoded)
	assert.False(t, changed)
}

func TestNormalizeCityGarbage(t *testing.T) {
	cat := catalog.Default()
	for _, raw := range []string{``, `null`, `[]`, `{not json`} {
		city, changed := NormalizeCity(cat, []byte(raw))
		assert.Empty(t, city, raw)
		assert.True(t, changed, raw)
	}
}

func TestNormalizeWorld(t *testing.T) {
	now := utils.FromEpochSeconds(1700000000)

	t.Run("missing document", func(t *testing.T) {
		w, changed := NormalizeWorld(nil, 3, now)
		assert.True(t, changed)
		assert.Equal(t, 3, w.Radius)
		assert.Equal(t, DefaultAnchor, w.Anchor)
		assert.True(t, w.CreatedAt.Equal(now))
	})

	t.Run("legacy document", func(t *testing.T) {
		w, changed := NormalizeWorld([]byte(`{"radius": 5, "created_at": 1699999999.5}`), 3, now)
		assert.True(t, changed)
		assert.Equal(t, 5, w.Radius)
		assert.Equal(t, DefaultAnchor, w.Anchor)
		assert.Nil(t, w.UpdatedAt)
	})

	t.Run("canonical document", func(t *testing.T) {
		updated := now.Add(time.Minute)
		in := World{Radius: 0, Anchor: DefaultAnchor, CreatedAt: now, UpdatedAt: &updated}
		raw, err := EncodeWorld(in)
		require.NoError(t, err)

		w, changed := NormalizeWorld(raw, 3, now)
		assert.False(t, changed)
		assert.Equal(t, in.Record(), w.Record())
	})

	t.Run("garbage", func(t *testing.T) {
		w, changed := NormalizeWorld([]byte(`"nope"`), 4, now)
		assert.True(t, changed)
		assert.Equal(t, 4, w.Radius)
	})
}

func TestBuildingRecordWireShape(t *testing.T) {
	cat := catalog.Default()
	data, err := json.Marshal(NewCity(cat)["townhall_0"].Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"type":"townhall","level":1,"x":0,"y":0,"upgrade_start":null,"upgrade_end":null,"rotation":0,"footprint":{"w":1,"h":1}}`, string(data))
}
