package reconcile

import (
	"testing"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1700000000, 0).UTC()

func farm(id string, level int) *domain.Building {
	return &domain.Building{ID: id, Type: catalog.Farm, Level: level, X: 1, Y: 0, Footprint: catalog.Footprint{W: 1, H: 1}}
}

func TestProductionPerHour(t *testing.T) {
	cat := catalog.Default()
	city := domain.NewCity(cat)
	city["farm_a"] = farm("farm_a", 2)
	city["farm_b"] = farm("farm_b", 50)
	city["mill"] = &domain.Building{ID: "mill", Type: catalog.Lumbermill, Level: 3}
	city["castle"] = &domain.Building{ID: "castle", Type: "castle", Level: 3}

	r := ProductionPerHour(cat, city)
	assert.Equal(t, 10.0+520.0, r.GoldPerHour)
	assert.Equal(t, 30.0, r.WoodPerHour)
}

func TestCompleteUpgrades(t *testing.T) {
	cat := catalog.Default()
	city := domain.NewCity(cat)

	dueStart, dueEnd := t0.Add(-time.Hour), t0
	city["townhall_0"].UpgradeStart = &dueStart
	city["townhall_0"].UpgradeEnd = &dueEnd

	laterStart, laterEnd := t0, t0.Add(time.Second)
	city["farm_a"] = farm("farm_a", 1)
	city["farm_a"].UpgradeStart = &laterStart
	city["farm_a"].UpgradeEnd = &laterEnd

	done := CompleteUpgrades(cat, t0, city)
	assert.Equal(t, []string{"townhall_0"}, done)
	assert.Equal(t, 2, city["townhall_0"].Level)
	assert.Nil(t, city["townhall_0"].UpgradeStart)
	assert.Nil(t, city["townhall_0"].UpgradeEnd)
	assert.Equal(t, 1, city["farm_a"].Level)
	assert.True(t, city["farm_a"].Upgrading())

	// 같은 시각에 다시 호출해도 변화 없음
	assert.Empty(t, CompleteUpgrades(cat, t0, city))
	assert.Equal(t, 2, city["townhall_0"].Level)
}

func TestCompleteUpgradesNeverExceedsMaxLevel(t *testing.T) {
	cat := catalog.Default()
	city := domain.City{"farm_a": farm("farm_a", 10)}
	end := t0
	city["farm_a"].UpgradeStart = &end
	city["farm_a"].UpgradeEnd = &end

	CompleteUpgrades(cat, t0, city)
	assert.Equal(t, 10, city["farm_a"].Level)
}

func TestAccrue(t *testing.T) {
	rates := Rates{GoldPerHour: 100, WoodPerHour: 30}

	t.Run("elapsed time", func(t *testing.T) {
		res := domain.Resources{Gold: 10, Wood: 5, LastCollect: t0}
		now := t0.Add(90 * time.Minute)
		a := Accrue(now, &res, rates, false)

		assert.InDelta(t, 1.5, a.ElapsedHours, 1e-9)
		assert.InDelta(t, 160.0, res.Gold, 1e-9)
		assert.InDelta(t, 50.0, res.Wood, 1e-9)
		assert.True(t, res.LastCollect.Equal(now))
	})

	t.Run("zero elapsed is idempotent", func(t *testing.T) {
		res := domain.Resources{Gold: 10, LastCollect: t0}
		now := t0.Add(time.Hour)
		Accrue(now, &res, rates, false)
		after := res

		a := Accrue(now, &res, rates, false)
		assert.Zero(t, a.ElapsedHours)
		assert.Equal(t, after, res)
	})

	t.Run("clock moving backwards", func(t *testing.T) {
		res := domain.Resources{Gold: 10, LastCollect: t0}
		a := Accrue(t0.Add(-time.Hour), &res, rates, false)
		assert.Zero(t, a.ElapsedHours)
		assert.Equal(t, 10.0, res.Gold)
		assert.True(t, res.LastCollect.Equal(t0))
	})

	t.Run("unlimited advances timestamp only", func(t *testing.T) {
		res := domain.Resources{Gold: 10, LastCollect: t0}
		now := t0.Add(10 * time.Hour)
		a := Accrue(now, &res, rates, true)
		assert.Equal(t, 10.0, res.Gold)
		assert.Zero(t, a.Gold)
		assert.True(t, res.LastCollect.Equal(now))
	})
}

func TestApplyUsesCompletedLevels(t *testing.T) {
	cat := catalog.Default()
	city := domain.NewCity(cat)
	city["farm_a"] = farm("farm_a", 1)
	end := t0.Add(-2 * time.Hour)
	city["farm_a"].UpgradeStart = &end
	city["farm_a"].UpgradeEnd = &end

	res := domain.Resources{Gold: 0, LastCollect: t0.Add(-2 * time.Hour)}
	result := Apply(cat, t0, &res, city, false)

	require.True(t, result.CityChanged())
	assert.Equal(t, []string{"farm_a"}, result.Completed)
	assert.Equal(t, 10.0, result.Rates.GoldPerHour)
	assert.InDelta(t, 20.0, res.Gold, 1e-9)

	again := Apply(cat, t0, &res, city, false)
	assert.False(t, again.CityChanged())
	assert.InDelta(t, 20.0, res.Gold, 1e-9)
}
