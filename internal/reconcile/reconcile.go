// Package reconcile folds elapsed wall-clock time into a player's state:
// finished upgrades are completed and idle production is accrued. Every
// function here is pure and calling it twice with the same time is a no-op
// the second time.
package reconcile

import (
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"
)

// Rates is the hourly production of a city
type Rates struct {
	GoldPerHour float64
	WoodPerHour float64
}

// ProductionPerHour sums the level-indexed production of every building.
func ProductionPerHour(cat *catalog.Catalog, city domain.City) Rates {
	var r Rates
	for _, b := range city {
		spec, ok := cat.Spec(b.Type)
		if !ok {
			continue
		}
		r.GoldPerHour += catalog.Rate(spec.ProductionPerHourGold, b.Level)
		r.WoodPerHour += catalog.Rate(spec.ProductionPerHourWood, b.Level)
	}
	return r
}

// CompleteUpgrades finishes every upgrade whose end time is not after now
// and returns the ids of the completed buildings in sorted order.
func CompleteUpgrades(cat *catalog.Catalog, now time.Time, city domain.City) []string {
	var done []string
	for _, id := range city.IDs() {
		b := city[id]
		if b.UpgradeEnd == nil || now.Before(*b.UpgradeEnd) {
			continue
		}
		b.Level++
		if spec, ok := cat.Spec(b.Type); ok && b.Level > spec.MaxLevel {
			b.Level = spec.MaxLevel
		}
		b.UpgradeStart = nil
		b.UpgradeEnd = nil
		done = append(done, id)
	}
	return done
}

// Accrual describes one production fold
type Accrual struct {
	ElapsedHours float64
	Gold         float64
	Wood         float64
}

// Accrue adds production for the time since LastCollect and moves
// LastCollect to now. A clock that appears to run backwards accrues nothing
// and never moves LastCollect back. Unlimited mode skips the growth but still
// advances the timestamp.
func Accrue(now time.Time, res *domain.Resources, rates Rates, unlimited bool) Accrual {
	var a Accrual
	if now.After(res.LastCollect) {
		a.ElapsedHours = now.Sub(res.LastCollect).Hours()
		res.LastCollect = now
	}
	if unlimited || a.ElapsedHours == 0 {
		return a
	}

	a.Gold = a.ElapsedHours * rates.GoldPerHour
	a.Wood = a.ElapsedHours * rates.WoodPerHour
	res.Gold += a.Gold
	res.Wood += a.Wood
	return a
}

// Result is the outcome of Apply
type Result struct {
	Completed []string
	Rates     Rates
	Accrual   Accrual
}

// CityChanged reports whether the building map was modified
func (r Result) CityChanged() bool {
	return len(r.Completed) > 0
}

// Apply completes due upgrades and then accrues production at the resulting
// levels.
func Apply(cat *catalog.Catalog, now time.Time, res *domain.Resources, city domain.City, unlimited bool) Result {
	completed := CompleteUpgrades(cat, now, city)
	rates := ProductionPerHour(cat, city)
	return Result{
		Completed: completed,
		Rates:     rates,
		Accrual:   Accrue(now, res, rates, unlimited),
	}
}
