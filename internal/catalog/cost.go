package catalog

import (
	"errors"
	"math"
)

// curvePivot is the radius up to which every expansion step costs Base.
const curvePivot = 3

// MaxPrice is the largest price a curve quotes. Past it float64 stops holding
// whole units exactly and a gem price no longer converts to int64 safely.
const MaxPrice = 1 << 53

// ErrPriceOverflow is returned by Price when the curve runs past MaxPrice.
var ErrPriceOverflow = errors.New("expansion price out of range")

// CostCurve prices world expansion. Step i from radius r costs
// Base * Growth^max(0, r+i-curvePivot).
type CostCurve struct {
	Base     float64 `yaml:"base"`
	Growth   float64 `yaml:"growth"`
	Decimals int     `yaml:"decimals"`
}

// Total returns the rounded price of growing radius by steps rings.
func (c CostCurve) Total(radius, steps int) float64 {
	if radius < 0 {
		radius = 0
	}
	total := 0.0
	for i := 0; i < steps; i++ {
		exp := radius + i - curvePivot
		if exp < 0 {
			exp = 0
		}
		total += c.Base * math.Pow(c.Growth, float64(exp))
	}
	return Round(total, c.Decimals)
}

// Price is Total with a range check, so callers never charge a price that
// overflowed to infinity or past what the resource fields can hold.
func (c CostCurve) Price(radius, steps int) (float64, error) {
	total := c.Total(radius, steps)
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 || total > MaxPrice {
		return 0, ErrPriceOverflow
	}
	return total, nil
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
