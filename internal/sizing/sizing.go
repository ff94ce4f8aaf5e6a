// Package sizing computes risk-bounded position quantities.
package sizing

import (
	"errors"
	"math"
)

var ErrInvalidInputs = errors.New("invalid sizing inputs")

// Quantity returns riskBudget / |entryPrice - stopPrice|: the position size
// that loses exactly the risk budget if the stop is hit. No rounding happens
// here; lot-size rounding is venue-defined and applied by the venue client.
func Quantity(riskBudget, entryPrice, stopPrice float64) (float64, error) {
	if !isPositive(riskBudget) || !isPositive(entryPrice) || !isPositive(stopPrice) {
		return 0, ErrInvalidInputs
	}
	if entryPrice == stopPrice {
		return 0, ErrInvalidInputs
	}
	return riskBudget / math.Abs(entryPrice-stopPrice), nil
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
