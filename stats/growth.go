package stats

import "math"

// MinGrowthPoints is the minimum number of nonzero observations needed before a compound
// growth rate is reported.
const MinGrowthPoints = 3

// CMGR computes the compound monthly growth rate between the first and last value of a
// chronological slice of strictly positive observations. Fewer than MinGrowthPoints values
// report 0, meaning no opinion on growth.
func CMGR(values []float64) float64 {
	if len(values) < MinGrowthPoints {
		return 0
	}
	return CompoundGrowth(values[0], values[len(values)-1], len(values)-1)
}

// CompoundGrowth returns the constant per period rate r where first*(1+r)^periods == last.
// Zero periods or a non-positive endpoint report 0.
func CompoundGrowth(first, last float64, periods int) float64 {
	if periods <= 0 || first <= 0 || last <= 0 {
		return 0
	}
	rate := math.Pow(last/first, 1.0/float64(periods)) - 1.0
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}
