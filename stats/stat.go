// Package stats contains the statistical helpers used by forecasting and correlation: growth
// rates, pearson correlation, a coarse significance test and fit scores.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrSampleLenMismatch = errors.New("samples have different lengths")

// Strength buckets the magnitude of a correlation coefficient.
type Strength string

const (
	StrengthNone     Strength = "none"
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Direction describes the sign of a correlation coefficient.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNone     Direction = "none"
)

const (
	WeakThreshold     = 0.2
	ModerateThreshold = 0.4
	StrongThreshold   = 0.7
	DirectionDeadZone = 0.1
)

// significance levels reported by PValue, tightest first
var significanceLevels = []float64{0.01, 0.05, 0.10}

// NotSignificant is reported by PValue when the coefficient does not clear the 90% level.
const NotSignificant = 1.0

// normalDF is the degrees of freedom past which the normal distribution is used for critical
// values instead of student's t.
const normalDF = 30

// Pearson returns the pearson correlation coefficient of x and y clamped to [-1, 1]. A series
// without variance has no linear relationship and reports 0.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, ErrSampleLenMismatch
	}
	if len(x) < 2 {
		return 0, nil
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, nil
	}
	return math.Max(-1.0, math.Min(1.0, r)), nil
}

// PValue approximates the two-tailed significance of a correlation coefficient r computed over
// n pairs. The t statistic is compared against critical values at the 99, 95 and 90 percent
// confidence levels and the matching level is returned rather than a continuous p-value.
func PValue(r float64, n int) float64 {
	df := n - 2
	if df <= 0 {
		return NotSignificant
	}
	absR := math.Abs(r)
	if absR >= 1.0 {
		return significanceLevels[0]
	}
	t := absR * math.Sqrt(float64(df)/(1.0-absR*absR))

	for _, alpha := range significanceLevels {
		if t >= criticalValue(alpha, df) {
			return alpha
		}
	}
	return NotSignificant
}

func criticalValue(alpha float64, df int) float64 {
	p := 1.0 - alpha/2.0
	if df >= normalDF {
		return distuv.UnitNormal.Quantile(p)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return dist.Quantile(p)
}

// ClassifyStrength buckets |r| into none, weak, moderate or strong.
func ClassifyStrength(r float64) Strength {
	absR := math.Abs(r)
	switch {
	case absR >= StrongThreshold:
		return StrengthStrong
	case absR >= ModerateThreshold:
		return StrengthModerate
	case absR >= WeakThreshold:
		return StrengthWeak
	default:
		return StrengthNone
	}
}

// ClassifyDirection reports the sign of r with a dead zone around 0.
func ClassifyDirection(r float64) Direction {
	switch {
	case r > DirectionDeadZone:
		return DirectionPositive
	case r < -DirectionDeadZone:
		return DirectionNegative
	default:
		return DirectionNone
	}
}
