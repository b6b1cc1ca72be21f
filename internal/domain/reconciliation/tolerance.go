package reconciliation

import (
	"math"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WithinTolerance reports whether a pair is close enough to be a candidate
func WithinTolerance(amountDelta decimal.Decimal, dateDeltaDays int, settings ReconciliationSettings) bool {
	return amountDelta.Abs().LessThanOrEqual(settings.AmountTolerance) &&
		absInt(dateDeltaDays) <= settings.DateToleranceDays
}

// AmountScore decays linearly from 1 at a zero delta to 0 at the tolerance
func AmountScore(amountDelta, tolerance decimal.Decimal) float64 {
	delta := amountDelta.Abs()
	if !tolerance.IsPositive() {
		if delta.IsZero() {
			return 1
		}
		return 0
	}
	if delta.GreaterThanOrEqual(tolerance) {
		return 0
	}
	score, _ := decimal.NewFromInt(1).Sub(delta.Div(tolerance)).Float64()
	return clamp01(score)
}

// DateScore decays linearly from 1 on the same day to 0 at the tolerance
func DateScore(dateDeltaDays, toleranceDays int) float64 {
	days := absInt(dateDeltaDays)
	if toleranceDays <= 0 {
		if days == 0 {
			return 1
		}
		return 0
	}
	if days >= toleranceDays {
		return 0
	}
	return clamp01(1 - float64(days)/float64(toleranceDays))
}

// DaysBetween returns the whole number of UTC calendar days from b to a
func DaysBetween(a, b time.Time) int {
	return int(shared.TruncateToDate(a).Sub(shared.TruncateToDate(b)).Hours() / 24)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
