package reconciliation

import (
	"context"
	"time"
)

// Metric outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeNoop     = "noop"
)

// Metrics records service outcomes. telemetry.ReconciliationMetrics
// implements it.
type Metrics interface {
	RecordSession(ctx context.Context, outcome string, d time.Duration)
	RecordDecisions(ctx context.Context, decision string, n int)
	RecordMatch(ctx context.Context, matchType string, confidence float64)
	RecordDiscrepancies(ctx context.Context, category string, n int)
	RecordManualMatch(ctx context.Context, outcome string)
	RecordUndo(ctx context.Context, outcome string)
	RecordConflict(ctx context.Context, operation string)
	RecordSuggestionLookup(ctx context.Context, cacheHit bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordSession(context.Context, string, time.Duration) {}
func (nopMetrics) RecordDecisions(context.Context, string, int) {}
func (nopMetrics) RecordMatch(context.Context, string, float64) {}
func (nopMetrics) RecordDiscrepancies(context.Context, string, int) {}
func (nopMetrics) RecordManualMatch(context.Context, string) {}
func (nopMetrics) RecordUndo(context.Context, string) {}
func (nopMetrics) RecordConflict(context.Context, string) {}
func (nopMetrics) RecordSuggestionLookup(context.Context, bool) {}
