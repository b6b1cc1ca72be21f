package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ReconciliationMetrics records matching engine instruments.
type ReconciliationMetrics struct {
	sessionsTotal     *Counter
	sessionDuration   *Histogram
	lineDecisions     *Counter
	matchesCreated    *Counter
	matchConfidence   *Histogram
	discrepancies     *Counter
	manualMatches     *Counter
	undos             *Counter
	conflicts         *Counter
	suggestionLookups *Counter
}

// NewReconciliationMetrics registers all instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	m := &ReconciliationMetrics{}
	var err error

	if m.sessionsTotal, err = NewCounter(meter,
		"reconciliation_sessions_total", "Reconciliation sessions by outcome", "{session}"); err != nil {
		return nil, err
	}
	if m.sessionDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "reconciliation_session_duration_seconds",
		Description: "Wall time of a reconciliation session including persistence",
		Unit:        "s",
		Boundaries:  SessionDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.lineDecisions, err = NewCounter(meter,
		"reconciliation_line_decisions_total", "Statement lines by engine decision", "{line}"); err != nil {
		return nil, err
	}
	if m.matchesCreated, err = NewCounter(meter,
		"reconciliation_matches_created_total", "Matches created by type", "{match}"); err != nil {
		return nil, err
	}
	if m.matchConfidence, err = NewHistogram(meter, HistogramOpts{
		Name:        "reconciliation_match_confidence",
		Description: "Confidence of created matches",
		Unit:        "1",
		Boundaries:  ConfidenceBuckets,
	}); err != nil {
		return nil, err
	}
	if m.discrepancies, err = NewCounter(meter,
		"reconciliation_discrepancies_total", "Discrepancies by category", "{discrepancy}"); err != nil {
		return nil, err
	}
	if m.manualMatches, err = NewCounter(meter,
		"reconciliation_manual_matches_total", "Manual match requests by outcome", "{request}"); err != nil {
		return nil, err
	}
	if m.undos, err = NewCounter(meter,
		"reconciliation_undos_total", "Undo requests by outcome", "{request}"); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter,
		"reconciliation_conflicts_total", "Optimistic concurrency conflicts by operation", "{conflict}"); err != nil {
		return nil, err
	}
	if m.suggestionLookups, err = NewCounter(meter,
		"reconciliation_suggestion_lookups_total", "Suggestion lookups by cache result", "{lookup}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSession records a finished session.
func (m *ReconciliationMetrics) RecordSession(ctx context.Context, outcome string, d time.Duration) {
	m.sessionsTotal.Inc(ctx, AttrOutcome.String(outcome))
	m.sessionDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordDecisions adds n lines that received decision.
func (m *ReconciliationMetrics) RecordDecisions(ctx context.Context, decision string, n int) {
	if n <= 0 {
		return
	}
	m.lineDecisions.Add(ctx, int64(n), AttrDecision.String(decision))
}

// RecordMatch records one created match.
func (m *ReconciliationMetrics) RecordMatch(ctx context.Context, matchType string, confidence float64) {
	m.matchesCreated.Inc(ctx, AttrMatchType.String(matchType))
	m.matchConfidence.Record(ctx, confidence, AttrMatchType.String(matchType))
}

// RecordDiscrepancies adds n discrepancies of category.
func (m *ReconciliationMetrics) RecordDiscrepancies(ctx context.Context, category string, n int) {
	if n <= 0 {
		return
	}
	m.discrepancies.Add(ctx, int64(n), AttrCategory.String(category))
}

// RecordManualMatch records a manual match request.
func (m *ReconciliationMetrics) RecordManualMatch(ctx context.Context, outcome string) {
	m.manualMatches.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordUndo records an undo request.
func (m *ReconciliationMetrics) RecordUndo(ctx context.Context, outcome string) {
	m.undos.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordConflict records a rejected write.
func (m *ReconciliationMetrics) RecordConflict(ctx context.Context, operation string) {
	m.conflicts.Inc(ctx, AttrOperation.String(operation))
}

// RecordSuggestionLookup records a suggestion read.
func (m *ReconciliationMetrics) RecordSuggestionLookup(ctx context.Context, cacheHit bool) {
	m.suggestionLookups.Inc(ctx, AttrCacheHit.Bool(cacheHit))
}
