package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SuggestMatches returns the top-ranked free candidates for an open line.
// It never writes matches. Lines that are already matched get no suggestions.
func (s *Service) SuggestMatches(ctx context.Context, query SuggestMatchesQuery) ([]reconciliation.MatchSuggestion, error) {
	if err := s.validateCommand(query); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "suggest",
		telemetry.WithAttribute(telemetry.SpanAttrLineID, query.LineID),
	)
	defer span.End()

	suggestions, err := s.suggest(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return suggestions, nil
}

func (s *Service) suggest(ctx context.Context, query SuggestMatchesQuery) ([]reconciliation.MatchSuggestion, error) {
	lineID := mustParseID(query.LineID)
	stmt, line, err := s.loadStatementLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if !line.Status.IsOpen() {
		return []reconciliation.MatchSuggestion{}, nil
	}

	cached, ok, err := s.cache.Get(ctx, stmt.AccountID, lineID)
	if err != nil {
		s.log(ctx).Warn("Suggestion cache read failed", zap.String("line_id", lineID.String()), zap.Error(err))
		ok = false
	}
	s.metrics.RecordSuggestionLookup(ctx, ok)
	if ok {
		return cached, nil
	}

	settings := s.defaults
	window := shared.NewDateWindow(line.ValueDate, line.ValueDate).Widen(settings.DateToleranceDays + s.windowPadding)
	txns, err := s.transactions.FindUnreconciled(ctx, stmt.AccountID, window)
	if err != nil {
		return nil, fmt.Errorf("load candidate transactions: %w", err)
	}
	pool := reconciliation.NewTransactionPool(stmt.AccountID, txns)
	suggestions := s.session.Engine().Suggest(line, pool, settings)

	if err := s.cache.Set(ctx, stmt.AccountID, lineID, suggestions); err != nil {
		s.log(ctx).Warn("Failed to cache suggestions", zap.String("line_id", lineID.String()), zap.Error(err))
	}
	return suggestions, nil
}
