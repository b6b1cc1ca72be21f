package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunReconciliation runs the automatic pass over one statement and persists
// the outcome in a single batch. A CONCURRENCY_CONFLICT error means a line
// or transaction changed after it was loaded; nothing was written and the
// call may be retried.
func (s *Service) RunReconciliation(ctx context.Context, cmd RunReconciliationCommand) (*ReconciliationResponse, error) {
	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}
	settings := s.defaults
	if cmd.Settings != nil {
		settings = *cmd.Settings
	}

	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "run",
		telemetry.WithAttribute(telemetry.SpanAttrStatementID, cmd.StatementID),
	)
	defer span.End()

	start := time.Now()
	resp, err := s.runSession(ctx, mustParseID(cmd.StatementID), settings)
	s.metrics.RecordSession(ctx, outcomeOf(err), time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrReconciliationID, resp.ID.String(),
		telemetry.SpanAttrAutoMatched, resp.Summary.AutoMatched,
		telemetry.SpanAttrNeedsReview, resp.Summary.NeedsReview,
		telemetry.SpanAttrUnmatched, resp.Summary.Unmatched,
	)
	telemetry.SetOK(span)
	return resp, nil
}

func (s *Service) runSession(ctx context.Context, statementID uuid.UUID, settings reconciliation.ReconciliationSettings) (*ReconciliationResponse, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	stmt, err := s.statements.FindByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByID(ctx, stmt.AccountID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAccountID(ctx, account.ID.String())

	window := stmt.CandidateWindow(settings.DateToleranceDays, s.windowPadding)
	txns, err := s.transactions.FindUnreconciled(ctx, account.ID, window)
	if err != nil {
		return nil, fmt.Errorf("load candidate transactions: %w", err)
	}
	previous, err := s.reconciliations.FindLatestByStatement(ctx, stmt.ID)
	if err != nil {
		return nil, fmt.Errorf("load previous reconciliation: %w", err)
	}
	var previousID *uuid.UUID
	if previous != nil {
		id := previous.ID
		previousID = &id
	}

	log := s.log(ctx).With(zap.String("statement_id", stmt.ID.String()))
	log.Info("Reconciliation session started",
		zap.Int("open_lines", len(stmt.OpenLines())),
		zap.Int("pool_size", len(txns)),
		zap.Bool("automatic_matching", settings.UseAutomaticMatching),
	)

	var (
		result *reconciliation.SessionResult
		runErr error
	)
	labels := telemetry.OperationLabels("reconcile", map[string]string{
		telemetry.ProfilingLabelStrategy: s.session.Engine().Resolver().Name(),
	})
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		result, runErr = s.session.Run(c, reconciliation.SessionInput{
			Account:      account,
			Statement:    stmt,
			Transactions: txns,
			Settings:     settings,
			PreviousID:   previousID,
			Now:          s.now(),
		})
	})
	if runErr != nil {
		return nil, runErr
	}

	if err := s.uow.SaveSession(ctx, result); err != nil {
		if shared.IsConflict(err) {
			s.conflict(ctx, "session", err)
			return nil, err
		}
		return nil, fmt.Errorf("persist reconciliation: %w", err)
	}

	rec := result.Reconciliation
	s.publishEvents(ctx, rec.GetDomainEvents()...)
	rec.ClearDomainEvents()

	// run suggestions follow the run's settings; the cache only holds
	// SuggestMatches results computed with the defaults
	suggestions := result.Suggestions()
	s.invalidateSuggestions(ctx, account.ID)

	s.recordSessionResult(ctx, result)
	counts := result.CountByDecision()
	log.Info("Reconciliation session finished",
		zap.String("reconciliation_id", rec.ID.String()),
		zap.Int("auto_matched", counts[reconciliation.DecisionAutoMatched]),
		zap.Int("needs_review", counts[reconciliation.DecisionNeedsReview]),
		zap.Int("unmatched", counts[reconciliation.DecisionUnmatched]),
		zap.Int("discrepancies", len(rec.Discrepancies)),
		zap.String("statement_status", string(stmt.Status)),
	)

	resp := ToReconciliationResponse(rec)
	if len(suggestions) > 0 {
		resp.Suggestions = suggestions
	}
	return resp, nil
}

func (s *Service) recordSessionResult(ctx context.Context, result *reconciliation.SessionResult) {
	for decision, n := range result.CountByDecision() {
		s.metrics.RecordDecisions(ctx, decision.String(), n)
	}
	for _, m := range result.Reconciliation.Matches {
		s.metrics.RecordMatch(ctx, m.MatchType.String(), m.Confidence)
	}
	byCategory := make(map[reconciliation.DiscrepancyCategory]int)
	for _, d := range result.Reconciliation.Discrepancies {
		byCategory[d.Category]++
	}
	for category, n := range byCategory {
		s.metrics.RecordDiscrepancies(ctx, string(category), n)
	}
}

// conflict records a rejected write
func (s *Service) conflict(ctx context.Context, operation string, err error) {
	s.metrics.RecordConflict(ctx, operation)
	s.log(ctx).Warn("Concurrent modification rejected",
		zap.String("operation", operation),
		zap.Error(err),
	)
}
