package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CreateManualMatch pairs a line with a transaction on an operator's behalf.
// State is re-read at call time; either side being claimed already, now or
// by a concurrent writer, yields CONCURRENCY_CONFLICT.
func (s *Service) CreateManualMatch(ctx context.Context, cmd CreateManualMatchCommand) (*MatchResponse, error) {
	if err := s.validateCommand(cmd); err != nil {
		s.metrics.RecordManualMatch(ctx, OutcomeRejected)
		return nil, err
	}
	ctx = logger.WithUserID(ctx, cmd.UserID)
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "manual_match",
		telemetry.WithAttribute(telemetry.SpanAttrLineID, cmd.LineID),
		telemetry.WithAttribute(telemetry.SpanAttrTransactionID, cmd.TransactionID),
	)
	defer span.End()

	resp, err := s.createManualMatch(ctx, cmd)
	s.metrics.RecordManualMatch(ctx, outcomeOf(err))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrMatchID, resp.ID.String())
	telemetry.SetOK(span)
	return resp, nil
}

func (s *Service) createManualMatch(ctx context.Context, cmd CreateManualMatchCommand) (*MatchResponse, error) {
	lineID, txnID := mustParseID(cmd.LineID), mustParseID(cmd.TransactionID)

	stmt, line, err := s.loadStatementLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	txn, err := s.transactions.FindByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByID(ctx, stmt.AccountID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAccountID(ctx, account.ID.String())

	activeLine, err := s.matches.FindActiveByLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	activeTxn, err := s.matches.FindActiveByTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.manual.Create(reconciliation.ManualMatchRequest{
		Account:                account,
		Statement:              stmt,
		Line:                   line,
		Transaction:            txn,
		ActiveLineMatch:        activeLine,
		ActiveTransactionMatch: activeTxn,
		UserID:                 cmd.UserID,
		Reason:                 cmd.Reason,
		Settings:               s.defaults,
		Now:                    s.now(),
	})
	if err != nil {
		if shared.IsConflict(err) {
			s.conflict(ctx, "manual_match", err)
		}
		return nil, err
	}

	if err := s.uow.SaveManualMatch(ctx, outcome); err != nil {
		if shared.IsConflict(err) {
			s.conflict(ctx, "manual_match", err)
			return nil, err
		}
		return nil, fmt.Errorf("persist manual match: %w", err)
	}

	s.publishEvents(ctx, outcome.Events...)
	s.invalidateSuggestions(ctx, account.ID)
	s.metrics.RecordMatch(ctx, outcome.Match.MatchType.String(), outcome.Match.Confidence)

	s.log(ctx).Info("Manual match created",
		zap.String("match_id", outcome.Match.ID.String()),
		zap.String("line_id", lineID.String()),
		zap.String("transaction_id", txnID.String()),
		zap.Float64("confidence", outcome.Match.Confidence),
		zap.String("statement_status", string(stmt.Status)),
	)

	resp := ToMatchResponse(outcome.Match)
	return &resp, nil
}

// UndoMatch revokes a match and returns both sides to unreconciled. The
// match record is kept with its revocation marker. Undoing a revoked match
// returns it unchanged.
func (s *Service) UndoMatch(ctx context.Context, cmd UndoMatchCommand) (*MatchResponse, error) {
	if err := s.validateCommand(cmd); err != nil {
		s.metrics.RecordUndo(ctx, OutcomeRejected)
		return nil, err
	}
	ctx = logger.WithUserID(ctx, cmd.UserID)
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "undo",
		telemetry.WithAttribute(telemetry.SpanAttrMatchID, cmd.MatchID),
	)
	defer span.End()

	resp, changed, err := s.undoMatch(ctx, cmd)
	switch {
	case err != nil:
		s.metrics.RecordUndo(ctx, outcomeOf(err))
		telemetry.RecordError(span, err)
		return nil, err
	case !changed:
		s.metrics.RecordUndo(ctx, OutcomeNoop)
	default:
		s.metrics.RecordUndo(ctx, OutcomeSuccess)
	}
	telemetry.SetOK(span)
	return resp, nil
}

func (s *Service) undoMatch(ctx context.Context, cmd UndoMatchCommand) (*MatchResponse, bool, error) {
	matchID := mustParseID(cmd.MatchID)
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	if !match.IsActive() {
		resp := ToMatchResponse(match)
		return &resp, false, nil
	}
	ctx = logger.WithAccountID(ctx, match.AccountID.String())

	stmt, err := s.statements.FindByID(ctx, match.StatementID)
	if err != nil {
		return nil, false, err
	}
	line, ok := stmt.Line(match.LineID)
	if !ok {
		return nil, false, shared.NewNotFoundError(fmt.Sprintf("statement line %s not found", match.LineID))
	}
	txn, err := s.transactions.FindByID(ctx, match.TransactionID)
	if err != nil {
		return nil, false, err
	}

	outcome, err := s.undo.Undo(reconciliation.UndoRequest{
		Match:       match,
		Statement:   stmt,
		Line:        line,
		Transaction: txn,
		UserID:      cmd.UserID,
		Now:         s.now(),
	})
	if err != nil {
		return nil, false, err
	}

	if err := s.uow.SaveUndo(ctx, outcome); err != nil {
		if !shared.IsConflict(err) {
			return nil, false, fmt.Errorf("persist undo: %w", err)
		}
		// A concurrent undo of the same match leaves nothing to do
		current, findErr := s.matches.FindByID(ctx, matchID)
		if findErr == nil && !current.IsActive() {
			resp := ToMatchResponse(current)
			return &resp, false, nil
		}
		s.conflict(ctx, "undo", err)
		return nil, false, err
	}

	s.publishEvents(ctx, outcome.Events...)
	s.invalidateSuggestions(ctx, match.AccountID)

	s.log(ctx).Info("Match revoked",
		zap.String("match_id", matchID.String()),
		zap.String("line_id", match.LineID.String()),
		zap.String("transaction_id", match.TransactionID.String()),
		zap.String("match_type", match.MatchType.String()),
	)

	resp := ToMatchResponse(outcome.Match)
	return &resp, outcome.Changed, nil
}
