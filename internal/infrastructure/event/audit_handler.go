package event

import (
	"context"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes an audit line for every reconciliation event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler
func NewAuditLogHandler(l *zap.Logger) *AuditLogHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogHandler{logger: l.Named("audit")}
}

// EventTypes implements shared.EventHandler
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		reconciliation.EventTypeReconciliationCompleted,
		reconciliation.EventTypeMatchCreated,
		reconciliation.EventTypeMatchRevoked,
	}
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := logger.WithLogger(ctx, h.logger).With(
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.Time("occurred_at", event.OccurredAt()),
	)

	switch e := event.(type) {
	case *reconciliation.ReconciliationCompletedEvent:
		fields := []zap.Field{
			zap.String("reconciliation_id", e.ReconciliationID.String()),
			zap.String("statement_id", e.StatementID.String()),
			zap.String("account_id", e.AccountID.String()),
			zap.Int("auto_matched", e.AutoMatched),
			zap.Int("needs_review", e.NeedsReview),
			zap.Int("unmatched", e.Unmatched),
			zap.Int("discrepancies", e.Discrepancies),
			zap.String("residual_difference", e.ResidualDifference.String()),
		}
		if e.SupersedesID != nil {
			fields = append(fields, zap.String("supersedes_id", e.SupersedesID.String()))
		}
		log.Info("Reconciliation completed", fields...)
	case *reconciliation.MatchCreatedEvent:
		log.Info("Match created",
			zap.String("match_id", e.MatchID.String()),
			zap.String("line_id", e.LineID.String()),
			zap.String("transaction_id", e.TransactionID.String()),
			zap.String("match_type", string(e.MatchType)),
			zap.Float64("confidence", e.Confidence),
			zap.String("amount_delta", e.AmountDelta.String()),
			zap.String("created_by", e.CreatedBy),
			zap.String("reason", e.Reason),
		)
	case *reconciliation.MatchRevokedEvent:
		log.Info("Match revoked",
			zap.String("match_id", e.MatchID.String()),
			zap.String("line_id", e.LineID.String()),
			zap.String("transaction_id", e.TransactionID.String()),
			zap.String("revoked_by", e.RevokedBy),
		)
	default:
		log.Debug("Unhandled event")
	}
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
