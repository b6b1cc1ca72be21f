package event

import (
	"context"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogHandler(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	h := NewAuditLogHandler(zap.New(core))
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(h)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	match := &reconciliation.ReconciliationMatch{
		ID:            uuid.New(),
		StatementID:   uuid.New(),
		AccountID:     uuid.New(),
		LineID:        uuid.New(),
		TransactionID: uuid.New(),
		Confidence:    0.64,
		MatchType:     reconciliation.MatchTypeManual,
		AmountDelta:   decimal.RequireFromString("-0.25"),
		CreatedBy:     "alice",
		CreatedAt:     at,
		Reason:        "bank fee netted",
	}
	require.NoError(t, bus.Publish(context.Background(), reconciliation.NewMatchCreatedEvent(match)))

	revokedAt := at.Add(time.Hour)
	match.RevokedAt = &revokedAt
	match.RevokedBy = "bob"
	require.NoError(t, bus.Publish(context.Background(), reconciliation.NewMatchRevokedEvent(match)))

	entries := recorded.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "Match created", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "alice", fields["created_by"])
	assert.Equal(t, "MANUAL", fields["match_type"])
	assert.Equal(t, "-0.25", fields["amount_delta"])
	assert.Equal(t, "audit", entries[0].LoggerName)

	assert.Equal(t, "Match revoked", entries[1].Message)
	assert.Equal(t, "bob", entries[1].ContextMap()["revoked_by"])
	assert.Equal(t, match.ID.String(), entries[1].ContextMap()["match_id"])
}

func TestAuditLogHandler_EventTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{
		reconciliation.EventTypeReconciliationCompleted,
		reconciliation.EventTypeMatchCreated,
		reconciliation.EventTypeMatchRevoked,
	}, NewAuditLogHandler(nil).EventTypes())
}
