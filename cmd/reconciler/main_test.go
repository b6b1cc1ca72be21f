package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	appreconciliation "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/erp/reconciler/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	marchStatementID = "7b0c5a62-3f7e-4d33-9a57-0c6f1f1c2a10"
	marchLine3       = "a1000000-0000-4000-8000-000000000003"
	marchTxn3        = "b2000000-0000-4000-8000-000000000003"
)

func newMemoryApp(t *testing.T) *app {
	t.Helper()
	store := memory.NewStore()
	return &app{
		log: zap.NewNop(),
		importer: importer{
			accounts:     store.Accounts(),
			statements:   store.Statements(),
			transactions: store.Transactions(),
		},
		service: appreconciliation.NewService(appreconciliation.Repositories{
			Accounts:        store.Accounts(),
			Statements:      store.Statements(),
			Transactions:    store.Transactions(),
			Matches:         store.Matches(),
			Reconciliations: store.Reconciliations(),
			UnitOfWork:      store.UnitOfWork(),
		}),
	}
}

func TestFixture_ToDomain(t *testing.T) {
	f, err := readFixture(filepath.Join("testdata", "march.json"))
	require.NoError(t, err)

	ds, err := f.toDomain()
	require.NoError(t, err)

	require.Len(t, ds.Accounts, 1)
	assert.Equal(t, valueobject.Currency("USD"), ds.Accounts[0].Currency)
	assert.True(t, ds.Accounts[0].IsActive)

	require.Len(t, ds.Statements, 1)
	stmt := ds.Statements[0]
	assert.Equal(t, marchStatementID, stmt.ID.String())
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), stmt.PeriodStart)
	require.Len(t, stmt.Lines, 3)
	for _, line := range stmt.Lines {
		assert.Equal(t, stmt.ID, line.StatementID)
		assert.Equal(t, reconciliation.LineStatusUnmatched, line.Status)
	}
	assert.Equal(t, "-89.90", stmt.Lines[1].Amount.StringFixed(2))

	require.Len(t, ds.Transactions, 3)
	assert.Equal(t, marchTxn3, ds.Transactions[2].ID.String())
	assert.Equal(t, time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC), ds.Transactions[2].TransactionDate)
}

func TestFixture_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad date", `{"statements":[{"account_id":"3f2a9c1e-5b7d-4e8f-9a0b-1c2d3e4f5a60","period_start":"03/01/2025"}]}`},
		{"bad currency", `{"accounts":[{"bank_code":"X","account_number":"1","currency":"DOLLARS"}]}`},
		{"empty bank code", `{"accounts":[{"account_number":"1"}]}`},
		{"statement without account", `{"statements":[{"period_start":"2025-03-01","period_end":"2025-03-31"}]}`},
		{"transaction without account", `{"transactions":[{"amount":"1.00","date":"2025-03-01"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fixture.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			f, err := readFixture(path)
			if err == nil {
				_, err = f.toDomain()
			}
			assert.Error(t, err)
		})
	}
}

func TestDispatch_LoadRunMatchUndo(t *testing.T) {
	ctx := context.Background()
	a := newMemoryApp(t)

	out, err := a.dispatch(ctx, []string{"load", filepath.Join("testdata", "march.json")}, false)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = a.dispatch(ctx, []string{"run", marchStatementID}, false)
	require.NoError(t, err)
	run, ok := out.(*appreconciliation.ReconciliationResponse)
	require.True(t, ok)
	assert.Equal(t, 2, run.Summary.AutoMatched)
	assert.Equal(t, 1, run.Summary.Unmatched)

	out, err = a.dispatch(ctx, []string{"show", run.ID.String()}, false)
	require.NoError(t, err)
	assert.Equal(t, run.ID, out.(*appreconciliation.ReconciliationResponse).ID)

	out, err = a.dispatch(ctx, []string{"match", marchLine3, marchTxn3, "alice", "interest booked as deposit"}, false)
	require.NoError(t, err)
	match := out.(*appreconciliation.MatchResponse)
	assert.Equal(t, "alice", match.CreatedBy)
	assert.True(t, match.Active)

	out, err = a.dispatch(ctx, []string{"matches", marchStatementID}, true)
	require.NoError(t, err)
	assert.Len(t, out.([]appreconciliation.MatchResponse), 3)

	out, err = a.dispatch(ctx, []string{"undo", match.ID.String(), "bob"}, false)
	require.NoError(t, err)
	assert.False(t, out.(*appreconciliation.MatchResponse).Active)

	out, err = a.dispatch(ctx, []string{"matches", marchStatementID}, true)
	require.NoError(t, err)
	assert.Len(t, out.([]appreconciliation.MatchResponse), 2)

	out, err = a.dispatch(ctx, []string{"matches", marchStatementID}, false)
	require.NoError(t, err)
	assert.Len(t, out.([]appreconciliation.MatchResponse), 3)

	out, err = a.dispatch(ctx, []string{"suggest", marchLine3}, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDispatch_Errors(t *testing.T) {
	ctx := context.Background()
	a := newMemoryApp(t)

	tests := []struct {
		name string
		args []string
	}{
		{"run without id", []string{"run"}},
		{"match missing user", []string{"match", uuid.NewString(), uuid.NewString()}},
		{"undo missing user", []string{"undo", uuid.NewString()}},
		{"show bad id", []string{"show", "nope"}},
		{"unknown statement", []string{"run", uuid.NewString()}},
		{"load missing file", []string{"load", filepath.Join("testdata", "missing.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.dispatch(ctx, tt.args, false)
			assert.Error(t, err)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	a := newMemoryApp(t)
	require.NoError(t, writeJSON(&buf, a.service.DefaultSettings()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1", decoded["amount_tolerance"])
	assert.Equal(t, true, decoded["use_automatic_matching"])
}
