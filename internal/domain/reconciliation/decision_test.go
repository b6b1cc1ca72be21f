package reconciliation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDecisionEngine_Decide(t *testing.T) {
	acc := newTestAccount(t)

	t.Run("exact pair is auto matched", func(t *testing.T) {
		line := newLine(1, "1250.00", day(2025, 3, 10), "INV-4471")
		txn := newTxn(acc, "1250.00", day(2025, 3, 10), "INV-4471")

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, []*InternalTransaction{txn}), DefaultSettings())

		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, DecisionAutoMatched, out[0].Decision)
		require.NotNil(t, out[0].Match)
		assert.Equal(t, txn.ID, out[0].Match.Transaction.ID)
		assert.Equal(t, MatchTypeExact, out[0].Match.MatchType)
		assert.Empty(t, out[0].Suggestions)
	})

	t.Run("candidate below threshold needs review", func(t *testing.T) {
		line := newLine(1, "100.00", day(2025, 3, 10), "")
		txn := newTxn(acc, "98.00", day(2025, 3, 12), "")

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, []*InternalTransaction{txn}), fuzzySettings())

		require.NoError(t, err)
		assert.Equal(t, DecisionNeedsReview, out[0].Decision)
		assert.Nil(t, out[0].Match)
		require.Len(t, out[0].Suggestions, 1)
		assert.Equal(t, txn.ID, out[0].Suggestions[0].TransactionID)
		assert.Equal(t, MatchTypeManualOnly, out[0].Suggestions[0].MatchType)
		assert.Equal(t, 1, out[0].Suggestions[0].Rank)
	})

	t.Run("no candidates is unmatched", func(t *testing.T) {
		line := newLine(1, "100.00", day(2025, 3, 10), "")

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, nil), DefaultSettings())

		require.NoError(t, err)
		assert.Equal(t, DecisionUnmatched, out[0].Decision)
		assert.Equal(t, 0, out[0].CandidateCount)
	})

	t.Run("contested loser without alternatives is unmatched", func(t *testing.T) {
		txn := newTxn(acc, "100.00", day(2025, 3, 10), "INV-1")
		winner := newLine(1, "100.00", day(2025, 3, 10), "INV-1")
		loser := newLine(2, "100.00", day(2025, 3, 11), "INV-1")

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{winner, loser}, NewTransactionPool(acc.ID, []*InternalTransaction{txn}), fuzzySettings())

		require.NoError(t, err)
		assert.Equal(t, DecisionAutoMatched, out[0].Decision)
		assert.Equal(t, DecisionUnmatched, out[1].Decision)
		assert.Equal(t, 1, out[1].CandidateCount)
		assert.Empty(t, out[1].Suggestions)
	})

	t.Run("manual approval turns matches into review", func(t *testing.T) {
		line := newLine(1, "1250.00", day(2025, 3, 10), "INV-4471")
		proposed := newTxn(acc, "1250.00", day(2025, 3, 10), "INV-4471")
		other := newTxn(acc, "1249.00", day(2025, 3, 11), "")
		s := fuzzySettings()
		s.RequireManualApproval = true

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, []*InternalTransaction{other, proposed}), s)

		require.NoError(t, err)
		assert.Equal(t, DecisionNeedsReview, out[0].Decision)
		assert.Nil(t, out[0].Match)
		require.Len(t, out[0].Suggestions, 2)
		assert.Equal(t, proposed.ID, out[0].Suggestions[0].TransactionID)
		assert.Equal(t, MatchTypeExact, out[0].Suggestions[0].MatchType)
	})

	t.Run("automatic matching off leaves lines unmatched with suggestions", func(t *testing.T) {
		line := newLine(1, "1250.00", day(2025, 3, 10), "INV-4471")
		txn := newTxn(acc, "1250.00", day(2025, 3, 10), "INV-4471")
		s := DefaultSettings()
		s.UseAutomaticMatching = false

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, []*InternalTransaction{txn}), s)

		require.NoError(t, err)
		assert.Equal(t, DecisionUnmatched, out[0].Decision)
		require.Len(t, out[0].Suggestions, 1)
		assert.Equal(t, txn.ID, out[0].Suggestions[0].TransactionID)
	})

	t.Run("suggestions are capped at the limit", func(t *testing.T) {
		line := newLine(1, "100.00", day(2025, 3, 10), "")
		var txns []*InternalTransaction
		for i := 0; i < 5; i++ {
			txns = append(txns, newTxn(acc, fmt.Sprintf("9%d.00", 5+i), day(2025, 3, 10), ""))
		}
		s := fuzzySettings()
		s.MinimumConfidenceScore = 1

		out, err := NewMatchDecisionEngine().Decide([]*BankStatementLine{line}, NewTransactionPool(acc.ID, txns), s)

		require.NoError(t, err)
		require.Len(t, out[0].Suggestions, DefaultSuggestionLimit)
		for i, sug := range out[0].Suggestions {
			assert.Equal(t, i+1, sug.Rank)
		}
		assert.GreaterOrEqual(t, out[0].Suggestions[0].Confidence, out[0].Suggestions[1].Confidence)
	})
}

func TestMatchDecisionEngine_ParallelMatchesSequential(t *testing.T) {
	acc := newTestAccount(t)
	var lines []*BankStatementLine
	var txns []*InternalTransaction
	for i := 0; i < 120; i++ {
		amount := fmt.Sprintf("%d.%02d", 100+i%17, i%100)
		lines = append(lines, newLine(i+1, amount, day(2025, 3, 1+i%28), fmt.Sprintf("REF-%d", i%40)))
		txns = append(txns, newTxn(acc, amount, day(2025, 3, 1+(i+1)%28), fmt.Sprintf("REF-%d", i%40)))
	}
	settings := fuzzySettings()
	pool := NewTransactionPool(acc.ID, txns)

	sequential, err := NewMatchDecisionEngine(WithParallelism(1000, 1)).Decide(lines, pool, settings)
	require.NoError(t, err)
	parallel, err := NewMatchDecisionEngine(WithParallelism(1, 8)).Decide(lines, pool, settings)
	require.NoError(t, err)

	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		assert.Equal(t, sequential[i].Decision, parallel[i].Decision, "line %d", i)
		if sequential[i].Match != nil {
			require.NotNil(t, parallel[i].Match)
			assert.Equal(t, sequential[i].Match.Transaction.ID, parallel[i].Match.Transaction.ID)
		}
		assert.Equal(t, sequential[i].Suggestions, parallel[i].Suggestions)
	}
}

func TestMatchDecisionEngine_Suggest(t *testing.T) {
	acc := newTestAccount(t)
	line := newLine(1, "1250.00", day(2025, 3, 10), "INV-4471")
	exact := newTxn(acc, "1250.00", day(2025, 3, 10), "INV-4471")
	near := newTxn(acc, "1248.50", day(2025, 3, 12), "INV-4471")
	far := newTxn(acc, "-1250.00", day(2025, 3, 10), "INV-4471")

	got := NewMatchDecisionEngine().Suggest(line, NewTransactionPool(acc.ID, []*InternalTransaction{near, far, exact}), fuzzySettings())

	require.Len(t, got, 2)
	assert.Equal(t, exact.ID, got[0].TransactionID)
	assert.Equal(t, near.ID, got[1].TransactionID)
	assert.Equal(t, line.ID, got[0].LineID)
	assert.Equal(t, LineStatusUnmatched, line.Status)
	assert.False(t, exact.IsReconciled)
}
