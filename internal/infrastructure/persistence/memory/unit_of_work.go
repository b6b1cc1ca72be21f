package memory

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
)

type unitOfWork struct{ s *Store }

// SaveSession checks every touched row against its stored version before
// applying anything, so a failed batch leaves the store unchanged
func (u unitOfWork) SaveSession(ctx context.Context, result *reconciliation.SessionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStatement(result.Statement); err != nil {
		return err
	}
	for _, l := range result.UpdatedLines {
		if err := s.checkLine(l); err != nil {
			return err
		}
	}
	for _, t := range result.ClaimedTransactions {
		if err := s.checkClaim(t); err != nil {
			return err
		}
	}
	rec := result.Reconciliation
	for _, m := range rec.ActiveMatches() {
		if err := s.checkFree(m); err != nil {
			return err
		}
	}

	s.applyStatement(result.Statement)
	for _, l := range result.UpdatedLines {
		s.applyLine(l)
	}
	for _, t := range result.ClaimedTransactions {
		s.applyTransaction(t)
	}
	for _, m := range rec.Matches {
		s.insertMatch(m)
	}
	stored := s.cloneReconciliation(rec)
	s.reconciliations[rec.ID] = stored
	s.recOrder = append(s.recOrder, rec.ID)
	return nil
}

// SaveManualMatch writes a manual match and claims both sides
func (u unitOfWork) SaveManualMatch(ctx context.Context, outcome *reconciliation.ManualMatchOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStatement(outcome.Statement); err != nil {
		return err
	}
	if err := s.checkLine(outcome.Line); err != nil {
		return err
	}
	if err := s.checkClaim(outcome.Transaction); err != nil {
		return err
	}
	if err := s.checkFree(*outcome.Match); err != nil {
		return err
	}

	s.applyStatement(outcome.Statement)
	s.applyLine(outcome.Line)
	s.applyTransaction(outcome.Transaction)
	s.insertMatch(*outcome.Match)
	return nil
}

// SaveUndo writes the revocation and releases both sides.
// An outcome that changed nothing is not written.
func (u unitOfWork) SaveUndo(ctx context.Context, outcome *reconciliation.UndoOutcome) error {
	if !outcome.Changed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	m := outcome.Match
	stored, ok := s.matches[m.ID]
	if !ok {
		return shared.NewNotFoundError(fmt.Sprintf("match %s not found", m.ID))
	}
	if !stored.IsActive() || stored.Version != m.Version {
		return shared.NewConflictError(fmt.Sprintf("match %s was modified by another process", m.ID))
	}
	if outcome.Statement != nil {
		if err := s.checkStatement(outcome.Statement); err != nil {
			return err
		}
	}
	if err := s.checkLine(outcome.Line); err != nil {
		return err
	}
	if err := s.checkTransaction(outcome.Transaction); err != nil {
		return err
	}

	m.Version++
	s.matches[m.ID] = *m
	if outcome.Statement != nil {
		s.applyStatement(outcome.Statement)
	}
	s.applyLine(outcome.Line)
	s.applyTransaction(outcome.Transaction)
	return nil
}

func (s *Store) checkStatement(stmt *reconciliation.BankStatement) error {
	row, ok := s.statements[stmt.ID]
	if !ok {
		return shared.NewNotFoundError(fmt.Sprintf("bank statement %s not found", stmt.ID))
	}
	if row.header.Version != stmt.Version {
		return shared.NewConflictError(fmt.Sprintf("bank statement %s was modified by another process", stmt.ID))
	}
	return nil
}

func (s *Store) checkLine(l *reconciliation.BankStatementLine) error {
	stored, ok := s.lines[l.ID]
	if !ok {
		return shared.NewNotFoundError(fmt.Sprintf("statement line %s not found", l.ID))
	}
	if stored.Version != l.Version {
		return shared.NewConflictError(fmt.Sprintf("statement line %s was modified by another process", l.ID))
	}
	return nil
}

func (s *Store) checkTransaction(t *reconciliation.InternalTransaction) error {
	stored, ok := s.transactions[t.ID]
	if !ok {
		return shared.NewNotFoundError(fmt.Sprintf("transaction %s not found", t.ID))
	}
	if stored.Version != t.Version {
		return shared.NewConflictError(fmt.Sprintf("transaction %s was modified by another process", t.ID))
	}
	return nil
}

func (s *Store) checkClaim(t *reconciliation.InternalTransaction) error {
	if err := s.checkTransaction(t); err != nil {
		return err
	}
	if s.transactions[t.ID].IsReconciled {
		return shared.NewConflictError(fmt.Sprintf("transaction %s is already reconciled", t.ID))
	}
	return nil
}

// checkFree enforces that no other active match holds either side
func (s *Store) checkFree(m reconciliation.ReconciliationMatch) error {
	if other := s.activeMatch(func(x reconciliation.ReconciliationMatch) bool {
		return x.ID != m.ID && (x.LineID == m.LineID || x.TransactionID == m.TransactionID)
	}); other != nil {
		return shared.NewConflictError(fmt.Sprintf("match %s already holds the line or transaction", other.ID))
	}
	return nil
}

func (s *Store) applyStatement(stmt *reconciliation.BankStatement) {
	row := s.statements[stmt.ID]
	stmt.Version++
	row.header.Status = stmt.Status
	row.header.Version = stmt.Version
	s.statements[stmt.ID] = row
}

func (s *Store) applyLine(l *reconciliation.BankStatementLine) {
	l.Version++
	s.lines[l.ID] = *l
}

func (s *Store) applyTransaction(t *reconciliation.InternalTransaction) {
	t.Version++
	s.transactions[t.ID] = *t
}

func (s *Store) insertMatch(m reconciliation.ReconciliationMatch) {
	if _, exists := s.matches[m.ID]; !exists {
		s.matchOrder = append(s.matchOrder, m.ID)
	}
	s.matches[m.ID] = m
}

// Seed loads fixtures in one call. Statements that already exist are skipped.
func (s *Store) Seed(ctx context.Context, accounts []*reconciliation.BankAccountConfig, statements []*reconciliation.BankStatement, txns []*reconciliation.InternalTransaction) error {
	for _, a := range accounts {
		if err := s.Accounts().Save(ctx, a); err != nil {
			return err
		}
	}
	for _, st := range statements {
		if err := s.Statements().Save(ctx, st); err != nil && !shared.IsConflict(err) {
			return err
		}
	}
	for _, t := range txns {
		if err := s.Transactions().Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
