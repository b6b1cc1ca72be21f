// Package memory provides a process-local implementation of every
// reconciliation repository port. It applies the same version checks as the
// SQL unit of work and is used by tests and the single-shot CLI mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// Store holds accounts, statements, transactions, matches and runs in memory.
// All reads return copies; callers never share state with the store.
type Store struct {
	mu              sync.RWMutex
	accounts        map[uuid.UUID]reconciliation.BankAccountConfig
	statements      map[uuid.UUID]statementRow
	lines           map[uuid.UUID]reconciliation.BankStatementLine
	transactions    map[uuid.UUID]reconciliation.InternalTransaction
	matches         map[uuid.UUID]reconciliation.ReconciliationMatch
	matchOrder      []uuid.UUID
	reconciliations map[uuid.UUID]*reconciliation.Reconciliation
	recOrder        []uuid.UUID
}

// statementRow is a statement header plus its line IDs in sequence order
type statementRow struct {
	header  reconciliation.BankStatement
	lineIDs []uuid.UUID
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		accounts:        make(map[uuid.UUID]reconciliation.BankAccountConfig),
		statements:      make(map[uuid.UUID]statementRow),
		lines:           make(map[uuid.UUID]reconciliation.BankStatementLine),
		transactions:    make(map[uuid.UUID]reconciliation.InternalTransaction),
		matches:         make(map[uuid.UUID]reconciliation.ReconciliationMatch),
		reconciliations: make(map[uuid.UUID]*reconciliation.Reconciliation),
	}
}

// Accounts returns the store as an AccountRepository
func (s *Store) Accounts() reconciliation.AccountRepository { return accountRepo{s} }

// Statements returns the store as a StatementRepository
func (s *Store) Statements() reconciliation.StatementRepository { return statementRepo{s} }

// Transactions returns the store as a TransactionRepository
func (s *Store) Transactions() reconciliation.TransactionRepository { return transactionRepo{s} }

// Matches returns the store as a MatchRepository
func (s *Store) Matches() reconciliation.MatchRepository { return matchRepo{s} }

// Reconciliations returns the store as a ReconciliationRepository
func (s *Store) Reconciliations() reconciliation.ReconciliationRepository { return reconciliationRepo{s} }

// UnitOfWork returns the store as a UnitOfWork
func (s *Store) UnitOfWork() reconciliation.UnitOfWork { return unitOfWork{s} }

type accountRepo struct{ s *Store }

func (r accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.BankAccountConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("bank account %s not found", id))
	}
	return &a, nil
}

func (r accountRepo) Save(ctx context.Context, account *reconciliation.BankAccountConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[account.ID] = *account
	return nil
}

type statementRepo struct{ s *Store }

func (r statementRepo) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.BankStatement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.statements[id]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("bank statement %s not found", id))
	}
	return r.s.loadStatement(row), nil
}

func (r statementRepo) FindLineByID(ctx context.Context, lineID uuid.UUID) (*reconciliation.BankStatementLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.lines[lineID]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("statement line %s not found", lineID))
	}
	return &l, nil
}

func (r statementRepo) Save(ctx context.Context, statement *reconciliation.BankStatement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.statements[statement.ID]; exists {
		return shared.NewConflictError(fmt.Sprintf("bank statement %s already exists", statement.ID))
	}
	header := *statement
	header.Lines = nil
	header.ClearDomainEvents()
	row := statementRow{header: header, lineIDs: make([]uuid.UUID, 0, len(statement.Lines))}
	for _, l := range statement.Lines {
		row.lineIDs = append(row.lineIDs, l.ID)
		r.s.lines[l.ID] = *l
	}
	r.s.statements[statement.ID] = row
	return nil
}

func (s *Store) loadStatement(row statementRow) *reconciliation.BankStatement {
	stmt := row.header
	stmt.Lines = make([]*reconciliation.BankStatementLine, 0, len(row.lineIDs))
	for _, id := range row.lineIDs {
		l := s.lines[id]
		stmt.Lines = append(stmt.Lines, &l)
	}
	return &stmt
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.InternalTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("transaction %s not found", id))
	}
	return &t, nil
}

func (r transactionRepo) FindUnreconciled(ctx context.Context, accountID uuid.UUID, window shared.DateWindow) ([]*reconciliation.InternalTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*reconciliation.InternalTransaction
	for _, t := range r.s.transactions {
		if t.AccountID != accountID || t.IsReconciled || !window.Contains(t.TransactionDate) {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r transactionRepo) Save(ctx context.Context, txn *reconciliation.InternalTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transactions[txn.ID] = *txn
	return nil
}

type matchRepo struct{ s *Store }

func (r matchRepo) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("match %s not found", id))
	}
	return &m, nil
}

func (r matchRepo) FindActiveByLine(ctx context.Context, lineID uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.activeMatch(func(m reconciliation.ReconciliationMatch) bool { return m.LineID == lineID }), nil
}

func (r matchRepo) FindActiveByTransaction(ctx context.Context, txnID uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.activeMatch(func(m reconciliation.ReconciliationMatch) bool { return m.TransactionID == txnID }), nil
}

func (s *Store) activeMatch(pred func(reconciliation.ReconciliationMatch) bool) *reconciliation.ReconciliationMatch {
	for _, id := range s.matchOrder {
		m := s.matches[id]
		if m.IsActive() && pred(m) {
			return &m
		}
	}
	return nil
}

func (r matchRepo) FindByStatement(ctx context.Context, statementID uuid.UUID) ([]reconciliation.ReconciliationMatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]reconciliation.ReconciliationMatch, 0)
	for _, id := range r.s.matchOrder {
		if m := r.s.matches[id]; m.StatementID == statementID {
			out = append(out, m)
		}
	}
	return out, nil
}

type reconciliationRepo struct{ s *Store }

func (r reconciliationRepo) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Reconciliation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.reconciliations[id]
	if !ok {
		return nil, shared.NewNotFoundError(fmt.Sprintf("reconciliation %s not found", id))
	}
	return r.s.cloneReconciliation(rec), nil
}

func (r reconciliationRepo) FindLatestByStatement(ctx context.Context, statementID uuid.UUID) (*reconciliation.Reconciliation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.recOrder) - 1; i >= 0; i-- {
		if rec := r.s.reconciliations[r.s.recOrder[i]]; rec.StatementID == statementID {
			return r.s.cloneReconciliation(rec), nil
		}
	}
	return nil, nil
}

// cloneReconciliation copies a run and refreshes its matches from the
// match history so revocations made after the run are visible
func (s *Store) cloneReconciliation(rec *reconciliation.Reconciliation) *reconciliation.Reconciliation {
	c := &reconciliation.Reconciliation{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: rec.BaseEntity, Version: rec.Version},
		StatementID:       rec.StatementID,
		AccountID:         rec.AccountID,
		SupersedesID:      rec.SupersedesID,
		Settings:          rec.Settings,
		Status:            rec.Status,
		Matches:           append([]reconciliation.ReconciliationMatch(nil), rec.Matches...),
		Discrepancies:     append([]reconciliation.ReconciliationDiscrepancy(nil), rec.Discrepancies...),
		Summary:           rec.Summary,
		StartedAt:         rec.StartedAt,
		FinalizedAt:       rec.FinalizedAt,
	}
	for i, m := range c.Matches {
		if current, ok := s.matches[m.ID]; ok {
			c.Matches[i] = current
		}
	}
	c.RestoreIndex()
	return c
}
