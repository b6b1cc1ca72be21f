package reconciliation

import (
	"context"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountRepository loads bank account configuration
type AccountRepository interface {
	// FindByID finds an account configuration by ID
	FindByID(ctx context.Context, id uuid.UUID) (*BankAccountConfig, error)

	// Save creates or updates an account configuration
	Save(ctx context.Context, account *BankAccountConfig) error
}

// StatementRepository loads imported bank statements
type StatementRepository interface {
	// FindByID finds a statement with its lines ordered by sequence
	FindByID(ctx context.Context, id uuid.UUID) (*BankStatement, error)

	// FindLineByID finds a single statement line
	FindLineByID(ctx context.Context, lineID uuid.UUID) (*BankStatementLine, error)

	// Save stores a newly imported statement with its lines
	Save(ctx context.Context, statement *BankStatement) error
}

// TransactionRepository loads ledger transactions
type TransactionRepository interface {
	// FindByID finds a transaction by ID
	FindByID(ctx context.Context, id uuid.UUID) (*InternalTransaction, error)

	// FindUnreconciled returns the account's unreconciled transactions dated inside window
	FindUnreconciled(ctx context.Context, accountID uuid.UUID, window shared.DateWindow) ([]*InternalTransaction, error)

	// Save creates or updates a transaction as recorded by the ledger
	Save(ctx context.Context, txn *InternalTransaction) error
}

// MatchRepository reads the append-only match history
type MatchRepository interface {
	// FindByID finds a match, revoked or not
	FindByID(ctx context.Context, id uuid.UUID) (*ReconciliationMatch, error)

	// FindActiveByLine returns the non-revoked match holding the line, or nil
	FindActiveByLine(ctx context.Context, lineID uuid.UUID) (*ReconciliationMatch, error)

	// FindActiveByTransaction returns the non-revoked match holding the transaction, or nil
	FindActiveByTransaction(ctx context.Context, txnID uuid.UUID) (*ReconciliationMatch, error)

	// FindByStatement returns every match of a statement ordered by creation
	FindByStatement(ctx context.Context, statementID uuid.UUID) ([]ReconciliationMatch, error)
}

// ReconciliationRepository reads finalized runs
type ReconciliationRepository interface {
	// FindByID finds a run with its matches and discrepancies
	FindByID(ctx context.Context, id uuid.UUID) (*Reconciliation, error)

	// FindLatestByStatement returns the newest run of a statement, or nil
	FindLatestByStatement(ctx context.Context, statementID uuid.UUID) (*Reconciliation, error)
}

// UnitOfWork persists each engine outcome atomically.
// Every write re-checks the claim invariant with a version-conditional
// update and fails the whole batch with a CONCURRENCY_CONFLICT error when
// a line or transaction changed since it was loaded.
type UnitOfWork interface {
	// SaveSession writes the reconciliation, its matches and discrepancies,
	// the settled lines and the claimed transactions
	SaveSession(ctx context.Context, result *SessionResult) error

	// SaveManualMatch writes a manual match and claims both sides
	SaveManualMatch(ctx context.Context, outcome *ManualMatchOutcome) error

	// SaveUndo writes the revocation and releases both sides
	SaveUndo(ctx context.Context, outcome *UndoOutcome) error
}

// SuggestionCache stores reviewer suggestions per line
type SuggestionCache interface {
	// Get returns cached suggestions; ok is false on a miss
	Get(ctx context.Context, accountID, lineID uuid.UUID) (suggestions []MatchSuggestion, ok bool, err error)

	// Set stores suggestions for a line
	Set(ctx context.Context, accountID, lineID uuid.UUID, suggestions []MatchSuggestion) error

	// InvalidateAccount drops every cached suggestion of an account
	InvalidateAccount(ctx context.Context, accountID uuid.UUID) error
}
