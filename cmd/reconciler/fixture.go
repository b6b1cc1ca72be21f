package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fixture is the import file accepted by the load command
type fixture struct {
	Accounts     []accountFixture     `json:"accounts"`
	Statements   []statementFixture   `json:"statements"`
	Transactions []transactionFixture `json:"transactions"`
}

type accountFixture struct {
	ID            uuid.UUID `json:"id"`
	BankCode      string    `json:"bank_code"`
	AccountNumber string    `json:"account_number"`
	Currency      string    `json:"currency"`
	Inactive      bool      `json:"inactive"`
}

type statementFixture struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"account_id"`
	PeriodStart    fixtureDate     `json:"period_start"`
	PeriodEnd      fixtureDate     `json:"period_end"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []lineFixture   `json:"lines"`
}

type lineFixture struct {
	ID          uuid.UUID       `json:"id"`
	Sequence    int             `json:"sequence"`
	Amount      decimal.Decimal `json:"amount"`
	ValueDate   fixtureDate     `json:"value_date"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
}

type transactionFixture struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        fixtureDate     `json:"date"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
}

// fixtureDate accepts "2006-01-02" or RFC 3339
type fixtureDate struct {
	time.Time
}

func (d *fixtureDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	}
	d.Time = t.UTC()
	return nil
}

// dataset is a fixture converted to domain objects
type dataset struct {
	Accounts     []*reconciliation.BankAccountConfig
	Statements   []*reconciliation.BankStatement
	Transactions []*reconciliation.InternalTransaction
}

func readFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return &f, nil
}

// toDomain builds domain objects, keeping the ids the fixture names so
// that later commands can refer to them
func (f *fixture) toDomain() (*dataset, error) {
	ds := &dataset{}
	for i, a := range f.Accounts {
		currency, err := parseCurrency(a.Currency)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		account, err := reconciliation.NewBankAccountConfig(a.BankCode, a.AccountNumber, currency)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		if a.ID != uuid.Nil {
			account.ID = a.ID
		}
		if a.Inactive {
			account.Deactivate()
		}
		ds.Accounts = append(ds.Accounts, account)
	}

	for i, s := range f.Statements {
		currency, err := parseCurrency(s.Currency)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		lines := make([]*reconciliation.BankStatementLine, 0, len(s.Lines))
		for _, l := range s.Lines {
			line := reconciliation.NewBankStatementLine(l.Sequence, l.Amount, l.ValueDate.Time, l.Reference, l.Description)
			if l.ID != uuid.Nil {
				line.ID = l.ID
			}
			lines = append(lines, line)
		}
		stmt, err := reconciliation.NewBankStatement(s.AccountID, s.PeriodStart.Time, s.PeriodEnd.Time,
			currency, s.OpeningBalance, s.ClosingBalance, lines)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		if s.ID != uuid.Nil {
			stmt.ID = s.ID
			for _, line := range stmt.Lines {
				line.StatementID = stmt.ID
			}
		}
		ds.Statements = append(ds.Statements, stmt)
	}

	for i, t := range f.Transactions {
		if t.AccountID == uuid.Nil {
			return nil, fmt.Errorf("transaction %d: %w", i, shared.NewValidationError("account id is required"))
		}
		txn := reconciliation.NewInternalTransaction(t.AccountID, t.Amount, t.Date.Time, t.Reference, t.Description)
		if t.ID != uuid.Nil {
			txn.ID = t.ID
		}
		ds.Transactions = append(ds.Transactions, txn)
	}
	return ds, nil
}

func parseCurrency(code string) (valueobject.Currency, error) {
	if code == "" {
		return valueobject.DefaultCurrency, nil
	}
	return valueobject.ParseCurrency(code)
}

// importer is the write side of the repositories used by the load command
type importer struct {
	accounts     reconciliation.AccountRepository
	statements   reconciliation.StatementRepository
	transactions reconciliation.TransactionRepository
}

// load saves accounts first so statements and transactions can refer to them
func (imp importer) load(ctx context.Context, ds *dataset) error {
	for _, a := range ds.Accounts {
		if err := imp.accounts.Save(ctx, a); err != nil {
			return err
		}
	}
	for _, s := range ds.Statements {
		if err := imp.statements.Save(ctx, s); err != nil {
			return err
		}
	}
	for _, t := range ds.Transactions {
		if err := imp.transactions.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
