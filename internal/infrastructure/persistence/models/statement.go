package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankStatementModel is the persistence model for imported bank statements
type BankStatementModel struct {
	AggregateModel
	AccountID      uuid.UUID                      `gorm:"type:uuid;not null;index"`
	PeriodStart    time.Time                      `gorm:"not null"`
	PeriodEnd      time.Time                      `gorm:"not null"`
	Currency       string                         `gorm:"type:varchar(3);not null"`
	OpeningBalance decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	ClosingBalance decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	Status         reconciliation.StatementStatus `gorm:"type:varchar(30);not null;index"`
	Lines          []BankStatementLineModel       `gorm:"foreignKey:StatementID;references:ID"`
}

// TableName returns the table name for GORM
func (BankStatementModel) TableName() string {
	return "bank_statements"
}

// ToDomain converts the persistence model to a domain aggregate.
// Lines must already be ordered by sequence.
func (m *BankStatementModel) ToDomain() *reconciliation.BankStatement {
	s := &reconciliation.BankStatement{
		AccountID:      m.AccountID,
		PeriodStart:    m.PeriodStart.UTC(),
		PeriodEnd:      m.PeriodEnd.UTC(),
		Currency:       valueobject.Currency(m.Currency),
		OpeningBalance: m.OpeningBalance,
		ClosingBalance: m.ClosingBalance,
		Status:         m.Status,
		Lines:          make([]*reconciliation.BankStatementLine, 0, len(m.Lines)),
	}
	m.PopulateAggregateRoot(&s.BaseAggregateRoot)
	for i := range m.Lines {
		s.Lines = append(s.Lines, m.Lines[i].ToDomain())
	}
	return s
}

// FromDomain populates the persistence model from a domain aggregate
func (m *BankStatementModel) FromDomain(s *reconciliation.BankStatement) {
	m.FromDomainAggregateRoot(&s.BaseAggregateRoot)
	m.AccountID = s.AccountID
	m.PeriodStart = utc(s.PeriodStart)
	m.PeriodEnd = utc(s.PeriodEnd)
	m.Currency = string(s.Currency)
	m.OpeningBalance = s.OpeningBalance
	m.ClosingBalance = s.ClosingBalance
	m.Status = s.Status
	m.Lines = make([]BankStatementLineModel, 0, len(s.Lines))
	for _, l := range s.Lines {
		lm := BankStatementLineModelFromDomain(l)
		lm.CreatedAt = s.CreatedAt
		lm.UpdatedAt = s.UpdatedAt
		m.Lines = append(m.Lines, *lm)
	}
}

// BankStatementModelFromDomain creates a persistence model from a domain aggregate
func BankStatementModelFromDomain(s *reconciliation.BankStatement) *BankStatementModel {
	m := &BankStatementModel{}
	m.FromDomain(s)
	return m
}

// BankStatementLineModel is the persistence model for statement lines
type BankStatementLineModel struct {
	ID          uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	StatementID uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_statement_line_sequence,priority:1"`
	Sequence    int                       `gorm:"not null;uniqueIndex:idx_statement_line_sequence,priority:2"`
	Amount      decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	ValueDate   time.Time                 `gorm:"not null;index"`
	Reference   string                    `gorm:"type:varchar(140)"`
	Description string                    `gorm:"type:text"`
	Status      reconciliation.LineStatus `gorm:"type:varchar(30);not null;index"`
	Version     int                       `gorm:"not null;default:1"`
	CreatedAt   time.Time                 `gorm:"not null"`
	UpdatedAt   time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankStatementLineModel) TableName() string {
	return "bank_statement_lines"
}

// ToDomain converts the persistence model to a domain entity
func (m *BankStatementLineModel) ToDomain() *reconciliation.BankStatementLine {
	return &reconciliation.BankStatementLine{
		ID:          m.ID,
		StatementID: m.StatementID,
		Sequence:    m.Sequence,
		Amount:      m.Amount,
		ValueDate:   m.ValueDate.UTC(),
		Reference:   m.Reference,
		Description: m.Description,
		Status:      m.Status,
		Version:     m.Version,
	}
}

// BankStatementLineModelFromDomain creates a persistence model from a domain entity
func BankStatementLineModelFromDomain(l *reconciliation.BankStatementLine) *BankStatementLineModel {
	return &BankStatementLineModel{
		ID:          l.ID,
		StatementID: l.StatementID,
		Sequence:    l.Sequence,
		Amount:      l.Amount,
		ValueDate:   utc(l.ValueDate),
		Reference:   l.Reference,
		Description: l.Description,
		Status:      l.Status,
		Version:     l.Version,
	}
}
