package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationModel is the persistence model for one engine run
type ReconciliationModel struct {
	AggregateModel
	StatementID   uuid.UUID                                         `gorm:"type:uuid;not null;index:idx_reconciliation_statement_started,priority:1"`
	AccountID     uuid.UUID                                         `gorm:"type:uuid;not null;index"`
	SupersedesID  *uuid.UUID                                        `gorm:"type:uuid"`
	Settings      JSONColumn[reconciliation.ReconciliationSettings] `gorm:"type:jsonb;not null"`
	Status        reconciliation.ReconciliationStatus               `gorm:"type:varchar(20);not null"`
	Summary       JSONColumn[reconciliation.ReconciliationSummary]  `gorm:"type:jsonb;not null"`
	StartedAt     time.Time                                         `gorm:"not null;index:idx_reconciliation_statement_started,priority:2"`
	FinalizedAt   *time.Time
	Matches       []ReconciliationMatchModel       `gorm:"foreignKey:ReconciliationID;references:ID"`
	Discrepancies []ReconciliationDiscrepancyModel `gorm:"foreignKey:ReconciliationID;references:ID"`
}

// TableName returns the table name for GORM
func (ReconciliationModel) TableName() string {
	return "reconciliations"
}

// ToDomain converts the persistence model to a domain aggregate
func (m *ReconciliationModel) ToDomain() *reconciliation.Reconciliation {
	r := &reconciliation.Reconciliation{
		StatementID:   m.StatementID,
		AccountID:     m.AccountID,
		SupersedesID:  m.SupersedesID,
		Settings:      m.Settings.Data,
		Status:        m.Status,
		Summary:       m.Summary.Data,
		StartedAt:     m.StartedAt.UTC(),
		FinalizedAt:   utcPtr(m.FinalizedAt),
		Matches:       make([]reconciliation.ReconciliationMatch, 0, len(m.Matches)),
		Discrepancies: make([]reconciliation.ReconciliationDiscrepancy, 0, len(m.Discrepancies)),
	}
	m.PopulateAggregateRoot(&r.BaseAggregateRoot)
	for i := range m.Matches {
		r.Matches = append(r.Matches, m.Matches[i].ToDomain())
	}
	for i := range m.Discrepancies {
		r.Discrepancies = append(r.Discrepancies, m.Discrepancies[i].ToDomain())
	}
	r.RestoreIndex()
	return r
}

// FromDomain populates the persistence model from a domain aggregate.
// Matches and discrepancies are written separately by the unit of work.
func (m *ReconciliationModel) FromDomain(r *reconciliation.Reconciliation) {
	m.FromDomainAggregateRoot(&r.BaseAggregateRoot)
	m.StatementID = r.StatementID
	m.AccountID = r.AccountID
	m.SupersedesID = r.SupersedesID
	m.Settings = NewJSONColumn(r.Settings)
	m.Status = r.Status
	m.Summary = NewJSONColumn(r.Summary)
	m.StartedAt = utc(r.StartedAt)
	m.FinalizedAt = utcPtr(r.FinalizedAt)
}

// ReconciliationModelFromDomain creates a persistence model from a domain aggregate
func ReconciliationModelFromDomain(r *reconciliation.Reconciliation) *ReconciliationModel {
	m := &ReconciliationModel{}
	m.FromDomain(r)
	return m
}

// ReconciliationMatchModel is the persistence model for the append-only match history.
// At most one non-revoked row may hold a given line or transaction.
type ReconciliationMatchModel struct {
	ID               uuid.UUID                `gorm:"type:uuid;primaryKey"`
	StatementID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	AccountID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	ReconciliationID *uuid.UUID               `gorm:"type:uuid;index"`
	LineID           uuid.UUID                `gorm:"type:uuid;not null;index;uniqueIndex:idx_match_active_line,where:revoked_at IS NULL"`
	TransactionID    uuid.UUID                `gorm:"type:uuid;not null;index;uniqueIndex:idx_match_active_transaction,where:revoked_at IS NULL"`
	Confidence       float64                  `gorm:"not null"`
	MatchType        reconciliation.MatchType `gorm:"type:varchar(20);not null"`
	AmountDelta      decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	DateDeltaDays    int                      `gorm:"not null"`
	CreatedBy        string                   `gorm:"type:varchar(128);not null"`
	CreatedAt        time.Time                `gorm:"not null"`
	Reason           string                   `gorm:"type:varchar(500)"`
	RevokedAt        *time.Time
	RevokedBy        string `gorm:"type:varchar(128)"`
	Version          int    `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (ReconciliationMatchModel) TableName() string {
	return "reconciliation_matches"
}

// ToDomain converts the persistence model to a domain value
func (m *ReconciliationMatchModel) ToDomain() reconciliation.ReconciliationMatch {
	return reconciliation.ReconciliationMatch{
		ID:               m.ID,
		StatementID:      m.StatementID,
		AccountID:        m.AccountID,
		ReconciliationID: m.ReconciliationID,
		LineID:           m.LineID,
		TransactionID:    m.TransactionID,
		Confidence:       m.Confidence,
		MatchType:        m.MatchType,
		AmountDelta:      m.AmountDelta,
		DateDeltaDays:    m.DateDeltaDays,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt.UTC(),
		Reason:           m.Reason,
		RevokedAt:        utcPtr(m.RevokedAt),
		RevokedBy:        m.RevokedBy,
		Version:          m.Version,
	}
}

// ReconciliationMatchModelFromDomain creates a persistence model from a domain value
func ReconciliationMatchModelFromDomain(x *reconciliation.ReconciliationMatch) *ReconciliationMatchModel {
	return &ReconciliationMatchModel{
		ID:               x.ID,
		StatementID:      x.StatementID,
		AccountID:        x.AccountID,
		ReconciliationID: x.ReconciliationID,
		LineID:           x.LineID,
		TransactionID:    x.TransactionID,
		Confidence:       x.Confidence,
		MatchType:        x.MatchType,
		AmountDelta:      x.AmountDelta,
		DateDeltaDays:    x.DateDeltaDays,
		CreatedBy:        x.CreatedBy,
		CreatedAt:        utc(x.CreatedAt),
		Reason:           x.Reason,
		RevokedAt:        utcPtr(x.RevokedAt),
		RevokedBy:        x.RevokedBy,
		Version:          x.Version,
	}
}

// ReconciliationDiscrepancyModel is the persistence model for discrepancies
type ReconciliationDiscrepancyModel struct {
	ID               uuid.UUID                          `gorm:"type:uuid;primaryKey"`
	ReconciliationID uuid.UUID                          `gorm:"type:uuid;not null;index"`
	Position         int                                `gorm:"not null"`
	LineID           *uuid.UUID                         `gorm:"type:uuid"`
	TransactionID    *uuid.UUID                         `gorm:"type:uuid"`
	AmountDifference decimal.Decimal                    `gorm:"type:decimal(18,4);not null"`
	Category         reconciliation.DiscrepancyCategory `gorm:"type:varchar(30);not null;index"`
	Description      string                             `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReconciliationDiscrepancyModel) TableName() string {
	return "reconciliation_discrepancies"
}

// ToDomain converts the persistence model to a domain value
func (m *ReconciliationDiscrepancyModel) ToDomain() reconciliation.ReconciliationDiscrepancy {
	return reconciliation.ReconciliationDiscrepancy{
		ID:               m.ID,
		ReconciliationID: m.ReconciliationID,
		LineID:           m.LineID,
		TransactionID:    m.TransactionID,
		AmountDifference: m.AmountDifference,
		Category:         m.Category,
		Description:      m.Description,
	}
}

// ReconciliationDiscrepancyModelFromDomain creates a persistence model from a
// domain value; position keeps the emission order
func ReconciliationDiscrepancyModelFromDomain(d *reconciliation.ReconciliationDiscrepancy, position int) *ReconciliationDiscrepancyModel {
	return &ReconciliationDiscrepancyModel{
		ID:               d.ID,
		ReconciliationID: d.ReconciliationID,
		Position:         position,
		LineID:           d.LineID,
		TransactionID:    d.TransactionID,
		AmountDifference: d.AmountDifference,
		Category:         d.Category,
		Description:      d.Description,
	}
}

// AllModels returns every model in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{
		&BankAccountModel{},
		&BankStatementModel{},
		&BankStatementLineModel{},
		&InternalTransactionModel{},
		&ReconciliationModel{},
		&ReconciliationMatchModel{},
		&ReconciliationDiscrepancyModel{},
	}
}
