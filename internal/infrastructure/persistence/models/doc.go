// Package models contains GORM persistence models for the reconciler tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models own the table mappings and column types
// 3. Mappers (ToDomain / FromDomain) convert between the two
// 4. Repositories and the unit of work only ever touch persistence models
//
// Structure:
// - base.go: shared ID, timestamp and version columns
// - account.go: bank_accounts
// - statement.go: bank_statements and bank_statement_lines
// - transaction.go: internal_transactions
// - reconciliation.go: reconciliations, reconciliation_matches and reconciliation_discrepancies
package models
