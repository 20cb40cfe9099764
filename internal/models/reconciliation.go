package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus tracks the reconciliation lifecycle.
// DRAFT -> IN_PROGRESS -> COMPLETED, with COMPLETED terminal.
type ReconciliationStatus string

const (
	ReconciliationDraft      ReconciliationStatus = "DRAFT"
	ReconciliationInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationCompleted  ReconciliationStatus = "COMPLETED"
)

// BankReconciliation reconciles one imported statement against the posted
// entries of its linked GL account. Book balance is computed once at
// creation; counts are recomputed from current item states after every
// mutating operation.
type BankReconciliation struct {
	ID          string               `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StatementID string               `gorm:"type:varchar(36);not null;index" json:"statementId"`
	AccountID   string               `gorm:"type:varchar(36);not null;index" json:"accountId"`
	PeriodStart time.Time            `gorm:"not null" json:"periodStart"`
	PeriodEnd   time.Time            `gorm:"not null" json:"periodEnd"`
	Status      ReconciliationStatus `gorm:"type:varchar(20);not null;default:DRAFT" json:"status"`

	BookBalance decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"bookBalance"`
	BankBalance decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"bankBalance"`

	TotalStatementItems int `gorm:"not null;default:0" json:"totalStatementItems"`
	MatchedCount        int `gorm:"not null;default:0" json:"matchedCount"`
	UnmatchedBankCount  int `gorm:"not null;default:0" json:"unmatchedBankCount"`
	UnmatchedBookCount  int `gorm:"not null;default:0" json:"unmatchedBookCount"`

	Notes       string     `gorm:"type:varchar(1000)" json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `gorm:"type:varchar(100)" json:"completedBy,omitempty"`
	CreatedBy   string     `gorm:"type:varchar(100)" json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName maps the entity to its relational table
func (BankReconciliation) TableName() string {
	return "bank_reconciliations"
}

// IsCompleted returns true once the reconciliation reached its terminal state
func (r *BankReconciliation) IsCompleted() bool {
	return r.Status == ReconciliationCompleted
}

// ReconciliationItem is the audit row for one match decision. Rows are
// append-only by convention: unmatching flips the status and stamps
// when/who, it never deletes the row.
type ReconciliationItem struct {
	ID               string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ReconciliationID string      `gorm:"type:varchar(36);not null;index" json:"reconciliationId"`
	StatementItemID  *string     `gorm:"type:varchar(36)" json:"statementItemId,omitempty"`
	TransactionID    *string     `gorm:"type:varchar(36)" json:"transactionId,omitempty"`
	MatchStatus      MatchStatus `gorm:"type:varchar(20);not null" json:"matchStatus"`
	MatchType        *MatchType  `gorm:"type:varchar(20)" json:"matchType,omitempty"`

	// Heuristic confidence: 1.00 exact/manual, 0.90 fuzzy date, 0.80 keyword.
	Confidence decimal.Decimal `gorm:"type:decimal(3,2)" json:"confidence"`

	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy   string     `gorm:"type:varchar(100)" json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UnmatchedAt *time.Time `json:"unmatchedAt,omitempty"`
	UnmatchedBy string     `gorm:"type:varchar(100)" json:"unmatchedBy,omitempty"`
}

// TableName maps the entity to its relational table
func (ReconciliationItem) TableName() string {
	return "reconciliation_items"
}

// IsCurrent reports whether the audit row still represents an active match
// decision (it has not been superseded by an unmatch).
func (ri *ReconciliationItem) IsCurrent() bool {
	return ri.UnmatchedAt == nil
}

// ReconciliationSummary holds the figures derived on demand for a
// reconciliation; they are never stored.
type ReconciliationSummary struct {
	BookBalance         decimal.Decimal `json:"bookBalance"`
	BankBalance         decimal.Decimal `json:"bankBalance"`
	AdjustedBookBalance decimal.Decimal `json:"adjustedBookBalance"`
	AdjustedBankBalance decimal.Decimal `json:"adjustedBankBalance"`
	Difference          decimal.Decimal `json:"difference"`
	MatchedCount        int             `json:"matchedCount"`
	UnmatchedBankCount  int             `json:"unmatchedBankCount"`
	UnmatchedBookCount  int             `json:"unmatchedBookCount"`
}
