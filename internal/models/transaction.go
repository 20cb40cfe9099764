package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus tracks the transaction lifecycle. Transitions are
// monotonic: DRAFT -> POSTED -> VOID, never backwards.
type TransactionStatus string

const (
	StatusDraft  TransactionStatus = "DRAFT"
	StatusPosted TransactionStatus = "POSTED"
	StatusVoid   TransactionStatus = "VOID"
)

// VoidReason is the closed set of reasons a posted transaction may be voided
type VoidReason string

const (
	VoidDataEntryError VoidReason = "DATA_ENTRY_ERROR"
	VoidDuplicate      VoidReason = "DUPLICATE"
	VoidCancelled      VoidReason = "CANCELLED"
	VoidOther          VoidReason = "OTHER"
)

// IsValid checks if the void reason is valid
func (r VoidReason) IsValid() bool {
	switch r {
	case VoidDataEntryError, VoidDuplicate, VoidCancelled, VoidOther:
		return true
	}
	return false
}

// Transaction is the unit of posting: one business event executed against a
// journal template. It exclusively owns its journal entries; entries are
// created, annotated and reversed only through the transaction.
type Transaction struct {
	ID                string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TransactionNumber string            `gorm:"uniqueIndex;type:varchar(50);not null" json:"transactionNumber"`
	TemplateID        string            `gorm:"type:varchar(36);not null;index" json:"templateId"`
	TransactionDate   time.Time         `gorm:"not null" json:"transactionDate"`
	Amount            decimal.Decimal   `gorm:"type:decimal(19,2);not null" json:"amount"`
	Description       string            `gorm:"type:varchar(500);not null" json:"description"`
	ReferenceNumber   string            `gorm:"type:varchar(100)" json:"referenceNumber,omitempty"`
	Notes             string            `gorm:"type:text" json:"notes,omitempty"`
	ProjectTag        string            `gorm:"type:varchar(100)" json:"projectTag,omitempty"`
	Status            TransactionStatus `gorm:"type:varchar(20);not null;default:DRAFT" json:"status"`

	// Captured at creation, consumed when posting.
	AccountOverrides []AccountOverride     `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"accountOverrides,omitempty"`
	Variables        []TransactionVariable `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"variables,omitempty"`

	Entries []JournalEntry `gorm:"foreignKey:TransactionID" json:"entries,omitempty"`

	PostedAt *time.Time `json:"postedAt,omitempty"`
	PostedBy string     `gorm:"type:varchar(100)" json:"postedBy,omitempty"`

	VoidReason *VoidReason `gorm:"type:varchar(50)" json:"voidReason,omitempty"`
	VoidNotes  string      `gorm:"type:text" json:"voidNotes,omitempty"`
	VoidedAt   *time.Time  `json:"voidedAt,omitempty"`
	VoidedBy   string      `gorm:"type:varchar(100)" json:"voidedBy,omitempty"`

	CreatedBy string    `gorm:"type:varchar(100)" json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName maps the entity to its relational table
func (Transaction) TableName() string {
	return "transactions"
}

// IsDraft returns true while the transaction is still editable
func (t *Transaction) IsDraft() bool { return t.Status == StatusDraft }

// IsPosted returns true once journal entries exist for the transaction
func (t *Transaction) IsPosted() bool { return t.Status == StatusPosted }

// IsVoid returns true when the transaction has been reversed
func (t *Transaction) IsVoid() bool { return t.Status == StatusVoid }

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.TemplateID) == "" {
		return fmt.Errorf("transaction template cannot be empty")
	}
	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", t.Amount)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	return nil
}

// AccountOverride maps a template line to a caller-chosen account,
// overriding the line's static account or resolving its hint.
type AccountOverride struct {
	ID            string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TransactionID string `gorm:"type:varchar(36);not null;index" json:"transactionId"`
	TemplateLineID string `gorm:"type:varchar(36);not null" json:"templateLineId"`
	AccountID     string `gorm:"type:varchar(36);not null" json:"accountId"`
}

// TableName maps the entity to its relational table
func (AccountOverride) TableName() string {
	return "transaction_account_overrides"
}

// TransactionVariable is a named value supplied by the caller and fed into
// formula evaluation when the transaction is posted.
type TransactionVariable struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TransactionID string          `gorm:"type:varchar(36);not null;index" json:"transactionId"`
	Name          string          `gorm:"type:varchar(100);not null" json:"name"`
	Value         decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"value"`
}

// TableName maps the entity to its relational table
func (TransactionVariable) TableName() string {
	return "transaction_variables"
}

// OverrideMap indexes the stored account overrides by template line ID.
func (t *Transaction) OverrideMap() map[string]string {
	overrides := make(map[string]string, len(t.AccountOverrides))
	for _, o := range t.AccountOverrides {
		overrides[o.TemplateLineID] = o.AccountID
	}
	return overrides
}

// VariableMap indexes the stored variables by name.
func (t *Transaction) VariableMap() map[string]decimal.Decimal {
	vars := make(map[string]decimal.Decimal, len(t.Variables))
	for _, v := range t.Variables {
		vars[v.Name] = v.Value
	}
	return vars
}
