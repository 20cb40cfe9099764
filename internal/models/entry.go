package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one immutable line of the ledger. Exactly one of debit or
// credit is non-zero, per the position of the template line it came from.
// Entries are never deleted: voiding appends reversal entries and only adds
// a void timestamp to the originals.
type JournalEntry struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	JournalNumber string          `gorm:"uniqueIndex;type:varchar(50);not null" json:"journalNumber"`
	TransactionID string          `gorm:"type:varchar(36);not null;index" json:"transactionId"`
	AccountID     string          `gorm:"type:varchar(36);not null;index" json:"accountId"`
	JournalDate   time.Time       `gorm:"not null;index" json:"journalDate"`
	Description   string          `gorm:"type:varchar(500);not null" json:"description"`
	DebitAmount   decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"debitAmount"`
	CreditAmount  decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"creditAmount"`
	ProjectTag    string          `gorm:"type:varchar(100)" json:"projectTag,omitempty"`

	IsReversal bool `gorm:"not null;default:false" json:"isReversal"`
	// Weak identifier-based reference to the entry this one reverses,
	// never an ownership edge.
	ReversedEntryID *string `gorm:"type:varchar(36)" json:"reversedEntryId,omitempty"`

	// The only mutation an entry ever receives.
	VoidedAt *time.Time `json:"voidedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName maps the entity to its relational table
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// IsDebitEntry returns true if the entry carries its amount on the debit side
func (e *JournalEntry) IsDebitEntry() bool {
	return e.DebitAmount.IsPositive()
}

// IsCreditEntry returns true if the entry carries its amount on the credit side
func (e *JournalEntry) IsCreditEntry() bool {
	return e.CreditAmount.IsPositive()
}

// Amount returns the entry amount regardless of side
func (e *JournalEntry) Amount() decimal.Decimal {
	if e.IsDebitEntry() {
		return e.DebitAmount
	}
	return e.CreditAmount
}

// NetAmount returns the asset-account view of the entry: debit - credit.
// Positive means money into the account. This is the book-side convention
// the statement matcher compares against.
func (e *JournalEntry) NetAmount() decimal.Decimal {
	return e.DebitAmount.Sub(e.CreditAmount)
}
