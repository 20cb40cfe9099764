package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus tracks how a statement line (or audit row) relates to the books
type MatchStatus string

const (
	MatchStatusUnmatched MatchStatus = "UNMATCHED"
	MatchStatusMatched   MatchStatus = "MATCHED"
	MatchStatusBankOnly  MatchStatus = "BANK_ONLY"
	MatchStatusBookOnly  MatchStatus = "BOOK_ONLY"
)

// MatchType records which heuristic produced a match
type MatchType string

const (
	MatchExact     MatchType = "EXACT"
	MatchFuzzyDate MatchType = "FUZZY_DATE"
	MatchKeyword   MatchType = "KEYWORD"
	MatchManual    MatchType = "MANUAL"
)

// BankStatement is an externally imported statement for one bank account.
// The engine never parses raw statement formats; an upstream importer
// supplies the parsed rows.
type BankStatement struct {
	ID             string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID      string              `gorm:"type:varchar(36);not null;index" json:"accountId"`
	BankName       string              `gorm:"type:varchar(100)" json:"bankName,omitempty"`
	PeriodStart    time.Time           `gorm:"not null" json:"periodStart"`
	PeriodEnd      time.Time           `gorm:"not null" json:"periodEnd"`
	OpeningBalance decimal.Decimal     `gorm:"type:decimal(19,2);not null" json:"openingBalance"`
	ClosingBalance decimal.Decimal     `gorm:"type:decimal(19,2);not null" json:"closingBalance"`
	Items          []BankStatementItem `gorm:"foreignKey:StatementID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	ImportedAt     time.Time           `json:"importedAt"`
}

// TableName maps the entity to its relational table
func (BankStatement) TableName() string {
	return "bank_statements"
}

// BankStatementItem is one line of an imported statement. At most one
// current match is ever recorded against an item.
type BankStatementItem struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StatementID  string          `gorm:"type:varchar(36);not null;index" json:"statementId"`
	LineNumber   int             `gorm:"not null" json:"lineNumber"`
	TransactionDate time.Time    `gorm:"not null" json:"transactionDate"`
	Description  string          `gorm:"type:text" json:"description,omitempty"`
	DebitAmount  decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"debitAmount"`
	CreditAmount decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"creditAmount"`
	Balance      decimal.Decimal `gorm:"type:decimal(19,2)" json:"balance"`

	MatchStatus          MatchStatus `gorm:"type:varchar(20);not null;default:UNMATCHED" json:"matchStatus"`
	MatchType            *MatchType  `gorm:"type:varchar(20)" json:"matchType,omitempty"`
	MatchedTransactionID *string     `gorm:"type:varchar(36)" json:"matchedTransactionId,omitempty"`
	MatchedAt            *time.Time  `json:"matchedAt,omitempty"`
	MatchedBy            string      `gorm:"type:varchar(100)" json:"matchedBy,omitempty"`
}

// TableName maps the entity to its relational table
func (BankStatementItem) TableName() string {
	return "bank_statement_items"
}

// NetAmount returns the bank-side view of the line: credit - debit.
// Positive means money into the account, mirroring JournalEntry.NetAmount
// on the book side.
func (i *BankStatementItem) NetAmount() decimal.Decimal {
	return i.CreditAmount.Sub(i.DebitAmount)
}

// IsUnmatched reports whether the item still awaits a match decision.
func (i *BankStatementItem) IsUnmatched() bool {
	return i.MatchStatus == MatchStatusUnmatched
}
