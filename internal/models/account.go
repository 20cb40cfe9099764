package models

import "time"

// AccountType classifies an account within the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance is the side on which an account normally carries its balance
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// ChartOfAccount is a postable account. The ledger engine only ever reads
// accounts; maintenance of the chart lives outside this core.
type ChartOfAccount struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountCode   string        `gorm:"uniqueIndex;type:varchar(20);not null" json:"accountCode"`
	AccountName   string        `gorm:"type:varchar(255);not null" json:"accountName"`
	AccountType   AccountType   `gorm:"type:varchar(20);not null" json:"accountType"`
	NormalBalance NormalBalance `gorm:"type:varchar(10);not null" json:"normalBalance"`
	Active        bool          `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TableName maps the entity to its relational table
func (ChartOfAccount) TableName() string {
	return "chart_of_accounts"
}
