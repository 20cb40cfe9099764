// Package storage defines the persistence ports used by the posting and
// reconciliation engines. Two implementations exist: gormstore for real
// databases and memstore for tests.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"accounting-ledger-service/internal/models"
)

// Store aggregates the per-entity repositories. Atomically runs the given
// function against a store whose writes either all commit or all roll back.
type Store interface {
	Accounts() AccountStore
	Templates() TemplateStore
	Transactions() TransactionStore
	Sequences() SequenceStore
	Statements() StatementStore
	Reconciliations() ReconciliationStore

	Atomically(ctx context.Context, fn func(Store) error) error
}

// AccountStore reads the chart of accounts.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.ChartOfAccount, error)
	FindByCode(ctx context.Context, code string) (*models.ChartOfAccount, error)
	Save(ctx context.Context, account *models.ChartOfAccount) error
}

// TemplateStore persists journal templates together with their lines.
type TemplateStore interface {
	FindByID(ctx context.Context, id string) (*models.JournalTemplate, error)
	Save(ctx context.Context, template *models.JournalTemplate) error
}

// TransactionStore persists transactions with their entries, overrides and
// variables as a single aggregate.
type TransactionStore interface {
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction) error
	Delete(ctx context.Context, id string) error

	// PostedEntriesByAccountAndDateRange returns journal entries of POSTED
	// transactions for one account, ordered by journal date. Nil bounds are
	// open-ended.
	PostedEntriesByAccountAndDateRange(ctx context.Context, accountID string, from, to *time.Time) ([]models.JournalEntry, error)

	// SumPostedByAccount totals debit and credit of POSTED entries for one
	// account up to and including the given date. A nil bound sums everything.
	SumPostedByAccount(ctx context.Context, accountID string, from, to *time.Time) (debit, credit decimal.Decimal, err error)
}

// SequenceStore hands out sequence rows under a write lock.
type SequenceStore interface {
	// Lock loads the sequence row for (sequenceType, year), creating it at
	// zero when absent, and holds it locked for the rest of the enclosing
	// Atomically scope.
	Lock(ctx context.Context, sequenceType string, year int) (*models.TransactionSequence, error)
	Save(ctx context.Context, seq *models.TransactionSequence) error
}

// StatementStore persists imported bank statements and their line items.
type StatementStore interface {
	FindByID(ctx context.Context, id string) (*models.BankStatement, error)
	Save(ctx context.Context, statement *models.BankStatement) error

	FindItem(ctx context.Context, itemID string) (*models.BankStatementItem, error)
	SaveItem(ctx context.Context, item *models.BankStatementItem) error

	// ItemsByStatus returns a statement's items with the given match status,
	// ordered by line number.
	ItemsByStatus(ctx context.Context, statementID string, status models.MatchStatus) ([]models.BankStatementItem, error)
	CountItemsByStatus(ctx context.Context, statementID string, status models.MatchStatus) (int, error)
}

// ReconciliationStore persists reconciliation sessions and their match records.
type ReconciliationStore interface {
	FindByID(ctx context.Context, id string) (*models.BankReconciliation, error)
	Save(ctx context.Context, rec *models.BankReconciliation) error

	FindItemByID(ctx context.Context, itemID string) (*models.ReconciliationItem, error)
	SaveItem(ctx context.Context, item *models.ReconciliationItem) error

	// ItemsByReconciliation returns every match record of a session, oldest
	// first, including superseded ones.
	ItemsByReconciliation(ctx context.Context, reconciliationID string) ([]models.ReconciliationItem, error)
}
