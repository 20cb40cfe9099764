// Package gormstore implements the storage ports on top of GORM. SQLite
// serves single-user installs, PostgreSQL serves shared deployments; both go
// through the same Store.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage"
)

// Store wraps a *gorm.DB behind the storage ports.
type Store struct {
	db *gorm.DB
}

// Open connects using the given driver name ("sqlite" or "postgres") and DSN.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, lederrors.ConfigurationError("database.driver", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, lederrors.StorageError(err, "open database")
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for every entity.
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.ChartOfAccount{},
		&models.JournalTemplate{},
		&models.TemplateLine{},
		&models.Transaction{},
		&models.AccountOverride{},
		&models.TransactionVariable{},
		&models.JournalEntry{},
		&models.TransactionSequence{},
		&models.BankStatement{},
		&models.BankStatementItem{},
		&models.BankReconciliation{},
		&models.ReconciliationItem{},
	)
	if err != nil {
		return lederrors.StorageError(err, "migrate schema")
	}
	return nil
}

func (s *Store) Accounts() storage.AccountStore               { return &accountStore{db: s.db} }
func (s *Store) Templates() storage.TemplateStore             { return &templateStore{db: s.db} }
func (s *Store) Transactions() storage.TransactionStore       { return &transactionStore{db: s.db} }
func (s *Store) Sequences() storage.SequenceStore             { return &sequenceStore{db: s.db} }
func (s *Store) Statements() storage.StatementStore           { return &statementStore{db: s.db} }
func (s *Store) Reconciliations() storage.ReconciliationStore { return &reconciliationStore{db: s.db} }

// Atomically opens a database transaction and hands fn a store bound to it.
func (s *Store) Atomically(ctx context.Context, fn func(storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lederrors.NotFoundError(entity, id)
	}
	return lederrors.StorageError(err, "load "+entity)
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// --- accounts ---

type accountStore struct{ db *gorm.DB }

func (s *accountStore) FindByID(ctx context.Context, id string) (*models.ChartOfAccount, error) {
	var account models.ChartOfAccount
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "account", id)
	}
	return &account, nil
}

func (s *accountStore) FindByCode(ctx context.Context, code string) (*models.ChartOfAccount, error) {
	var account models.ChartOfAccount
	if err := s.db.WithContext(ctx).First(&account, "account_code = ?", code).Error; err != nil {
		return nil, notFoundOr(err, "account", code)
	}
	return &account, nil
}

func (s *accountStore) Save(ctx context.Context, account *models.ChartOfAccount) error {
	ensureID(&account.ID)
	if err := s.db.WithContext(ctx).Save(account).Error; err != nil {
		return lederrors.StorageError(err, "save account")
	}
	return nil
}

// --- templates ---

type templateStore struct{ db *gorm.DB }

func (s *templateStore) FindByID(ctx context.Context, id string) (*models.JournalTemplate, error) {
	var template models.JournalTemplate
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_order ASC") }).
		First(&template, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "journal template", id)
	}
	return &template, nil
}

func (s *templateStore) Save(ctx context.Context, template *models.JournalTemplate) error {
	ensureID(&template.ID)
	for i := range template.Lines {
		ensureID(&template.Lines[i].ID)
		template.Lines[i].TemplateID = template.ID
	}
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(template).Error
	if err != nil {
		return lederrors.StorageError(err, "save template")
	}
	return nil
}

// --- transactions ---

type transactionStore struct{ db *gorm.DB }

func (s *transactionStore) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).
		Preload("AccountOverrides").
		Preload("Variables").
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("journal_number ASC") }).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "transaction", id)
	}
	return &tx, nil
}

func (s *transactionStore) Save(ctx context.Context, tx *models.Transaction) error {
	ensureID(&tx.ID)
	for i := range tx.Entries {
		ensureID(&tx.Entries[i].ID)
		tx.Entries[i].TransactionID = tx.ID
	}
	for i := range tx.AccountOverrides {
		ensureID(&tx.AccountOverrides[i].ID)
		tx.AccountOverrides[i].TransactionID = tx.ID
	}
	for i := range tx.Variables {
		ensureID(&tx.Variables[i].ID)
		tx.Variables[i].TransactionID = tx.ID
	}
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(tx).Error
	if err != nil {
		return lederrors.StorageError(err, "save transaction")
	}
	return nil
}

func (s *transactionStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Transaction{}, "id = ?", id)
	if result.Error != nil {
		return lederrors.StorageError(result.Error, "delete transaction")
	}
	if result.RowsAffected == 0 {
		return lederrors.NotFoundError("transaction", id)
	}
	return nil
}

func (s *transactionStore) PostedEntriesByAccountAndDateRange(ctx context.Context, accountID string, from, to *time.Time) ([]models.JournalEntry, error) {
	query := s.db.WithContext(ctx).
		Joins("JOIN transactions ON transactions.id = journal_entries.transaction_id").
		Where("transactions.status = ?", models.StatusPosted).
		Where("journal_entries.account_id = ?", accountID)
	if from != nil {
		query = query.Where("journal_entries.journal_date >= ?", *from)
	}
	if to != nil {
		query = query.Where("journal_entries.journal_date <= ?", *to)
	}

	var entries []models.JournalEntry
	err := query.Order("journal_entries.journal_date ASC, journal_entries.journal_number ASC").
		Find(&entries).Error
	if err != nil {
		return nil, lederrors.StorageError(err, "query journal entries")
	}
	return entries, nil
}

func (s *transactionStore) SumPostedByAccount(ctx context.Context, accountID string, from, to *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	entries, err := s.PostedEntriesByAccountAndDateRange(ctx, accountID, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit, nil
}

// --- sequences ---

type sequenceStore struct{ db *gorm.DB }

func (s *sequenceStore) Lock(ctx context.Context, sequenceType string, year int) (*models.TransactionSequence, error) {
	var seq models.TransactionSequence
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sequence_type = ? AND year = ?", sequenceType, year).
		First(&seq).Error
	if err == nil {
		return &seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, lederrors.ConcurrencyError(err, sequenceType, year)
	}

	prefix := "TRX"
	if sequenceType == models.SequenceTypeJournal {
		prefix = "JE"
	}
	seq = models.TransactionSequence{
		ID:           uuid.NewString(),
		SequenceType: sequenceType,
		Year:         year,
		Prefix:       prefix,
		LastNumber:   0,
	}
	if err := s.db.WithContext(ctx).Create(&seq).Error; err != nil {
		// A concurrent creator won the unique index race; reload under lock.
		var existing models.TransactionSequence
		reloadErr := s.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sequence_type = ? AND year = ?", sequenceType, year).
			First(&existing).Error
		if reloadErr != nil {
			return nil, lederrors.ConcurrencyError(err, sequenceType, year)
		}
		return &existing, nil
	}
	return &seq, nil
}

func (s *sequenceStore) Save(ctx context.Context, seq *models.TransactionSequence) error {
	if err := s.db.WithContext(ctx).Save(seq).Error; err != nil {
		return lederrors.StorageError(err, "save sequence")
	}
	return nil
}

// --- statements ---

type statementStore struct{ db *gorm.DB }

func (s *statementStore) FindByID(ctx context.Context, id string) (*models.BankStatement, error) {
	var statement models.BankStatement
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		First(&statement, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "bank statement", id)
	}
	return &statement, nil
}

func (s *statementStore) Save(ctx context.Context, statement *models.BankStatement) error {
	ensureID(&statement.ID)
	for i := range statement.Items {
		item := &statement.Items[i]
		ensureID(&item.ID)
		item.StatementID = statement.ID
		if item.MatchStatus == "" {
			item.MatchStatus = models.MatchStatusUnmatched
		}
	}
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(statement).Error
	if err != nil {
		return lederrors.StorageError(err, "save statement")
	}
	return nil
}

func (s *statementStore) FindItem(ctx context.Context, itemID string) (*models.BankStatementItem, error) {
	var item models.BankStatementItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, notFoundOr(err, "statement item", itemID)
	}
	return &item, nil
}

func (s *statementStore) SaveItem(ctx context.Context, item *models.BankStatementItem) error {
	ensureID(&item.ID)
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return lederrors.StorageError(err, "save statement item")
	}
	return nil
}

func (s *statementStore) ItemsByStatus(ctx context.Context, statementID string, status models.MatchStatus) ([]models.BankStatementItem, error) {
	var items []models.BankStatementItem
	err := s.db.WithContext(ctx).
		Where("statement_id = ? AND match_status = ?", statementID, status).
		Order("line_number ASC").
		Find(&items).Error
	if err != nil {
		return nil, lederrors.StorageError(err, "query statement items")
	}
	return items, nil
}

func (s *statementStore) CountItemsByStatus(ctx context.Context, statementID string, status models.MatchStatus) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.BankStatementItem{}).
		Where("statement_id = ? AND match_status = ?", statementID, status).
		Count(&count).Error
	if err != nil {
		return 0, lederrors.StorageError(err, "count statement items")
	}
	return int(count), nil
}

// --- reconciliations ---

type reconciliationStore struct{ db *gorm.DB }

func (s *reconciliationStore) FindByID(ctx context.Context, id string) (*models.BankReconciliation, error) {
	var rec models.BankReconciliation
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "reconciliation", id)
	}
	return &rec, nil
}

func (s *reconciliationStore) Save(ctx context.Context, rec *models.BankReconciliation) error {
	ensureID(&rec.ID)
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return lederrors.StorageError(err, "save reconciliation")
	}
	return nil
}

func (s *reconciliationStore) FindItemByID(ctx context.Context, itemID string) (*models.ReconciliationItem, error) {
	var item models.ReconciliationItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, notFoundOr(err, "reconciliation item", itemID)
	}
	return &item, nil
}

func (s *reconciliationStore) SaveItem(ctx context.Context, item *models.ReconciliationItem) error {
	ensureID(&item.ID)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return lederrors.StorageError(err, "save reconciliation item")
	}
	return nil
}

func (s *reconciliationStore) ItemsByReconciliation(ctx context.Context, reconciliationID string) ([]models.ReconciliationItem, error) {
	var items []models.ReconciliationItem
	err := s.db.WithContext(ctx).
		Where("reconciliation_id = ?", reconciliationID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, lederrors.StorageError(err, "query reconciliation items")
	}
	return items, nil
}
