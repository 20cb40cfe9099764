// Package memstore is an in-memory Store implementation backed by maps.
// It exists for tests and for the dry-run paths of the CLI; all methods are
// safe for concurrent use through one store-wide mutex.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage"
)

type state struct {
	accounts        map[string]models.ChartOfAccount
	templates       map[string]models.JournalTemplate
	transactions    map[string]models.Transaction
	sequences       map[string]models.TransactionSequence
	statements      map[string]models.BankStatement
	statementItems  map[string]models.BankStatementItem
	reconciliations map[string]models.BankReconciliation
	recItems        map[string]models.ReconciliationItem
}

func newState() *state {
	return &state{
		accounts:        make(map[string]models.ChartOfAccount),
		templates:       make(map[string]models.JournalTemplate),
		transactions:    make(map[string]models.Transaction),
		sequences:       make(map[string]models.TransactionSequence),
		statements:      make(map[string]models.BankStatement),
		statementItems:  make(map[string]models.BankStatementItem),
		reconciliations: make(map[string]models.BankReconciliation),
		recItems:        make(map[string]models.ReconciliationItem),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.templates {
		v.Lines = append([]models.TemplateLine(nil), v.Lines...)
		c.templates[k] = v
	}
	for k, v := range s.transactions {
		v.Entries = append([]models.JournalEntry(nil), v.Entries...)
		v.AccountOverrides = append([]models.AccountOverride(nil), v.AccountOverrides...)
		v.Variables = append([]models.TransactionVariable(nil), v.Variables...)
		c.transactions[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.statements {
		v.Items = nil
		c.statements[k] = v
	}
	for k, v := range s.statementItems {
		c.statementItems[k] = v
	}
	for k, v := range s.reconciliations {
		c.reconciliations[k] = v
	}
	for k, v := range s.recItems {
		c.recItems[k] = v
	}
	return c
}

// Store keeps everything in process memory. Atomically serializes writers and
// restores a snapshot when the callback fails, so partial writes never leak.
type Store struct {
	mu   sync.Mutex
	data *state
	inTx bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) Accounts() storage.AccountStore                 { return (*accountStore)(s) }
func (s *Store) Templates() storage.TemplateStore               { return (*templateStore)(s) }
func (s *Store) Transactions() storage.TransactionStore         { return (*transactionStore)(s) }
func (s *Store) Sequences() storage.SequenceStore               { return (*sequenceStore)(s) }
func (s *Store) Statements() storage.StatementStore             { return (*statementStore)(s) }
func (s *Store) Reconciliations() storage.ReconciliationStore   { return (*reconciliationStore)(s) }

// Atomically runs fn with the store mutex held. On error the pre-call
// snapshot is restored.
func (s *Store) Atomically(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// --- accounts ---

type accountStore Store

func (s *accountStore) FindByID(_ context.Context, id string) (*models.ChartOfAccount, error) {
	defer (*Store)(s).lock()()
	if a, ok := s.data.accounts[id]; ok {
		return &a, nil
	}
	return nil, lederrors.NotFoundError("account", id)
}

func (s *accountStore) FindByCode(_ context.Context, code string) (*models.ChartOfAccount, error) {
	defer (*Store)(s).lock()()
	for _, a := range s.data.accounts {
		if a.AccountCode == code {
			acc := a
			return &acc, nil
		}
	}
	return nil, lederrors.NotFoundError("account", code)
}

func (s *accountStore) Save(_ context.Context, account *models.ChartOfAccount) error {
	defer (*Store)(s).lock()()
	ensureID(&account.ID)
	s.data.accounts[account.ID] = *account
	return nil
}

// --- templates ---

type templateStore Store

func (s *templateStore) FindByID(_ context.Context, id string) (*models.JournalTemplate, error) {
	defer (*Store)(s).lock()()
	t, ok := s.data.templates[id]
	if !ok {
		return nil, lederrors.NotFoundError("journal template", id)
	}
	t.Lines = append([]models.TemplateLine(nil), t.Lines...)
	sort.Slice(t.Lines, func(i, j int) bool { return t.Lines[i].LineOrder < t.Lines[j].LineOrder })
	return &t, nil
}

func (s *templateStore) Save(_ context.Context, template *models.JournalTemplate) error {
	defer (*Store)(s).lock()()
	ensureID(&template.ID)
	for i := range template.Lines {
		ensureID(&template.Lines[i].ID)
		template.Lines[i].TemplateID = template.ID
	}
	t := *template
	t.Lines = append([]models.TemplateLine(nil), template.Lines...)
	s.data.templates[t.ID] = t
	return nil
}

// --- transactions ---

type transactionStore Store

func (s *transactionStore) FindByID(_ context.Context, id string) (*models.Transaction, error) {
	defer (*Store)(s).lock()()
	tx, ok := s.data.transactions[id]
	if !ok {
		return nil, lederrors.NotFoundError("transaction", id)
	}
	tx.Entries = append([]models.JournalEntry(nil), tx.Entries...)
	tx.AccountOverrides = append([]models.AccountOverride(nil), tx.AccountOverrides...)
	tx.Variables = append([]models.TransactionVariable(nil), tx.Variables...)
	return &tx, nil
}

func (s *transactionStore) Save(_ context.Context, tx *models.Transaction) error {
	defer (*Store)(s).lock()()
	ensureID(&tx.ID)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	tx.UpdatedAt = time.Now()
	for i := range tx.Entries {
		ensureID(&tx.Entries[i].ID)
		tx.Entries[i].TransactionID = tx.ID
		if tx.Entries[i].CreatedAt.IsZero() {
			tx.Entries[i].CreatedAt = time.Now()
		}
	}
	for i := range tx.AccountOverrides {
		ensureID(&tx.AccountOverrides[i].ID)
		tx.AccountOverrides[i].TransactionID = tx.ID
	}
	for i := range tx.Variables {
		ensureID(&tx.Variables[i].ID)
		tx.Variables[i].TransactionID = tx.ID
	}
	cp := *tx
	cp.Entries = append([]models.JournalEntry(nil), tx.Entries...)
	cp.AccountOverrides = append([]models.AccountOverride(nil), tx.AccountOverrides...)
	cp.Variables = append([]models.TransactionVariable(nil), tx.Variables...)
	s.data.transactions[cp.ID] = cp
	return nil
}

func (s *transactionStore) Delete(_ context.Context, id string) error {
	defer (*Store)(s).lock()()
	if _, ok := s.data.transactions[id]; !ok {
		return lederrors.NotFoundError("transaction", id)
	}
	delete(s.data.transactions, id)
	return nil
}

func (s *transactionStore) PostedEntriesByAccountAndDateRange(_ context.Context, accountID string, from, to *time.Time) ([]models.JournalEntry, error) {
	defer (*Store)(s).lock()()
	var entries []models.JournalEntry
	for _, tx := range s.data.transactions {
		if tx.Status != models.StatusPosted {
			continue
		}
		for _, e := range tx.Entries {
			if e.AccountID != accountID {
				continue
			}
			if from != nil && e.JournalDate.Before(*from) {
				continue
			}
			if to != nil && e.JournalDate.After(*to) {
				continue
			}
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].JournalDate.Equal(entries[j].JournalDate) {
			return entries[i].JournalDate.Before(entries[j].JournalDate)
		}
		return entries[i].JournalNumber < entries[j].JournalNumber
	})
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

type sequenceStore Store

func sequenceKey(sequenceType string, year int) string {
	return fmt.Sprintf("%s|%d", sequenceType, year)
}

func (s *sequenceStore) Lock(_ context.Context, sequenceType string, year int) (*models.TransactionSequence, error) {
	defer (*Store)(s).lock()()
	key := sequenceKey(sequenceType, year)
	if seq, ok := s.data.sequences[key]; ok {
		return &seq, nil
	}
	prefix := "TRX"
	if sequenceType == models.SequenceTypeJournal {
		prefix = "JE"
	}
	seq := models.TransactionSequence{
		ID:           uuid.NewString(),
		SequenceType: sequenceType,
		Year:         year,
		Prefix:       prefix,
		LastNumber:   0,
	}
	s.data.sequences[key] = seq
	return &seq, nil
}

func (s *sequenceStore) Save(_ context.Context, seq *models.TransactionSequence) error {
	defer (*Store)(s).lock()()
	s.data.sequences[sequenceKey(seq.SequenceType, seq.Year)] = *seq
	return nil
}

// --- statements ---

type statementStore Store

func (s *statementStore) FindByID(_ context.Context, id string) (*models.BankStatement, error) {
	defer (*Store)(s).lock()()
	st, ok := s.data.statements[id]
	if !ok {
		return nil, lederrors.NotFoundError("bank statement", id)
	}
	st.Items = (*Store)(s).itemsOfStatement(id, nil)
	return &st, nil
}

func (s *statementStore) Save(_ context.Context, statement *models.BankStatement) error {
	defer (*Store)(s).lock()()
	ensureID(&statement.ID)
	for i := range statement.Items {
		item := &statement.Items[i]
		ensureID(&item.ID)
		item.StatementID = statement.ID
		if item.MatchStatus == "" {
			item.MatchStatus = models.MatchStatusUnmatched
		}
		s.data.statementItems[item.ID] = *item
	}
	st := *statement
	st.Items = nil
	s.data.statements[st.ID] = st
	return nil
}

func (s *statementStore) FindItem(_ context.Context, itemID string) (*models.BankStatementItem, error) {
	defer (*Store)(s).lock()()
	if item, ok := s.data.statementItems[itemID]; ok {
		return &item, nil
	}
	return nil, lederrors.NotFoundError("statement item", itemID)
}

func (s *statementStore) SaveItem(_ context.Context, item *models.BankStatementItem) error {
	defer (*Store)(s).lock()()
	ensureID(&item.ID)
	s.data.statementItems[item.ID] = *item
	return nil
}

func (s *statementStore) ItemsByStatus(_ context.Context, statementID string, status models.MatchStatus) ([]models.BankStatementItem, error) {
	defer (*Store)(s).lock()()
	return (*Store)(s).itemsOfStatement(statementID, &status), nil
}

func (s *statementStore) CountItemsByStatus(_ context.Context, statementID string, status models.MatchStatus) (int, error) {
	defer (*Store)(s).lock()()
	return len((*Store)(s).itemsOfStatement(statementID, &status)), nil
}

// itemsOfStatement assumes the caller holds the store mutex.
func (s *Store) itemsOfStatement(statementID string, status *models.MatchStatus) []models.BankStatementItem {
	var items []models.BankStatementItem
	for _, item := range s.data.statementItems {
		if item.StatementID != statementID {
			continue
		}
		if status != nil && item.MatchStatus != *status {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LineNumber < items[j].LineNumber })
	return items
}

// --- reconciliations ---

type reconciliationStore Store

func (s *reconciliationStore) FindByID(_ context.Context, id string) (*models.BankReconciliation, error) {
	defer (*Store)(s).lock()()
	if rec, ok := s.data.reconciliations[id]; ok {
		return &rec, nil
	}
	return nil, lederrors.NotFoundError("reconciliation", id)
}

func (s *reconciliationStore) Save(_ context.Context, rec *models.BankReconciliation) error {
	defer (*Store)(s).lock()()
	ensureID(&rec.ID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	s.data.reconciliations[rec.ID] = *rec
	return nil
}

func (s *reconciliationStore) FindItemByID(_ context.Context, itemID string) (*models.ReconciliationItem, error) {
	defer (*Store)(s).lock()()
	if item, ok := s.data.recItems[itemID]; ok {
		return &item, nil
	}
	return nil, lederrors.NotFoundError("reconciliation item", itemID)
}

func (s *reconciliationStore) SaveItem(_ context.Context, item *models.ReconciliationItem) error {
	defer (*Store)(s).lock()()
	ensureID(&item.ID)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.data.recItems[item.ID] = *item
	return nil
}

func (s *reconciliationStore) ItemsByReconciliation(_ context.Context, reconciliationID string) ([]models.ReconciliationItem, error) {
	defer (*Store)(s).lock()()
	var items []models.ReconciliationItem
	for _, item := range s.data.recItems {
		if item.ReconciliationID == reconciliationID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
