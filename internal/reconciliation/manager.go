// Package reconciliation owns the bank reconciliation lifecycle: session
// creation, the three-pass auto matcher, manual match operations, and the
// derived summary figures.
package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	lederrors "accounting-ledger-service/pkg/errors"
	"accounting-ledger-service/pkg/logger"

	"accounting-ledger-service/internal/ledger"
	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage"
)

// Manager drives reconciliations through DRAFT -> IN_PROGRESS -> COMPLETED.
// Auto-match must not run concurrently for the same reconciliation: the
// consumed set lives in the invocation only and is not re-validated against
// storage between passes.
type Manager struct {
	store  storage.Store
	engine *ledger.Engine
	logger logger.Logger
}

// NewManager creates a reconciliation manager. The posting engine is used
// when booking a transaction directly from a statement line.
func NewManager(store storage.Store, engine *ledger.Engine, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Manager{
		store:  store,
		engine: engine,
		logger: log.WithComponent("reconciliation-manager"),
	}
}

// Create opens a reconciliation for an imported statement. The book balance
// is computed here, once: the account's balance carried into the period plus
// the period's posted net movement. It is never recomputed afterwards.
func (m *Manager) Create(ctx context.Context, statementID, actor, notes string) (*models.BankReconciliation, error) {
	var rec *models.BankReconciliation
	err := m.store.Atomically(ctx, func(s storage.Store) error {
		statement, err := s.Statements().FindByID(ctx, statementID)
		if err != nil {
			return err
		}

		priorEnd := statement.PeriodStart.AddDate(0, 0, -1)
		priorDebit, priorCredit, err := s.Transactions().SumPostedByAccount(ctx, statement.AccountID, nil, &priorEnd)
		if err != nil {
			return err
		}
		periodDebit, periodCredit, err := s.Transactions().SumPostedByAccount(ctx, statement.AccountID, &statement.PeriodStart, &statement.PeriodEnd)
		if err != nil {
			return err
		}
		bookBalance := priorDebit.Sub(priorCredit).Add(periodDebit.Sub(periodCredit))

		rec = &models.BankReconciliation{
			StatementID:         statement.ID,
			AccountID:           statement.AccountID,
			PeriodStart:         statement.PeriodStart,
			PeriodEnd:           statement.PeriodEnd,
			Status:              models.ReconciliationDraft,
			BookBalance:         bookBalance,
			BankBalance:         statement.ClosingBalance,
			TotalStatementItems: len(statement.Items),
			Notes:               notes,
			CreatedBy:           actor,
		}
		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"reconciliation_id": rec.ID,
		"statement_id":      statementID,
		"book_balance":      rec.BookBalance.String(),
		"bank_balance":      rec.BankBalance.String(),
	}).Info("Created reconciliation")
	return rec, nil
}

// AutoMatch runs the three matching passes over the statement's unmatched
// items. Returns the matches applied in this invocation.
func (m *Manager) AutoMatch(ctx context.Context, reconciliationID, actor string) ([]MatchResult, error) {
	var applied []MatchResult
	err := m.store.Atomically(ctx, func(s storage.Store) error {
		rec, err := m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}

		items, err := s.Statements().ItemsByStatus(ctx, rec.StatementID, models.MatchStatusUnmatched)
		if err != nil {
			return err
		}
		entries, err := m.candidateEntries(ctx, s, rec.AccountID)
		if err != nil {
			return err
		}
		consumed, err := m.seedConsumed(ctx, s, rec.StatementID)
		if err != nil {
			return err
		}

		applied, _ = MatchAll(items, entries, consumed)

		now := time.Now()
		for _, match := range applied {
			item := match.Item
			matchType := match.Type
			transactionID := match.Entry.TransactionID
			item.MatchStatus = models.MatchStatusMatched
			item.MatchType = &matchType
			item.MatchedTransactionID = &transactionID
			item.MatchedAt = &now
			item.MatchedBy = actor
			if err := s.Statements().SaveItem(ctx, &item); err != nil {
				return err
			}

			itemID := item.ID
			audit := models.ReconciliationItem{
				ReconciliationID: rec.ID,
				StatementItemID:  &itemID,
				TransactionID:    &transactionID,
				MatchStatus:      models.MatchStatusMatched,
				MatchType:        &matchType,
				Confidence:       match.Confidence,
				CreatedBy:        actor,
			}
			if err := s.Reconciliations().SaveItem(ctx, &audit); err != nil {
				return err
			}
		}

		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"reconciliation_id": reconciliationID,
		"matched":           len(applied),
	}).Info("Auto-match finished")
	return applied, nil
}

// ManualMatch pairs an explicit statement item with an explicit posted
// transaction at full confidence.
func (m *Manager) ManualMatch(ctx context.Context, reconciliationID, statementItemID, transactionID, actor string) error {
	return m.store.Atomically(ctx, func(s storage.Store) error {
		rec, err := m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}
		item, err := s.Statements().FindItem(ctx, statementItemID)
		if err != nil {
			return err
		}
		if !item.IsUnmatched() {
			return lederrors.IllegalStateError(lederrors.CodeAlreadyMatched,
				"statement line %d is already %s", item.LineNumber, item.MatchStatus)
		}
		tx, err := s.Transactions().FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if !tx.IsPosted() {
			return lederrors.IllegalStateError(lederrors.CodeNotPosted,
				"transaction %s is %s, only posted transactions can be matched", tx.TransactionNumber, tx.Status)
		}

		now := time.Now()
		matchType := models.MatchManual
		item.MatchStatus = models.MatchStatusMatched
		item.MatchType = &matchType
		item.MatchedTransactionID = &transactionID
		item.MatchedAt = &now
		item.MatchedBy = actor
		if err := s.Statements().SaveItem(ctx, item); err != nil {
			return err
		}

		itemID := item.ID
		audit := models.ReconciliationItem{
			ReconciliationID: rec.ID,
			StatementItemID:  &itemID,
			TransactionID:    &transactionID,
			MatchStatus:      models.MatchStatusMatched,
			MatchType:        &matchType,
			Confidence:       decimal.NewFromFloat(1.00),
			CreatedBy:        actor,
		}
		if err := s.Reconciliations().SaveItem(ctx, &audit); err != nil {
			return err
		}

		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
}

// MarkBankOnly records a statement line with no book counterpart, such as a
// bank fee or interest the books have not captured.
func (m *Manager) MarkBankOnly(ctx context.Context, reconciliationID, statementItemID, notes, actor string) error {
	return m.store.Atomically(ctx, func(s storage.Store) error {
		rec, err := m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}
		item, err := s.Statements().FindItem(ctx, statementItemID)
		if err != nil {
			return err
		}
		if !item.IsUnmatched() {
			return lederrors.IllegalStateError(lederrors.CodeAlreadyMatched,
				"statement line %d is already %s", item.LineNumber, item.MatchStatus)
		}

		item.MatchStatus = models.MatchStatusBankOnly
		if err := s.Statements().SaveItem(ctx, item); err != nil {
			return err
		}

		itemID := item.ID
		audit := models.ReconciliationItem{
			ReconciliationID: rec.ID,
			StatementItemID:  &itemID,
			MatchStatus:      models.MatchStatusBankOnly,
			Notes:            notes,
			CreatedBy:        actor,
		}
		if err := s.Reconciliations().SaveItem(ctx, &audit); err != nil {
			return err
		}

		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
}

// MarkBookOnly records a posted transaction with no statement counterpart,
// such as an outstanding check the bank has not cleared.
func (m *Manager) MarkBookOnly(ctx context.Context, reconciliationID, transactionID, notes, actor string) error {
	return m.store.Atomically(ctx, func(s storage.Store) error {
		rec, err := m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}
		tx, err := s.Transactions().FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if !tx.IsPosted() {
			return lederrors.IllegalStateError(lederrors.CodeNotPosted,
				"transaction %s is %s, only posted transactions can be marked", tx.TransactionNumber, tx.Status)
		}

		audit := models.ReconciliationItem{
			ReconciliationID: rec.ID,
			TransactionID:    &transactionID,
			MatchStatus:      models.MatchStatusBookOnly,
			Notes:            notes,
			CreatedBy:        actor,
		}
		if err := s.Reconciliations().SaveItem(ctx, &audit); err != nil {
			return err
		}

		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
}

// Unmatch returns a matched statement item to UNMATCHED. The audit row of
// the match is kept and stamped, so the provenance of the earlier decision
// survives.
func (m *Manager) Unmatch(ctx context.Context, reconciliationID, statementItemID, actor string) error {
	return m.store.Atomically(ctx, func(s storage.Store) error {
		rec, err := m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}
		item, err := s.Statements().FindItem(ctx, statementItemID)
		if err != nil {
			return err
		}
		if item.MatchStatus != models.MatchStatusMatched && item.MatchStatus != models.MatchStatusBankOnly {
			return lederrors.IllegalStateError(lederrors.CodeAlreadyMatched,
				"statement line %d is %s, nothing to unmatch", item.LineNumber, item.MatchStatus)
		}

		now := time.Now()
		auditRows, err := s.Reconciliations().ItemsByReconciliation(ctx, rec.ID)
		if err != nil {
			return err
		}
		for i := range auditRows {
			row := &auditRows[i]
			if !row.IsCurrent() || row.StatementItemID == nil || *row.StatementItemID != item.ID {
				continue
			}
			row.MatchStatus = models.MatchStatusUnmatched
			row.UnmatchedAt = &now
			row.UnmatchedBy = actor
			if err := s.Reconciliations().SaveItem(ctx, row); err != nil {
				return err
			}
		}

		item.MatchStatus = models.MatchStatusUnmatched
		item.MatchType = nil
		item.MatchedTransactionID = nil
		item.MatchedAt = nil
		item.MatchedBy = ""
		if err := s.Statements().SaveItem(ctx, item); err != nil {
			return err
		}

		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
}

// Complete closes the reconciliation. Every statement item must have a
// disposition (MATCHED or BANK_ONLY); the difference between adjusted
// balances is deliberately not enforced to be zero.
func (m *Manager) Complete(ctx context.Context, reconciliationID, actor string) (*models.BankReconciliation, error) {
	var rec *models.BankReconciliation
	err := m.store.Atomically(ctx, func(s storage.Store) error {
		var err error
		rec, err = m.loadOpen(ctx, s, reconciliationID)
		if err != nil {
			return err
		}

		outstanding, err := s.Statements().CountItemsByStatus(ctx, rec.StatementID, models.MatchStatusUnmatched)
		if err != nil {
			return err
		}
		if outstanding > 0 {
			return lederrors.IllegalStateError(lederrors.CodeUnmatchedItems,
				"%d statement items are still unmatched", outstanding)
		}

		now := time.Now()
		rec.Status = models.ReconciliationCompleted
		rec.CompletedAt = &now
		rec.CompletedBy = actor
		if err := m.refreshCounts(ctx, s, rec); err != nil {
			return err
		}
		return s.Reconciliations().Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"reconciliation_id": rec.ID,
		"completed_by":      actor,
	}).Info("Completed reconciliation")
	return rec, nil
}

// Summary derives the reconciliation figures on demand. BANK_ONLY lines
// adjust the book side (the bank knows about them, the books do not) and
// BOOK_ONLY rows adjust the bank side.
func (m *Manager) Summary(ctx context.Context, reconciliationID string) (*models.ReconciliationSummary, error) {
	rec, err := m.store.Reconciliations().FindByID(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}

	adjustedBook := rec.BookBalance
	bankOnly, err := m.store.Statements().ItemsByStatus(ctx, rec.StatementID, models.MatchStatusBankOnly)
	if err != nil {
		return nil, err
	}
	for _, item := range bankOnly {
		adjustedBook = adjustedBook.Add(item.NetAmount())
	}

	adjustedBank := rec.BankBalance
	auditRows, err := m.store.Reconciliations().ItemsByReconciliation(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	for _, row := range auditRows {
		if !row.IsCurrent() || row.MatchStatus != models.MatchStatusBookOnly || row.TransactionID == nil {
			continue
		}
		tx, err := m.store.Transactions().FindByID(ctx, *row.TransactionID)
		if err != nil {
			return nil, err
		}
		for _, entry := range tx.Entries {
			if entry.AccountID == rec.AccountID {
				adjustedBank = adjustedBank.Add(entry.NetAmount())
			}
		}
	}

	return &models.ReconciliationSummary{
		BookBalance:         rec.BookBalance,
		BankBalance:         rec.BankBalance,
		AdjustedBookBalance: adjustedBook,
		AdjustedBankBalance: adjustedBank,
		Difference:          adjustedBook.Sub(adjustedBank),
		MatchedCount:        rec.MatchedCount,
		UnmatchedBankCount:  rec.UnmatchedBankCount,
		UnmatchedBookCount:  rec.UnmatchedBookCount,
	}, nil
}

// UnmatchedBookTransactions lists the period's posted transactions touching
// the reconciled account that no statement line has claimed yet.
func (m *Manager) UnmatchedBookTransactions(ctx context.Context, reconciliationID string) ([]string, error) {
	rec, err := m.store.Reconciliations().FindByID(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	return m.unmatchedBookTransactions(ctx, m.store, rec)
}

// CreateFromStatementItem books and posts a transaction for a statement
// line that has no book counterpart, then matches the two manually. This is
// the usual path for bank charges discovered during reconciliation.
func (m *Manager) CreateFromStatementItem(ctx context.Context, reconciliationID, statementItemID, templateID, actor string) (*models.Transaction, error) {
	rec, err := m.store.Reconciliations().FindByID(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if rec.IsCompleted() {
		return nil, lederrors.IllegalStateError(lederrors.CodeAlreadyComplete,
			"reconciliation is already completed")
	}
	item, err := m.store.Statements().FindItem(ctx, statementItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsUnmatched() {
		return nil, lederrors.IllegalStateError(lederrors.CodeAlreadyMatched,
			"statement line %d is already %s", item.LineNumber, item.MatchStatus)
	}

	amount := item.NetAmount().Abs()
	tx, err := m.engine.Create(ctx, ledger.CreateParams{
		TemplateID:  templateID,
		Amount:      amount,
		Date:        item.TransactionDate,
		Description: item.Description,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}
	posted, err := m.engine.Post(ctx, tx.ID, actor)
	if err != nil {
		return nil, err
	}
	if err := m.ManualMatch(ctx, reconciliationID, statementItemID, posted.ID, actor); err != nil {
		return nil, err
	}
	return posted, nil
}

// loadOpen loads a reconciliation and moves a fresh DRAFT to IN_PROGRESS.
// Completed reconciliations reject further mutation.
func (m *Manager) loadOpen(ctx context.Context, s storage.Store, reconciliationID string) (*models.BankReconciliation, error) {
	rec, err := s.Reconciliations().FindByID(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if rec.IsCompleted() {
		return nil, lederrors.IllegalStateError(lederrors.CodeAlreadyComplete,
			"reconciliation is already completed")
	}
	if rec.Status == models.ReconciliationDraft {
		rec.Status = models.ReconciliationInProgress
	}
	return rec, nil
}

// candidateEntries returns the account's live posted entries. Entries of
// voided transactions and the reversals themselves never match.
func (m *Manager) candidateEntries(ctx context.Context, s storage.Store, accountID string) ([]models.JournalEntry, error) {
	entries, err := s.Transactions().PostedEntriesByAccountAndDateRange(ctx, accountID, nil, nil)
	if err != nil {
		return nil, err
	}
	live := entries[:0]
	for _, e := range entries {
		if e.IsReversal || e.VoidedAt != nil {
			continue
		}
		live = append(live, e)
	}
	return live, nil
}

// seedConsumed collects the transaction IDs the statement's items already
// claim, so re-running auto-match never double-books an entry.
func (m *Manager) seedConsumed(ctx context.Context, s storage.Store, statementID string) (ConsumedSet, error) {
	statement, err := s.Statements().FindByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	consumed := NewConsumedSet()
	for _, item := range statement.Items {
		if item.MatchedTransactionID != nil {
			consumed = consumed.add(*item.MatchedTransactionID)
		}
	}
	return consumed, nil
}

func (m *Manager) refreshCounts(ctx context.Context, s storage.Store, rec *models.BankReconciliation) error {
	matched, err := s.Statements().CountItemsByStatus(ctx, rec.StatementID, models.MatchStatusMatched)
	if err != nil {
		return err
	}
	unmatchedBank, err := s.Statements().CountItemsByStatus(ctx, rec.StatementID, models.MatchStatusUnmatched)
	if err != nil {
		return err
	}
	unmatchedBook, err := m.unmatchedBookTransactions(ctx, s, rec)
	if err != nil {
		return err
	}

	rec.MatchedCount = matched
	rec.UnmatchedBankCount = unmatchedBank
	rec.UnmatchedBookCount = len(unmatchedBook)
	return nil
}

func (m *Manager) unmatchedBookTransactions(ctx context.Context, s storage.Store, rec *models.BankReconciliation) ([]string, error) {
	entries, err := s.Transactions().PostedEntriesByAccountAndDateRange(ctx, rec.AccountID, &rec.PeriodStart, &rec.PeriodEnd)
	if err != nil {
		return nil, err
	}
	consumed, err := m.seedConsumed(ctx, s, rec.StatementID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var unmatched []string
	for _, e := range entries {
		if e.IsReversal || e.VoidedAt != nil {
			continue
		}
		if consumed.Has(e.TransactionID) {
			continue
		}
		if _, dup := seen[e.TransactionID]; dup {
			continue
		}
		seen[e.TransactionID] = struct{}{}
		unmatched = append(unmatched, e.TransactionID)
	}
	return unmatched, nil
}
