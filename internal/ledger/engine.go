// Package ledger implements the double-entry posting engine: transaction
// lifecycle, journal entry generation, and audit-preserving voiding.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	lederrors "accounting-ledger-service/pkg/errors"
	"accounting-ledger-service/pkg/logger"

	"accounting-ledger-service/internal/formula"
	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/sequence"
	"accounting-ledger-service/internal/storage"
	"accounting-ledger-service/internal/template"
)

// Engine drives transactions through DRAFT -> POSTED -> VOID. All writes
// happen inside a single atomic store scope per operation, so a failed post
// or void leaves nothing behind.
type Engine struct {
	store    storage.Store
	resolver *template.Resolver
	logger   logger.Logger
}

// NewEngine creates a posting engine over the given store.
func NewEngine(store storage.Store, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		store:    store,
		resolver: template.NewResolver(log),
		logger:   log.WithComponent("ledger-engine"),
	}
}

// CreateParams carries everything needed to open a draft transaction.
type CreateParams struct {
	TemplateID      string
	Amount          decimal.Decimal
	Date            time.Time
	Description     string
	ReferenceNumber string
	Notes           string
	ProjectTag      string

	// Overrides maps template line IDs to accounts, replacing a line's
	// static account or resolving its hint.
	Overrides map[string]string
	// Variables feed formula evaluation at posting time.
	Variables map[string]decimal.Decimal

	Actor string
}

// Create opens a DRAFT transaction and assigns its number immediately, so
// the draft can be referenced before it is committed to the ledger.
func (e *Engine) Create(ctx context.Context, params CreateParams) (*models.Transaction, error) {
	tx := &models.Transaction{
		TemplateID:      params.TemplateID,
		TransactionDate: params.Date,
		Amount:          params.Amount,
		Description:     params.Description,
		ReferenceNumber: params.ReferenceNumber,
		Notes:           params.Notes,
		ProjectTag:      params.ProjectTag,
		Status:          models.StatusDraft,
		CreatedBy:       params.Actor,
	}
	if err := tx.Validate(); err != nil {
		return nil, lederrors.ValidationErrorf(lederrors.CodeMissingField, "%v", err)
	}
	for lineID, accountID := range params.Overrides {
		tx.AccountOverrides = append(tx.AccountOverrides, models.AccountOverride{
			TemplateLineID: lineID,
			AccountID:      accountID,
		})
	}
	for name, value := range params.Variables {
		tx.Variables = append(tx.Variables, models.TransactionVariable{
			Name:  name,
			Value: value,
		})
	}

	err := e.store.Atomically(ctx, func(s storage.Store) error {
		tmpl, err := s.Templates().FindByID(ctx, params.TemplateID)
		if err != nil {
			return err
		}

		number, err := sequence.Next(ctx, s, models.SequenceTypeTransaction, params.Date.Year())
		if err != nil {
			return err
		}
		tx.TransactionNumber = number

		tmpl.UsageCount++
		if err := s.Templates().Save(ctx, tmpl); err != nil {
			return err
		}
		return s.Transactions().Save(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"transaction_id":     tx.ID,
		"transaction_number": tx.TransactionNumber,
		"template_id":        tx.TemplateID,
	}).Info("Created draft transaction")
	return tx, nil
}

// UpdateParams carries the fields a draft transaction may still change.
type UpdateParams struct {
	Amount          *decimal.Decimal
	Date            *time.Time
	Description     *string
	ReferenceNumber *string
	Notes           *string
	ProjectTag      *string
}

// Update modifies a transaction while it is still DRAFT.
func (e *Engine) Update(ctx context.Context, id string, params UpdateParams) (*models.Transaction, error) {
	var updated *models.Transaction
	err := e.store.Atomically(ctx, func(s storage.Store) error {
		tx, err := s.Transactions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !tx.IsDraft() {
			return lederrors.IllegalStateError(lederrors.CodeNotDraft,
				"transaction %s is %s, only drafts can be updated", tx.TransactionNumber, tx.Status)
		}

		if params.Amount != nil {
			tx.Amount = *params.Amount
		}
		if params.Date != nil {
			tx.TransactionDate = *params.Date
		}
		if params.Description != nil {
			tx.Description = *params.Description
		}
		if params.ReferenceNumber != nil {
			tx.ReferenceNumber = *params.ReferenceNumber
		}
		if params.Notes != nil {
			tx.Notes = *params.Notes
		}
		if params.ProjectTag != nil {
			tx.ProjectTag = *params.ProjectTag
		}
		if err := tx.Validate(); err != nil {
			return lederrors.ValidationErrorf(lederrors.CodeMissingField, "%v", err)
		}

		if err := s.Transactions().Save(ctx, tx); err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a transaction while it is still DRAFT. Posted and voided
// transactions are permanent.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.Atomically(ctx, func(s storage.Store) error {
		tx, err := s.Transactions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !tx.IsDraft() {
			return lederrors.IllegalStateError(lederrors.CodeNotDraft,
				"transaction %s is %s, only drafts can be deleted", tx.TransactionNumber, tx.Status)
		}
		return s.Transactions().Delete(ctx, id)
	})
}

// Post turns a draft into a posted transaction: every template line becomes
// one journal entry under a freshly allocated journal-number group, and the
// debit/credit totals are verified before anything is persisted.
func (e *Engine) Post(ctx context.Context, id, actor string) (*models.Transaction, error) {
	var posted *models.Transaction
	err := e.store.Atomically(ctx, func(s storage.Store) error {
		tx, err := s.Transactions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !tx.IsDraft() {
			return lederrors.IllegalStateError(lederrors.CodeNotDraft,
				"transaction %s is %s, only drafts can be posted", tx.TransactionNumber, tx.Status)
		}

		tmpl, err := s.Templates().FindByID(ctx, tx.TemplateID)
		if err != nil {
			return err
		}

		fctx := formula.Context{Amount: tx.Amount, Variables: tx.VariableMap()}
		resolved, err := e.resolver.Resolve(tmpl, tx.OverrideMap(), fctx)
		if err != nil {
			return err
		}
		if len(resolved) == 0 {
			return lederrors.InvariantViolation(lederrors.CodeUnbalancedJournal,
				"template %s resolved to zero postable lines", tmpl.Name)
		}

		group, err := sequence.Next(ctx, s, models.SequenceTypeJournal, tx.TransactionDate.Year())
		if err != nil {
			return err
		}

		entries := make([]models.JournalEntry, 0, len(resolved))
		totalDebit, totalCredit := decimal.Zero, decimal.Zero
		for i, line := range resolved {
			entry := models.JournalEntry{
				JournalNumber: fmt.Sprintf("%s-%02d", group, i+1),
				AccountID:     line.AccountID,
				JournalDate:   tx.TransactionDate,
				Description:   entryDescription(line.Line.Description, tx.Description),
				ProjectTag:    tx.ProjectTag,
			}
			switch line.Line.Position {
			case models.PositionDebit:
				entry.DebitAmount = line.Amount
				totalDebit = totalDebit.Add(line.Amount)
			case models.PositionCredit:
				entry.CreditAmount = line.Amount
				totalCredit = totalCredit.Add(line.Amount)
			}
			entries = append(entries, entry)
		}

		// The balance check runs before any entry is written. An imbalance
		// means a malformed template or a skipped hint line, and nothing
		// of the attempt may survive.
		if !totalDebit.Equal(totalCredit) {
			return lederrors.InvariantViolation(lederrors.CodeUnbalancedJournal,
				"journal does not balance: debit %s vs credit %s", totalDebit, totalCredit)
		}

		now := time.Now()
		tx.Entries = entries
		tx.Status = models.StatusPosted
		tx.PostedAt = &now
		tx.PostedBy = actor
		if err := s.Transactions().Save(ctx, tx); err != nil {
			return err
		}
		posted = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"transaction_id":     posted.ID,
		"transaction_number": posted.TransactionNumber,
		"entries":            len(posted.Entries),
		"actor":              actor,
	}).Info("Posted transaction")
	return posted, nil
}

// Void reverses a posted transaction. Each original entry gets one mirror
// entry with debit and credit swapped under a new journal-number group; the
// originals are kept and only annotated with the void timestamp.
func (e *Engine) Void(ctx context.Context, id string, reason models.VoidReason, notes, actor string) (*models.Transaction, error) {
	if !reason.IsValid() {
		return nil, lederrors.ValidationError(lederrors.CodeMissingField, "voidReason", string(reason))
	}

	var voided *models.Transaction
	err := e.store.Atomically(ctx, func(s storage.Store) error {
		tx, err := s.Transactions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !tx.IsPosted() {
			return lederrors.IllegalStateError(lederrors.CodeNotPosted,
				"transaction %s is %s, only posted transactions can be voided", tx.TransactionNumber, tx.Status)
		}

		now := time.Now()
		group, err := sequence.Next(ctx, s, models.SequenceTypeJournal, now.Year())
		if err != nil {
			return err
		}

		// Iterate a stable snapshot: the reversals are appended to the same
		// collection we are reading.
		originals := append([]models.JournalEntry(nil), tx.Entries...)
		for i := range tx.Entries {
			tx.Entries[i].VoidedAt = &now
		}
		for i, orig := range originals {
			origID := orig.ID
			tx.Entries = append(tx.Entries, models.JournalEntry{
				JournalNumber:   fmt.Sprintf("%s-%02d", group, i+1),
				AccountID:       orig.AccountID,
				JournalDate:     now,
				Description:     "Reversal of " + orig.JournalNumber,
				DebitAmount:     orig.CreditAmount,
				CreditAmount:    orig.DebitAmount,
				ProjectTag:      orig.ProjectTag,
				IsReversal:      true,
				ReversedEntryID: &origID,
			})
		}

		tx.Status = models.StatusVoid
		tx.VoidReason = &reason
		tx.VoidNotes = notes
		tx.VoidedAt = &now
		tx.VoidedBy = actor
		if err := s.Transactions().Save(ctx, tx); err != nil {
			return err
		}
		voided = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"transaction_id":     voided.ID,
		"transaction_number": voided.TransactionNumber,
		"reason":             string(reason),
		"actor":              actor,
	}).Info("Voided transaction")
	return voided, nil
}

// Preview shows the journal lines a template would produce for a given
// amount without creating anything. Unresolved hints are returned as
// placeholders.
func (e *Engine) Preview(ctx context.Context, templateID string, amount decimal.Decimal, overrides map[string]string, variables map[string]decimal.Decimal) ([]template.PreviewLine, error) {
	tmpl, err := e.store.Templates().FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	fctx := formula.Context{Amount: amount, Variables: variables}
	return e.resolver.Preview(tmpl, overrides, fctx)
}

func entryDescription(lineDescription, fallback string) string {
	if lineDescription != "" {
		return lineDescription
	}
	return fallback
}
