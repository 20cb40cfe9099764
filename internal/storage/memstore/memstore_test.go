package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage"
)

func TestTransactionRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx := &models.Transaction{
		TransactionNumber: "TRX-2024-00001",
		TemplateID:        "tpl-1",
		TransactionDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:            decimal.NewFromInt(50000),
		Description:       "Penjualan tunai",
		Status:            models.StatusDraft,
		Variables: []models.TransactionVariable{
			{Name: "discount", Value: decimal.NewFromInt(5000)},
		},
	}
	require.NoError(t, store.Transactions().Save(ctx, tx))
	require.NotEmpty(t, tx.ID)

	got, err := store.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRX-2024-00001", got.TransactionNumber)
	require.Len(t, got.Variables, 1)
	assert.Equal(t, tx.ID, got.Variables[0].TransactionID)

	_, err = store.Transactions().FindByID(ctx, "missing")
	assert.True(t, lederrors.IsNotFound(err))
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Atomically(ctx, func(s storage.Store) error {
		tx := &models.Transaction{
			TransactionNumber: "TRX-2024-00001",
			TemplateID:        "tpl-1",
			TransactionDate:   time.Now(),
			Amount:            decimal.NewFromInt(1000),
			Description:       "should not survive",
			Status:            models.StatusDraft,
		}
		if err := s.Transactions().Save(ctx, tx); err != nil {
			return err
		}
		return lederrors.InvariantViolation(lederrors.CodeUnbalancedJournal, "forced failure")
	})
	require.Error(t, err)

	_, err = store.Transactions().FindByID(ctx, "any")
	assert.True(t, lederrors.IsNotFound(err))

	// Nothing written: the sequence row created inside a failed scope is
	// rolled back too.
	seq, err := store.Sequences().Lock(ctx, models.SequenceTypeTransaction, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq.LastNumber)
}

func TestSequenceLockLazyCreates(t *testing.T) {
	store := New()
	ctx := context.Background()

	seq, err := store.Sequences().Lock(ctx, models.SequenceTypeTransaction, 2024)
	require.NoError(t, err)
	assert.Equal(t, "TRX", seq.Prefix)
	assert.Equal(t, int64(0), seq.LastNumber)

	seq.LastNumber = 7
	require.NoError(t, store.Sequences().Save(ctx, seq))

	again, err := store.Sequences().Lock(ctx, models.SequenceTypeTransaction, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(7), again.LastNumber)

	journal, err := store.Sequences().Lock(ctx, models.SequenceTypeJournal, 2024)
	require.NoError(t, err)
	assert.Equal(t, "JE", journal.Prefix)
}

func TestSumPostedByAccountIgnoresDrafts(t *testing.T) {
	store := New()
	ctx := context.Background()
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	posted := &models.Transaction{
		TransactionNumber: "TRX-2024-00001",
		TemplateID:        "tpl-1",
		TransactionDate:   date,
		Amount:            decimal.NewFromInt(100000),
		Description:       "posted tx",
		Status:            models.StatusPosted,
		Entries: []models.JournalEntry{
			{JournalNumber: "JE-2024-00001-01", AccountID: "acc-kas", JournalDate: date, DebitAmount: decimal.NewFromInt(100000)},
			{JournalNumber: "JE-2024-00001-02", AccountID: "acc-pendapatan", JournalDate: date, CreditAmount: decimal.NewFromInt(100000)},
		},
	}
	require.NoError(t, store.Transactions().Save(ctx, posted))

	draft := &models.Transaction{
		TransactionNumber: "TRX-2024-00002",
		TemplateID:        "tpl-1",
		TransactionDate:   date,
		Amount:            decimal.NewFromInt(999),
		Description:       "draft tx",
		Status:            models.StatusDraft,
		Entries: []models.JournalEntry{
			{AccountID: "acc-kas", JournalDate: date, DebitAmount: decimal.NewFromInt(999)},
		},
	}
	require.NoError(t, store.Transactions().Save(ctx, draft))

	debit, credit, err := store.Transactions().SumPostedByAccount(ctx, "acc-kas", nil, nil)
	require.NoError(t, err)
	assert.True(t, debit.Equal(decimal.NewFromInt(100000)), "debit = %s", debit)
	assert.True(t, credit.IsZero())

	before := date.AddDate(0, 0, -1)
	debit, _, err = store.Transactions().SumPostedByAccount(ctx, "acc-kas", nil, &before)
	require.NoError(t, err)
	assert.True(t, debit.IsZero())
}

func TestStatementItemsOrderedByLine(t *testing.T) {
	store := New()
	ctx := context.Background()

	stmt := &models.BankStatement{
		AccountID: "acc-bank",
		BankName:  "BCA",
		Items: []models.BankStatementItem{
			{LineNumber: 3, Description: "PLN LISTRIK", DebitAmount: decimal.NewFromInt(250000)},
			{LineNumber: 1, Description: "SETORAN", CreditAmount: decimal.NewFromInt(500000)},
			{LineNumber: 2, Description: "BIAYA ADMIN", DebitAmount: decimal.NewFromInt(15000)},
		},
	}
	require.NoError(t, store.Statements().Save(ctx, stmt))

	items, err := store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{items[0].LineNumber, items[1].LineNumber, items[2].LineNumber})

	count, err := store.Statements().CountItemsByStatus(ctx, stmt.ID, models.MatchStatusMatched)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
