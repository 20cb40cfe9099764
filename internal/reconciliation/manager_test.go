package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/ledger"
	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage/memstore"
)

type fixture struct {
	store   *memstore.Store
	engine  *ledger.Engine
	manager *Manager
	inTmpl  *models.JournalTemplate // debit bank / credit revenue
	outTmpl *models.JournalTemplate // debit expense / credit bank
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()

	accounts := []models.ChartOfAccount{
		{ID: "acc-bank", AccountCode: "1102", AccountName: "Bank BCA", AccountType: models.AccountTypeAsset, NormalBalance: models.NormalBalanceDebit},
		{ID: "acc-pendapatan", AccountCode: "4101", AccountName: "Pendapatan", AccountType: models.AccountTypeRevenue, NormalBalance: models.NormalBalanceCredit},
		{ID: "acc-beban", AccountCode: "6101", AccountName: "Beban Operasional", AccountType: models.AccountTypeExpense, NormalBalance: models.NormalBalanceDebit},
	}
	for i := range accounts {
		require.NoError(t, store.Accounts().Save(ctx, &accounts[i]))
	}

	inTmpl := &models.JournalTemplate{
		Name: "Penerimaan Bank",
		Lines: []models.TemplateLine{
			{ID: "in-1", LineOrder: 1, Position: models.PositionDebit, AccountID: strPtr("acc-bank"), Formula: "amount"},
			{ID: "in-2", LineOrder: 2, Position: models.PositionCredit, AccountID: strPtr("acc-pendapatan"), Formula: "amount"},
		},
	}
	require.NoError(t, store.Templates().Save(ctx, inTmpl))

	outTmpl := &models.JournalTemplate{
		Name: "Pengeluaran Bank",
		Lines: []models.TemplateLine{
			{ID: "out-1", LineOrder: 1, Position: models.PositionDebit, AccountID: strPtr("acc-beban"), Formula: "amount"},
			{ID: "out-2", LineOrder: 2, Position: models.PositionCredit, AccountID: strPtr("acc-bank"), Formula: "amount"},
		},
	}
	require.NoError(t, store.Templates().Save(ctx, outTmpl))

	engine := ledger.NewEngine(store, nil)
	return &fixture{
		store:   store,
		engine:  engine,
		manager: NewManager(store, engine, nil),
		inTmpl:  inTmpl,
		outTmpl: outTmpl,
	}
}

func (f *fixture) postTransaction(t *testing.T, tmpl *models.JournalTemplate, amount int64, date time.Time, desc string) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	tx, err := f.engine.Create(ctx, ledger.CreateParams{
		TemplateID:  tmpl.ID,
		Amount:      decimal.NewFromInt(amount),
		Date:        date,
		Description: desc,
		Actor:       "budi",
	})
	require.NoError(t, err)
	posted, err := f.engine.Post(ctx, tx.ID, "budi")
	require.NoError(t, err)
	return posted
}

func (f *fixture) importStatement(t *testing.T, items []models.BankStatementItem, closing int64) *models.BankStatement {
	t.Helper()
	stmt := &models.BankStatement{
		AccountID:      "acc-bank",
		BankName:       "BCA",
		PeriodStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		ClosingBalance: decimal.NewFromInt(closing),
		Items:          items,
		ImportedAt:     time.Now(),
	}
	require.NoError(t, f.store.Statements().Save(context.Background(), stmt))
	return stmt
}

func TestCreate_ComputesBookBalanceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Prior-period deposit carries into the balance; the January receipt is
	// the period movement.
	f.postTransaction(t, f.inTmpl, 500000, time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC), "Setoran modal")
	f.postTransaction(t, f.inTmpl, 100000, day(10), "Bayar PLN Listrik Januari")

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "PLN LISTRIK", 100000),
	}, 600000)

	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "rekonsiliasi januari")
	require.NoError(t, err)
	assert.Equal(t, models.ReconciliationDraft, rec.Status)
	assert.True(t, rec.BookBalance.Equal(decimal.NewFromInt(600000)), "book balance = %s", rec.BookBalance)
	assert.True(t, rec.BankBalance.Equal(decimal.NewFromInt(600000)))
	assert.Equal(t, 1, rec.TotalStatementItems)
	assert.Equal(t, 1, rec.UnmatchedBankCount)
	// Only period transactions count as unmatched book items; the December
	// deposit is part of the carried-forward balance.
	assert.Equal(t, 1, rec.UnmatchedBookCount)
	assert.Equal(t, 0, rec.MatchedCount)
}

func TestAutoMatch_ExactScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.postTransaction(t, f.inTmpl, 100000, day(10), "Bayar PLN Listrik Januari")
	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "PLN LISTRIK", 100000),
	}, 100000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	results, err := f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.MatchExact, results[0].Type)
	assert.True(t, results[0].Confidence.Equal(decimal.NewFromFloat(1.00)))

	reloaded, err := f.store.Reconciliations().FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReconciliationInProgress, reloaded.Status)
	assert.Equal(t, 1, reloaded.MatchedCount)
	assert.Equal(t, 0, reloaded.UnmatchedBankCount)
	assert.Equal(t, 0, reloaded.UnmatchedBookCount)

	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusMatched)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, tx.ID, *items[0].MatchedTransactionID)
	assert.Equal(t, models.MatchExact, *items[0].MatchType)
	assert.Equal(t, "sari", items[0].MatchedBy)
	assert.NotNil(t, items[0].MatchedAt)

	audit, err := f.store.Reconciliations().ItemsByReconciliation(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.MatchStatusMatched, audit[0].MatchStatus)
	assert.True(t, audit[0].Confidence.Equal(decimal.NewFromFloat(1.00)))
}

func TestAutoMatch_RerunDoesNotDoubleBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN A", 100000),
		bankIn("", 2, day(10), "SETORAN B", 100000),
	}, 200000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	first, err := f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The single posted transaction is seeded as consumed on the rerun, so
	// the second statement line stays unmatched.
	second, err := f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	assert.Len(t, second, 0)
}

func TestAutoMatch_IgnoresVoidedTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	_, err := f.engine.Void(ctx, tx.ID, models.VoidDuplicate, "", "budi")
	require.NoError(t, err)

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN", 100000),
	}, 100000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	results, err := f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	assert.Len(t, results, 0, "voided entries and their reversals must not match")
}

func TestManualMatchAndUnmatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.postTransaction(t, f.inTmpl, 123456, day(5), "Pembayaran pelanggan")
	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(20), "TRANSFER", 123456), // too far for auto passes
	}, 123456)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)
	itemID := items[0].ID

	require.NoError(t, f.manager.ManualMatch(ctx, rec.ID, itemID, tx.ID, "sari"))

	item, err := f.store.Statements().FindItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusMatched, item.MatchStatus)
	assert.Equal(t, models.MatchManual, *item.MatchType)

	// A second manual match against the same line must fail.
	err = f.manager.ManualMatch(ctx, rec.ID, itemID, tx.ID, "sari")
	assert.True(t, lederrors.IsIllegalState(err))

	// Unmatch flips the line back but keeps the stamped audit row.
	require.NoError(t, f.manager.Unmatch(ctx, rec.ID, itemID, "sari"))

	item, err = f.store.Statements().FindItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusUnmatched, item.MatchStatus)
	assert.Nil(t, item.MatchedTransactionID)

	audit, err := f.store.Reconciliations().ItemsByReconciliation(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1, "unmatching must not delete the audit row")
	assert.Equal(t, models.MatchStatusUnmatched, audit[0].MatchStatus)
	assert.NotNil(t, audit[0].UnmatchedAt)
	assert.Equal(t, "sari", audit[0].UnmatchedBy)
	assert.False(t, audit[0].IsCurrent())

	reloaded, err := f.store.Reconciliations().FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.MatchedCount)
	assert.Equal(t, 1, reloaded.UnmatchedBankCount)
}

func TestManualMatch_RequiresPostedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.engine.Create(ctx, ledger.CreateParams{
		TemplateID:  f.inTmpl.ID,
		Amount:      decimal.NewFromInt(5000),
		Date:        day(5),
		Description: "draft only",
		Actor:       "budi",
	})
	require.NoError(t, err)

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(5), "TRANSFER", 5000),
	}, 5000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)

	err = f.manager.ManualMatch(ctx, rec.ID, items[0].ID, draft.ID, "sari")
	assert.True(t, lederrors.IsIllegalState(err))
}

func TestComplete_RequiresEveryItemDisposed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN", 100000),
		bankOut("", 2, day(28), "BIAYA ADM", 15000),
	}, 85000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	_, err = f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)

	// The admin-fee line is still unmatched.
	_, err = f.manager.Complete(ctx, rec.ID, "sari")
	require.True(t, lederrors.IsIllegalState(err))
	lerr, ok := lederrors.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, lederrors.CodeUnmatchedItems, lerr.Code)

	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)
	require.NoError(t, f.manager.MarkBankOnly(ctx, rec.ID, items[0].ID, "biaya administrasi bank", "sari"))

	completed, err := f.manager.Complete(ctx, rec.ID, "sari")
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted())
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, "sari", completed.CompletedBy)

	// Terminal: every further mutation is rejected.
	_, err = f.manager.AutoMatch(ctx, rec.ID, "sari")
	assert.True(t, lederrors.IsIllegalState(err))
	err = f.manager.MarkBankOnly(ctx, rec.ID, items[0].ID, "", "sari")
	assert.True(t, lederrors.IsIllegalState(err))
}

func TestSummary_NonzeroDifferenceRepresentable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	// The statement closes 5000 lower than anything the items explain; the
	// discrepancy remains after every line has a disposition.
	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN", 100000),
		bankOut("", 2, day(28), "BIAYA ADM", 15000),
	}, 80000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)
	assert.True(t, rec.BookBalance.Equal(decimal.NewFromInt(100000)))

	_, err = f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)
	require.NoError(t, f.manager.MarkBankOnly(ctx, rec.ID, items[0].ID, "fee", "sari"))

	// Completion succeeds even though the difference is not zero.
	completed, err := f.manager.Complete(ctx, rec.ID, "sari")
	require.NoError(t, err)
	require.True(t, completed.IsCompleted())

	summary, err := f.manager.Summary(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, summary.AdjustedBookBalance.Equal(decimal.NewFromInt(85000)), "adjusted book = %s", summary.AdjustedBookBalance)
	assert.True(t, summary.AdjustedBankBalance.Equal(decimal.NewFromInt(80000)), "adjusted bank = %s", summary.AdjustedBankBalance)
	assert.True(t, summary.Difference.Equal(decimal.NewFromInt(5000)), "difference = %s", summary.Difference)
}

func TestSummary_BookOnlyAdjustsBankSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	// Outstanding check: booked out of the bank account, not yet cleared.
	check := f.postTransaction(t, f.outTmpl, 40000, day(30), "Cek beredar")

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN", 100000),
	}, 100000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)
	assert.True(t, rec.BookBalance.Equal(decimal.NewFromInt(60000)), "book = %s", rec.BookBalance)

	_, err = f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)
	require.NoError(t, f.manager.MarkBookOnly(ctx, rec.ID, check.ID, "cek belum cair", "sari"))

	summary, err := f.manager.Summary(ctx, rec.ID)
	require.NoError(t, err)
	// The check reduces the bank side by 40000 once it clears.
	assert.True(t, summary.AdjustedBankBalance.Equal(decimal.NewFromInt(60000)), "adjusted bank = %s", summary.AdjustedBankBalance)
	assert.True(t, summary.Difference.IsZero(), "difference = %s", summary.Difference)
}

func TestCreateFromStatementItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankOut("", 1, day(28), "BIAYA ADMIN BANK", 15000),
	}, -15000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	items, err := f.store.Statements().ItemsByStatus(ctx, stmt.ID, models.MatchStatusUnmatched)
	require.NoError(t, err)

	tx, err := f.manager.CreateFromStatementItem(ctx, rec.ID, items[0].ID, f.outTmpl.ID, "sari")
	require.NoError(t, err)
	assert.True(t, tx.IsPosted())
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, "BIAYA ADMIN BANK", tx.Description)

	item, err := f.store.Statements().FindItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusMatched, item.MatchStatus)
	assert.Equal(t, tx.ID, *item.MatchedTransactionID)
	assert.Equal(t, models.MatchManual, *item.MatchType)
}

func TestUnmatchedBookTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	matched := f.postTransaction(t, f.inTmpl, 100000, day(10), "Setoran tunai")
	lonely := f.postTransaction(t, f.inTmpl, 77000, day(15), "Penjualan belum tercatat bank")

	stmt := f.importStatement(t, []models.BankStatementItem{
		bankIn("", 1, day(10), "SETORAN", 100000),
	}, 100000)
	rec, err := f.manager.Create(ctx, stmt.ID, "sari", "")
	require.NoError(t, err)

	_, err = f.manager.AutoMatch(ctx, rec.ID, "sari")
	require.NoError(t, err)

	unmatched, err := f.manager.UnmatchedBookTransactions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, lonely.ID, unmatched[0])
	assert.NotEqual(t, matched.ID, unmatched[0])
}
