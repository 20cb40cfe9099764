package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestJournalTemplate_Validate(t *testing.T) {
	validLines := []TemplateLine{
		{LineOrder: 1, Position: PositionDebit, AccountID: strPtr("acc-kas"), Formula: "amount"},
		{LineOrder: 2, Position: PositionCredit, AccountID: strPtr("acc-pendapatan"), Formula: "amount"},
	}

	tests := []struct {
		name     string
		template JournalTemplate
		wantErr  bool
	}{
		{
			name:     "valid template",
			template: JournalTemplate{Name: "Penjualan Tunai", Lines: validLines},
			wantErr:  false,
		},
		{
			name:     "empty name",
			template: JournalTemplate{Name: "  ", Lines: validLines},
			wantErr:  true,
		},
		{
			name:     "single line",
			template: JournalTemplate{Name: "Broken", Lines: validLines[:1]},
			wantErr:  true,
		},
		{
			name: "debit only",
			template: JournalTemplate{Name: "Debit Only", Lines: []TemplateLine{
				{LineOrder: 1, Position: PositionDebit, AccountID: strPtr("a"), Formula: "amount"},
				{LineOrder: 2, Position: PositionDebit, AccountID: strPtr("b"), Formula: "amount"},
			}},
			wantErr: true,
		},
		{
			name: "line without account or hint",
			template: JournalTemplate{Name: "No Account", Lines: []TemplateLine{
				{LineOrder: 1, Position: PositionDebit, Formula: "amount"},
				{LineOrder: 2, Position: PositionCredit, AccountID: strPtr("b"), Formula: "amount"},
			}},
			wantErr: true,
		},
		{
			name: "hinted line is valid",
			template: JournalTemplate{Name: "Hinted", Lines: []TemplateLine{
				{LineOrder: 1, Position: PositionDebit, AccountHint: strPtr("inventory-account"), Formula: "amount"},
				{LineOrder: 2, Position: PositionCredit, AccountID: strPtr("b"), Formula: "amount"},
			}},
			wantErr: false,
		},
		{
			name: "static account and hint are exclusive",
			template: JournalTemplate{Name: "Both", Lines: []TemplateLine{
				{LineOrder: 1, Position: PositionDebit, AccountID: strPtr("a"), AccountHint: strPtr("h"), Formula: "amount"},
				{LineOrder: 2, Position: PositionCredit, AccountID: strPtr("b"), Formula: "amount"},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.template.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{
		TemplateID:      "tpl-1",
		TransactionDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.NewFromInt(50000),
		Description:     "Bayar PLN Listrik Januari",
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid transaction, got error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
	}{
		{"missing template", func(tx *Transaction) { tx.TemplateID = "" }},
		{"zero date", func(tx *Transaction) { tx.TransactionDate = time.Time{} }},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-100) }},
		{"empty description", func(tx *Transaction) { tx.Description = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			if err := tx.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestJournalEntry_NetAmount(t *testing.T) {
	debit := JournalEntry{DebitAmount: decimal.NewFromInt(100000), CreditAmount: decimal.Zero}
	if !debit.NetAmount().Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Expected net 100000, got %s", debit.NetAmount())
	}
	if !debit.IsDebitEntry() || debit.IsCreditEntry() {
		t.Error("Expected a debit entry")
	}

	credit := JournalEntry{DebitAmount: decimal.Zero, CreditAmount: decimal.NewFromInt(75000)}
	if !credit.NetAmount().Equal(decimal.NewFromInt(-75000)) {
		t.Errorf("Expected net -75000, got %s", credit.NetAmount())
	}
	if !credit.Amount().Equal(decimal.NewFromInt(75000)) {
		t.Errorf("Expected amount 75000, got %s", credit.Amount())
	}
}

func TestBankStatementItem_NetAmount(t *testing.T) {
	// Bank credit = money in: matches a book debit of the same magnitude.
	moneyIn := BankStatementItem{CreditAmount: decimal.NewFromInt(100000), DebitAmount: decimal.Zero}
	bookDebit := JournalEntry{DebitAmount: decimal.NewFromInt(100000), CreditAmount: decimal.Zero}
	if !moneyIn.NetAmount().Equal(bookDebit.NetAmount()) {
		t.Errorf("Expected bank credit to match book debit: %s vs %s",
			moneyIn.NetAmount(), bookDebit.NetAmount())
	}

	moneyOut := BankStatementItem{DebitAmount: decimal.NewFromInt(50000), CreditAmount: decimal.Zero}
	if !moneyOut.NetAmount().Equal(decimal.NewFromInt(-50000)) {
		t.Errorf("Expected net -50000, got %s", moneyOut.NetAmount())
	}
}

func TestTransactionSequence_NextNumber(t *testing.T) {
	seq := TransactionSequence{SequenceType: SequenceTypeTransaction, Prefix: "TRX", Year: 2024, LastNumber: 0}

	first := seq.NextNumber()
	if first != "TRX-2024-00001" {
		t.Errorf("Expected TRX-2024-00001, got %s", first)
	}

	second := seq.NextNumber()
	if second != "TRX-2024-00002" {
		t.Errorf("Expected TRX-2024-00002, got %s", second)
	}

	if seq.LastNumber != 2 {
		t.Errorf("Expected last number 2, got %d", seq.LastNumber)
	}
}

func TestReconciliationItem_IsCurrent(t *testing.T) {
	item := ReconciliationItem{MatchStatus: MatchStatusMatched}
	if !item.IsCurrent() {
		t.Error("Expected fresh item to be current")
	}

	now := time.Now()
	item.UnmatchedAt = &now
	item.MatchStatus = MatchStatusUnmatched
	if item.IsCurrent() {
		t.Error("Expected unmatched item to no longer be current")
	}
}
