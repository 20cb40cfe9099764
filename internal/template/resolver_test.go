package template

import (
	"testing"

	"github.com/shopspring/decimal"

	"accounting-ledger-service/internal/formula"
	"accounting-ledger-service/internal/models"
)

func strPtr(s string) *string { return &s }

func testTemplate() *models.JournalTemplate {
	return &models.JournalTemplate{
		ID:   "tpl-1",
		Name: "Penjualan Tunai",
		Lines: []models.TemplateLine{
			{ID: "line-1", LineOrder: 1, Position: models.PositionDebit, AccountID: strPtr("acc-kas"), Formula: "amount"},
			{ID: "line-2", LineOrder: 2, Position: models.PositionCredit, AccountID: strPtr("acc-pendapatan"), Formula: "amount"},
		},
	}
}

func TestResolve_StaticAccounts(t *testing.T) {
	r := NewResolver(nil)
	fctx := formula.Context{Amount: decimal.NewFromInt(50000)}

	resolved, err := r.Resolve(testTemplate(), nil, fctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("Expected 2 resolved lines, got %d", len(resolved))
	}
	if resolved[0].AccountID != "acc-kas" {
		t.Errorf("Expected acc-kas, got %s", resolved[0].AccountID)
	}
	if !resolved[0].Amount.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected amount 50000, got %s", resolved[0].Amount)
	}
}

func TestResolve_OverrideWinsOverStatic(t *testing.T) {
	r := NewResolver(nil)
	fctx := formula.Context{Amount: decimal.NewFromInt(50000)}
	overrides := map[string]string{"line-1": "acc-bank-bca"}

	resolved, err := r.Resolve(testTemplate(), overrides, fctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved[0].AccountID != "acc-bank-bca" {
		t.Errorf("Expected override acc-bank-bca, got %s", resolved[0].AccountID)
	}
	if resolved[1].AccountID != "acc-pendapatan" {
		t.Errorf("Expected static acc-pendapatan, got %s", resolved[1].AccountID)
	}
}

func TestResolve_HintResolvedByOverride(t *testing.T) {
	r := NewResolver(nil)
	tmpl := testTemplate()
	tmpl.Lines[0].AccountID = nil
	tmpl.Lines[0].AccountHint = strPtr("cash-or-bank")
	fctx := formula.Context{Amount: decimal.NewFromInt(50000)}

	resolved, err := r.Resolve(tmpl, map[string]string{"line-1": "acc-kas"}, fctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("Expected 2 resolved lines, got %d", len(resolved))
	}
	if resolved[0].AccountID != "acc-kas" {
		t.Errorf("Expected acc-kas, got %s", resolved[0].AccountID)
	}
}

func TestResolve_UnresolvedHintIsSkipped(t *testing.T) {
	r := NewResolver(nil)
	tmpl := testTemplate()
	tmpl.Lines[0].AccountID = nil
	tmpl.Lines[0].AccountHint = strPtr("cash-or-bank")
	fctx := formula.Context{Amount: decimal.NewFromInt(50000)}

	resolved, err := r.Resolve(tmpl, nil, fctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("Expected unresolved hint line to be skipped, got %d lines", len(resolved))
	}
	if resolved[0].AccountID != "acc-pendapatan" {
		t.Errorf("Expected remaining line acc-pendapatan, got %s", resolved[0].AccountID)
	}
}

func TestResolve_FormulaWithVariables(t *testing.T) {
	r := NewResolver(nil)
	tmpl := testTemplate()
	tmpl.Lines[0].Formula = "amount - discount"
	tmpl.Lines[1].Formula = "amount - discount"
	fctx := formula.Context{
		Amount:    decimal.NewFromInt(100000),
		Variables: map[string]decimal.Decimal{"discount": decimal.NewFromInt(10000)},
	}

	resolved, err := r.Resolve(tmpl, nil, fctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !resolved[0].Amount.Equal(decimal.NewFromInt(90000)) {
		t.Errorf("Expected 90000, got %s", resolved[0].Amount)
	}
}

func TestResolve_BadFormulaFails(t *testing.T) {
	r := NewResolver(nil)
	tmpl := testTemplate()
	tmpl.Lines[1].Formula = "amount *** 2"
	fctx := formula.Context{Amount: decimal.NewFromInt(100000)}

	if _, err := r.Resolve(tmpl, nil, fctx); err == nil {
		t.Fatal("Expected formula error, got nil")
	}
}

func TestPreview_KeepsUnresolvedHint(t *testing.T) {
	r := NewResolver(nil)
	tmpl := testTemplate()
	tmpl.Lines[0].AccountID = nil
	tmpl.Lines[0].AccountHint = strPtr("inventory-account")
	fctx := formula.Context{Amount: decimal.NewFromInt(75000)}

	preview, err := r.Preview(tmpl, nil, fctx)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(preview) != 2 {
		t.Fatalf("Expected 2 preview lines, got %d", len(preview))
	}
	if preview[0].Resolved {
		t.Error("Expected first line to stay unresolved")
	}
	if preview[0].AccountHint != "inventory-account" {
		t.Errorf("Expected hint placeholder, got %q", preview[0].AccountHint)
	}
	if !preview[1].Resolved || preview[1].AccountID != "acc-pendapatan" {
		t.Errorf("Expected second line resolved to acc-pendapatan")
	}
}
