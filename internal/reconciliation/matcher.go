package reconciliation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"accounting-ledger-service/internal/models"
)

// Pass is one matching heuristic: an amount-equality test plus a date
// tolerance, with KEYWORD additionally requiring a description token overlap.
// Passes run in declaration order; later passes only see what earlier ones
// left unmatched.
type Pass struct {
	Type              models.MatchType
	Confidence        decimal.Decimal
	DateToleranceDays int
	RequireKeyword    bool
}

var passes = []Pass{
	{Type: models.MatchExact, Confidence: decimal.NewFromFloat(1.00), DateToleranceDays: 0},
	{Type: models.MatchFuzzyDate, Confidence: decimal.NewFromFloat(0.90), DateToleranceDays: 1},
	{Type: models.MatchKeyword, Confidence: decimal.NewFromFloat(0.80), DateToleranceDays: 3, RequireKeyword: true},
}

// ConsumedSet tracks book-transaction IDs already claimed by a match. It is
// threaded through the passes as an explicit value; nothing else mutates it.
type ConsumedSet map[string]struct{}

// NewConsumedSet seeds the set from already-matched transaction IDs.
func NewConsumedSet(ids ...string) ConsumedSet {
	set := make(ConsumedSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether a transaction is already claimed.
func (c ConsumedSet) Has(transactionID string) bool {
	_, ok := c[transactionID]
	return ok
}

// add returns a set containing the new ID. The receiver map is extended in
// place; the method shape keeps call sites honest about dataflow.
func (c ConsumedSet) add(transactionID string) ConsumedSet {
	c[transactionID] = struct{}{}
	return c
}

// MatchResult pairs one statement item with one journal entry.
type MatchResult struct {
	Item       models.BankStatementItem
	Entry      models.JournalEntry
	Type       models.MatchType
	Confidence decimal.Decimal
}

// MatchAll runs the three passes over the unmatched items. Items are scanned
// in line-number order and entries in retrieval order; within a pass the
// first acceptable entry wins. Greedy by construction: ties go to scan
// order, not to a globally optimal assignment.
func MatchAll(items []models.BankStatementItem, entries []models.JournalEntry, consumed ConsumedSet) ([]MatchResult, ConsumedSet) {
	var results []MatchResult
	matchedItems := make(map[string]struct{})

	for _, pass := range passes {
		var passResults []MatchResult
		passResults, consumed = runPass(pass, items, entries, consumed, matchedItems)
		results = append(results, passResults...)
	}
	return results, consumed
}

func runPass(pass Pass, items []models.BankStatementItem, entries []models.JournalEntry, consumed ConsumedSet, matchedItems map[string]struct{}) ([]MatchResult, ConsumedSet) {
	var results []MatchResult
	for _, item := range items {
		if _, done := matchedItems[item.ID]; done {
			continue
		}
		for _, entry := range entries {
			if consumed.Has(entry.TransactionID) {
				continue
			}
			if !pass.accepts(&item, &entry) {
				continue
			}
			results = append(results, MatchResult{
				Item:       item,
				Entry:      entry,
				Type:       pass.Type,
				Confidence: pass.Confidence,
			})
			consumed = consumed.add(entry.TransactionID)
			matchedItems[item.ID] = struct{}{}
			break
		}
	}
	return results, consumed
}

func (p *Pass) accepts(item *models.BankStatementItem, entry *models.JournalEntry) bool {
	// Sign-adjusted equality: a bank credit (money in) pairs with a book
	// debit on the account, and vice versa.
	if !item.NetAmount().Equal(entry.NetAmount()) {
		return false
	}
	if daysBetween(item.TransactionDate, entry.JournalDate) > p.DateToleranceDays {
		return false
	}
	if p.RequireKeyword && !descriptionsOverlap(item.Description, entry.Description) {
		return false
	}
	return true
}

func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// descriptionsOverlap reports whether any token of at least four characters
// from either description appears as a substring of the other. The test is
// symmetric and case-insensitive.
func descriptionsOverlap(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return tokensContained(la, lb) || tokensContained(lb, la)
}

func tokensContained(source, target string) bool {
	for _, token := range strings.Fields(source) {
		if len(token) < 4 {
			continue
		}
		if strings.Contains(target, token) {
			return true
		}
	}
	return false
}
