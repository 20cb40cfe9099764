// Package importer turns raw bank statement CSV files into persisted
// BankStatement rows. The reconciliation core never parses statement
// formats itself; this is the upstream collaborator that feeds it.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	lederrors "accounting-ledger-service/pkg/errors"
	"accounting-ledger-service/pkg/logger"

	"accounting-ledger-service/internal/models"
	"accounting-ledger-service/internal/storage"
)

// Config describes one bank's CSV layout. Column names are matched against
// the header row case-insensitively.
type Config struct {
	DateColumn        string
	DescriptionColumn string
	DebitColumn       string
	CreditColumn      string
	BalanceColumn     string

	Delimiter   rune
	DateFormats []string
}

// StandardConfig covers the common export layout of Indonesian banks.
var StandardConfig = &Config{
	DateColumn:        "date",
	DescriptionColumn: "description",
	DebitColumn:       "debit",
	CreditColumn:      "credit",
	BalanceColumn:     "balance",
	Delimiter:         ',',
	DateFormats: []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006-01-02 15:04:05",
	},
}

// ParseError describes one rejected CSV line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Stats summarizes an import run. Rejected lines are collected, not fatal:
// a statement with a few bad rows still imports the good ones.
type Stats struct {
	LinesRead    int
	ItemsCreated int
	Errors       []*ParseError
}

// Importer parses statement CSVs and persists the result.
type Importer struct {
	store  storage.Store
	config *Config
	logger logger.Logger
}

// New creates an Importer. A nil config selects StandardConfig.
func New(store storage.Store, config *Config, log logger.Logger) *Importer {
	if config == nil {
		config = StandardConfig
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Importer{
		store:  store,
		config: config,
		logger: log.WithComponent("statement-importer"),
	}
}

// ImportCSV reads one statement file for the given GL account and saves it
// with its items. The statement period spans the earliest to the latest
// item date; the closing balance is taken from the last line's balance
// column when present, else opening plus the net of all items.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader, accountID, bankName string, openingBalance decimal.Decimal) (*models.BankStatement, *Stats, error) {
	if _, err := i.store.Accounts().FindByID(ctx, accountID); err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = i.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, lederrors.ValidationErrorf(lederrors.CodeMissingField,
			"statement file has no header row: %v", err)
	}
	columns, err := i.mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{}
	var items []models.BankStatementItem
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.Errors = append(stats.Errors, &ParseError{Line: line, Message: err.Error()})
			continue
		}
		stats.LinesRead++

		item, perr := i.parseItem(record, columns, line)
		if perr != nil {
			stats.Errors = append(stats.Errors, perr)
			continue
		}
		item.LineNumber = len(items) + 1
		items = append(items, *item)
		stats.ItemsCreated++
	}

	if len(items) == 0 {
		return nil, stats, lederrors.ValidationErrorf(lederrors.CodeMissingField,
			"statement file contains no usable lines")
	}

	statement := &models.BankStatement{
		AccountID:      accountID,
		BankName:       bankName,
		OpeningBalance: openingBalance,
		Items:          items,
		ImportedAt:     time.Now(),
	}
	statement.PeriodStart, statement.PeriodEnd = period(items)
	statement.ClosingBalance = closingBalance(items, openingBalance)

	if err := i.store.Statements().Save(ctx, statement); err != nil {
		return nil, stats, err
	}

	i.logger.WithFields(logger.Fields{
		"statement_id": statement.ID,
		"account_id":   accountID,
		"items":        stats.ItemsCreated,
		"rejected":     len(stats.Errors),
	}).Info("Imported bank statement")
	return statement, stats, nil
}

type columnIndex struct {
	date, description, debit, credit, balance int
}

func (i *Importer) mapColumns(header []string) (*columnIndex, error) {
	idx := &columnIndex{date: -1, description: -1, debit: -1, credit: -1, balance: -1}
	for pos, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(i.config.DateColumn):
			idx.date = pos
		case strings.ToLower(i.config.DescriptionColumn):
			idx.description = pos
		case strings.ToLower(i.config.DebitColumn):
			idx.debit = pos
		case strings.ToLower(i.config.CreditColumn):
			idx.credit = pos
		case strings.ToLower(i.config.BalanceColumn):
			idx.balance = pos
		}
	}
	if idx.date < 0 || idx.description < 0 || idx.debit < 0 || idx.credit < 0 {
		return nil, lederrors.ValidationErrorf(lederrors.CodeMissingField,
			"statement header is missing required columns (need %s, %s, %s, %s)",
			i.config.DateColumn, i.config.DescriptionColumn, i.config.DebitColumn, i.config.CreditColumn)
	}
	return idx, nil
}

func (i *Importer) parseItem(record []string, columns *columnIndex, line int) (*models.BankStatementItem, *ParseError) {
	field := func(pos int) string {
		if pos < 0 || pos >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[pos])
	}

	date, err := i.parseDate(field(columns.date))
	if err != nil {
		return nil, &ParseError{Line: line, Message: err.Error()}
	}
	debit, err := parseAmount(field(columns.debit))
	if err != nil {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("bad debit amount: %v", err)}
	}
	credit, err := parseAmount(field(columns.credit))
	if err != nil {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("bad credit amount: %v", err)}
	}
	if debit.IsZero() && credit.IsZero() {
		return nil, &ParseError{Line: line, Message: "line moves no money"}
	}

	item := &models.BankStatementItem{
		TransactionDate: date,
		Description:     field(columns.description),
		DebitAmount:     debit,
		CreditAmount:    credit,
		MatchStatus:     models.MatchStatusUnmatched,
	}
	if balance := field(columns.balance); balance != "" {
		if b, err := parseAmount(balance); err == nil {
			item.Balance = b
		}
	}
	return item, nil
}

func (i *Importer) parseDate(value string) (time.Time, error) {
	for _, layout := range i.config.DateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	cleaned := strings.NewReplacer(",", "", "Rp", "", " ", "").Replace(value)
	return decimal.NewFromString(cleaned)
}

func period(items []models.BankStatementItem) (time.Time, time.Time) {
	start, end := items[0].TransactionDate, items[0].TransactionDate
	for _, item := range items[1:] {
		if item.TransactionDate.Before(start) {
			start = item.TransactionDate
		}
		if item.TransactionDate.After(end) {
			end = item.TransactionDate
		}
	}
	return start, end
}

func closingBalance(items []models.BankStatementItem, opening decimal.Decimal) decimal.Decimal {
	last := items[len(items)-1]
	if !last.Balance.IsZero() {
		return last.Balance
	}
	closing := opening
	for _, item := range items {
		closing = closing.Add(item.NetAmount())
	}
	return closing
}
