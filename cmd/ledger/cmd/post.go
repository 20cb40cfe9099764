package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/ledger"
)

var postFlags struct {
	templateID  string
	amount      string
	date        string
	description string
	reference   string
	notes       string
	projectTag  string
	variables   []string
	overrides   []string
	actor       string
	draftOnly   bool
	preview     bool
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create and post a transaction through a journal template",
	Long: `Post creates a transaction from a journal template and books its journal
entries. With --draft the transaction stops at DRAFT; with --preview nothing
is written and the would-be journal lines are printed instead.

Examples:
  ledger post --template tpl-sales --amount 50000 --date 2024-01-10 --description "Penjualan tunai"
  ledger post --template tpl-payroll --amount 12500000 --date 2024-01-25 \
    --description "Gaji Januari" --var tax=137500 --override line-2=acc-bank-bca`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := setup()
		if err != nil {
			return err
		}

		amount, err := decimal.NewFromString(postFlags.amount)
		if err != nil {
			return lederrors.ValidationError(lederrors.CodeInvalidAmount, "amount", postFlags.amount)
		}
		txDate, err := time.Parse("2006-01-02", postFlags.date)
		if err != nil {
			return lederrors.ValidationError(lederrors.CodeInvalidDate, "date", postFlags.date)
		}
		variables, err := parseVariables(postFlags.variables)
		if err != nil {
			return err
		}
		overrides, err := parsePairs(postFlags.overrides, "override")
		if err != nil {
			return err
		}

		engine := ledger.NewEngine(store, nil)
		ctx := context.Background()

		if postFlags.preview {
			lines, err := engine.Preview(ctx, postFlags.templateID, amount, overrides, variables)
			if err != nil {
				return err
			}
			fmt.Printf("Preview of template %s for amount %s:\n", postFlags.templateID, amount)
			for _, line := range lines {
				account := line.AccountID
				if !line.Resolved {
					account = fmt.Sprintf("<%s>", line.AccountHint)
				}
				fmt.Printf("  %2d %-6s %-30s %12s\n", line.LineOrder, line.Position, account, line.Amount)
			}
			return nil
		}

		tx, err := engine.Create(ctx, ledger.CreateParams{
			TemplateID:      postFlags.templateID,
			Amount:          amount,
			Date:            txDate,
			Description:     postFlags.description,
			ReferenceNumber: postFlags.reference,
			Notes:           postFlags.notes,
			ProjectTag:      postFlags.projectTag,
			Overrides:       overrides,
			Variables:       variables,
			Actor:           postFlags.actor,
		})
		if err != nil {
			return err
		}
		if postFlags.draftOnly {
			fmt.Printf("Created draft %s (%s)\n", tx.TransactionNumber, tx.ID)
			return nil
		}

		posted, err := engine.Post(ctx, tx.ID, postFlags.actor)
		if err != nil {
			return err
		}
		fmt.Printf("Posted %s (%s) with %d journal entries\n",
			posted.TransactionNumber, posted.ID, len(posted.Entries))
		for _, entry := range posted.Entries {
			fmt.Printf("  %s %-30s D %12s  C %12s\n",
				entry.JournalNumber, entry.AccountID, entry.DebitAmount, entry.CreditAmount)
		}
		return nil
	},
}

func init() {
	postCmd.Flags().StringVar(&postFlags.templateID, "template", "", "journal template ID (required)")
	postCmd.Flags().StringVar(&postFlags.amount, "amount", "", "transaction amount (required)")
	postCmd.Flags().StringVar(&postFlags.date, "date", "", "transaction date, YYYY-MM-DD (required)")
	postCmd.Flags().StringVar(&postFlags.description, "description", "", "transaction description (required)")
	postCmd.Flags().StringVar(&postFlags.reference, "reference", "", "external reference number")
	postCmd.Flags().StringVar(&postFlags.notes, "notes", "", "free-text notes")
	postCmd.Flags().StringVar(&postFlags.projectTag, "project", "", "project tag copied onto every entry")
	postCmd.Flags().StringArrayVar(&postFlags.variables, "var", nil, "formula variable as name=value, repeatable")
	postCmd.Flags().StringArrayVar(&postFlags.overrides, "override", nil, "account override as lineID=accountID, repeatable")
	postCmd.Flags().StringVar(&postFlags.actor, "actor", "cli", "acting user recorded on the transaction")
	postCmd.Flags().BoolVar(&postFlags.draftOnly, "draft", false, "create the draft without posting it")
	postCmd.Flags().BoolVar(&postFlags.preview, "preview", false, "print the would-be journal lines, write nothing")

	postCmd.MarkFlagRequired("template")
	postCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(postCmd)
}

func parseVariables(pairs []string) (map[string]decimal.Decimal, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	variables := make(map[string]decimal.Decimal, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, lederrors.ValidationError(lederrors.CodeMissingField, "var", pair)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, lederrors.ValidationError(lederrors.CodeInvalidAmount, "var "+name, raw)
		}
		variables[name] = value
	}
	return variables, nil
}

func parsePairs(pairs []string, flag string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	parsed := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return nil, lederrors.ValidationError(lederrors.CodeMissingField, flag, pair)
		}
		parsed[key] = value
	}
	return parsed, nil
}
