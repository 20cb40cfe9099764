package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	lederrors "accounting-ledger-service/pkg/errors"

	"accounting-ledger-service/internal/importer"
)

var importFlags struct {
	accountID string
	bankName  string
	opening   string
}

var importCmd = &cobra.Command{
	Use:   "import <statement.csv>",
	Short: "Import a bank statement CSV",
	Long: `Import parses a bank statement CSV (date, description, debit, credit,
balance columns) and stores it against the given GL account. Rejected lines
are reported but do not abort the import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := setup()
		if err != nil {
			return err
		}

		opening := decimal.Zero
		if importFlags.opening != "" {
			opening, err = decimal.NewFromString(importFlags.opening)
			if err != nil {
				return lederrors.ValidationError(lederrors.CodeInvalidAmount, "opening", importFlags.opening)
			}
		}

		file, err := os.Open(args[0])
		if err != nil {
			return lederrors.Wrap(err, lederrors.CategoryValidation, lederrors.CodeMissingField,
				"cannot open statement file")
		}
		defer file.Close()

		imp := importer.New(store, nil, nil)
		statement, stats, err := imp.ImportCSV(context.Background(), file,
			importFlags.accountID, importFlags.bankName, opening)
		if err != nil {
			return err
		}

		fmt.Printf("Imported statement %s: %d items (%s to %s), closing balance %s\n",
			statement.ID, stats.ItemsCreated,
			statement.PeriodStart.Format("2006-01-02"), statement.PeriodEnd.Format("2006-01-02"),
			statement.ClosingBalance)
		for _, parseErr := range stats.Errors {
			fmt.Printf("  rejected %v\n", parseErr)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFlags.accountID, "account", "", "GL account the statement belongs to (required)")
	importCmd.Flags().StringVar(&importFlags.bankName, "bank", "", "bank name recorded on the statement")
	importCmd.Flags().StringVar(&importFlags.opening, "opening", "", "opening balance, defaults to 0")
	importCmd.MarkFlagRequired("account")

	rootCmd.AddCommand(importCmd)
}
