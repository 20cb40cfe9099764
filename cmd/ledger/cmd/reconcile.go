package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"accounting-ledger-service/internal/ledger"
	"accounting-ledger-service/internal/reconciliation"
	"accounting-ledger-service/internal/storage"
)

var reconcileFlags struct {
	actor string
	notes string
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Manage bank reconciliations",
}

var reconcileCreateCmd = &cobra.Command{
	Use:   "create <statement-id>",
	Short: "Open a reconciliation for an imported statement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		rec, err := manager.Create(context.Background(), args[0], reconcileFlags.actor, reconcileFlags.notes)
		if err != nil {
			return err
		}
		fmt.Printf("Reconciliation %s created: book %s, bank %s, %d statement items\n",
			rec.ID, rec.BookBalance, rec.BankBalance, rec.TotalStatementItems)
		return nil
	},
}

var reconcileAutoCmd = &cobra.Command{
	Use:   "auto <reconciliation-id>",
	Short: "Run the three-pass auto matcher",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		results, err := manager.AutoMatch(context.Background(), args[0], reconcileFlags.actor)
		if err != nil {
			return err
		}
		fmt.Printf("Auto-match paired %d statement items\n", len(results))
		for _, match := range results {
			fmt.Printf("  line %d (%s) -> entry %s [%s %.2f]\n",
				match.Item.LineNumber, match.Item.Description,
				match.Entry.JournalNumber, match.Type, match.Confidence.InexactFloat64())
		}
		return nil
	},
}

var reconcileMatchCmd = &cobra.Command{
	Use:   "match <reconciliation-id> <statement-item-id> <transaction-id>",
	Short: "Manually pair a statement line with a posted transaction",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		if err := manager.ManualMatch(context.Background(), args[0], args[1], args[2], reconcileFlags.actor); err != nil {
			return err
		}
		fmt.Println("Matched")
		return nil
	},
}

var reconcileBankOnlyCmd = &cobra.Command{
	Use:   "bank-only <reconciliation-id> <statement-item-id>",
	Short: "Mark a statement line as having no book counterpart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		if err := manager.MarkBankOnly(context.Background(), args[0], args[1], reconcileFlags.notes, reconcileFlags.actor); err != nil {
			return err
		}
		fmt.Println("Marked bank-only")
		return nil
	},
}

var reconcileBookOnlyCmd = &cobra.Command{
	Use:   "book-only <reconciliation-id> <transaction-id>",
	Short: "Mark a posted transaction as missing from the statement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		if err := manager.MarkBookOnly(context.Background(), args[0], args[1], reconcileFlags.notes, reconcileFlags.actor); err != nil {
			return err
		}
		fmt.Println("Marked book-only")
		return nil
	},
}

var reconcileUnmatchCmd = &cobra.Command{
	Use:   "unmatch <reconciliation-id> <statement-item-id>",
	Short: "Return a matched statement line to unmatched",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		if err := manager.Unmatch(context.Background(), args[0], args[1], reconcileFlags.actor); err != nil {
			return err
		}
		fmt.Println("Unmatched")
		return nil
	},
}

var reconcileCompleteCmd = &cobra.Command{
	Use:   "complete <reconciliation-id>",
	Short: "Complete a reconciliation once every line has a disposition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		rec, err := manager.Complete(context.Background(), args[0], reconcileFlags.actor)
		if err != nil {
			return err
		}
		fmt.Printf("Reconciliation %s completed: %d matched, %d bank-only/other\n",
			rec.ID, rec.MatchedCount, rec.TotalStatementItems-rec.MatchedCount)
		return nil
	},
}

var reconcileSummaryCmd = &cobra.Command{
	Use:   "summary <reconciliation-id>",
	Short: "Print the derived reconciliation figures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := buildManager()
		if err != nil {
			return err
		}
		summary, err := manager.Summary(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Book balance:          %14s\n", summary.BookBalance)
		fmt.Printf("Bank balance:          %14s\n", summary.BankBalance)
		fmt.Printf("Adjusted book balance: %14s\n", summary.AdjustedBookBalance)
		fmt.Printf("Adjusted bank balance: %14s\n", summary.AdjustedBankBalance)
		fmt.Printf("Difference:            %14s\n", summary.Difference)
		fmt.Printf("Matched: %d  Unmatched bank: %d  Unmatched book: %d\n",
			summary.MatchedCount, summary.UnmatchedBankCount, summary.UnmatchedBookCount)
		return nil
	},
}

func buildManager() (*reconciliation.Manager, error) {
	_, store, err := setup()
	if err != nil {
		return nil, err
	}
	return buildManagerWith(store), nil
}

func buildManagerWith(store storage.Store) *reconciliation.Manager {
	engine := ledger.NewEngine(store, nil)
	return reconciliation.NewManager(store, engine, nil)
}

func init() {
	reconcileCmd.PersistentFlags().StringVar(&reconcileFlags.actor, "actor", "cli", "acting user recorded on the operation")
	reconcileCmd.PersistentFlags().StringVar(&reconcileFlags.notes, "notes", "", "free-text notes where the operation takes them")

	reconcileCmd.AddCommand(
		reconcileCreateCmd,
		reconcileAutoCmd,
		reconcileMatchCmd,
		reconcileBankOnlyCmd,
		reconcileBookOnlyCmd,
		reconcileUnmatchCmd,
		reconcileCompleteCmd,
		reconcileSummaryCmd,
	)
	rootCmd.AddCommand(reconcileCmd)
}
