package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"accounting-ledger-service/internal/ledger"
	"accounting-ledger-service/internal/models"
)

var voidFlags struct {
	reason string
	notes  string
	actor  string
}

var voidCmd = &cobra.Command{
	Use:   "void <transaction-id>",
	Short: "Void a posted transaction by creating reversal entries",
	Long: `Void reverses a posted transaction. Every original journal entry gets a
mirror entry with debit and credit swapped; the originals stay in place with
a void annotation. Valid reasons: DATA_ENTRY_ERROR, DUPLICATE, CANCELLED,
OTHER.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := setup()
		if err != nil {
			return err
		}

		engine := ledger.NewEngine(store, nil)
		voided, err := engine.Void(context.Background(), args[0],
			models.VoidReason(voidFlags.reason), voidFlags.notes, voidFlags.actor)
		if err != nil {
			return err
		}

		fmt.Printf("Voided %s (%s), %d entries total after reversal\n",
			voided.TransactionNumber, voided.ID, len(voided.Entries))
		return nil
	},
}

func init() {
	voidCmd.Flags().StringVar(&voidFlags.reason, "reason", "", "void reason (required)")
	voidCmd.Flags().StringVar(&voidFlags.notes, "notes", "", "free-text explanation")
	voidCmd.Flags().StringVar(&voidFlags.actor, "actor", "cli", "acting user recorded on the void")
	voidCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(voidCmd)
}
