// file: cmd/history.go
// version: 1.0.0
// guid: 8c2e4a6d-0f3b-4d5c-8a7e-1b3d5f7a9c0e

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdfalk/bookbot/internal/config"
	"github.com/jdfalk/bookbot/internal/executor"
	"github.com/jdfalk/bookbot/internal/tagger"
	"github.com/jdfalk/bookbot/internal/txstore"
)

// historyCmd lists recorded transactions.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		from, to, err := parseRange(since, until)
		if err != nil {
			return err
		}

		store, err := txstore.Open(config.AppConfig.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		txs, err := store.List(from, to)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Println("No transactions recorded")
			return nil
		}
		for _, tx := range txs {
			fmt.Printf("%s  %-11s  %s  %s (%d ops)\n",
				tx.ID, tx.Status, tx.CreatedAt.Format("2006-01-02 15:04"),
				tx.Record.Title, len(tx.Ops))
			if tx.Status == txstore.StatusRolledBack {
				fmt.Printf("  failed at operation %d: %s\n", tx.FailedOp, tx.FailReason)
			}
		}
		return nil
	},
}

// undoCmd reverts a recorded transaction.
var undoCmd = &cobra.Command{
	Use:   "undo [transaction-id]",
	Short: "Revert a recorded transaction (default: the most recent)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := txstore.Open(config.AppConfig.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			latest, err := store.Latest()
			if err != nil {
				return fmt.Errorf("no transaction to undo: %w", err)
			}
			id = latest.ID
		}

		exec := executor.New(store, tagger.Tagger{}, executor.Options{
			Progress: barProgress(),
		})
		if err := exec.Undo(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Transaction %s undone\n", id)
		return nil
	},
}

func parseRange(since, until string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if since != "" {
		if from, err = time.Parse("2006-01-02", since); err != nil {
			return from, to, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if to, err = time.Parse("2006-01-02", until); err != nil {
			return from, to, fmt.Errorf("invalid --until: %w", err)
		}
		// Inclusive end of day.
		to = to.Add(24 * time.Hour)
	}
	return from, to, nil
}

func init() {
	historyCmd.Flags().String("since", "", "only transactions on or after this date (YYYY-MM-DD)")
	historyCmd.Flags().String("until", "", "only transactions on or before this date (YYYY-MM-DD)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
}
