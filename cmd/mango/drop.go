// Part of the mango CLI - this file implements the 'mango drop' subcommand.
package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var dropConfirmed bool

var dropCmd = &cobra.Command{
	Use:   "drop <collection>",
	Short: "Drop a collection",
	Long:  "Delete a collection and all of its documents. Refuses to run without --yes.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrop,
}

func init() {
	dropCmd.Flags().BoolVar(&dropConfirmed, "yes", false, "confirm the drop")
}

func runDrop(cmd *cobra.Command, args []string) error {
	if !dropConfirmed {
		return fmt.Errorf("refusing to drop %q without --yes", args[0])
	}
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	defer func() { _ = store.Close() }()

	coll, err := store.Collection(args[0])
	if err != nil {
		return err
	}
	if err := coll.Drop(); err != nil {
		return err
	}
	slog.Info("collection dropped", "collection", args[0])
	fmt.Printf("Dropped %s\n", args[0])
	return nil
}
