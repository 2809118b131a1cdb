// Part of the mango CLI - this file implements the 'mango count' subcommand.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mango-odm/mango/mango"
)

var countFilter string

var countCmd = &cobra.Command{
	Use:   "count <collection>",
	Short: "Count documents in a collection",
	Long:  "Count the documents of a collection, optionally restricted by a JSON filter.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

func init() {
	countCmd.Flags().StringVarP(&countFilter, "filter", "f", "", "JSON equality filter")
}

func runCount(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	defer func() { _ = store.Close() }()

	filter, err := parseFilter(countFilter)
	if err != nil {
		return err
	}

	coll, err := store.Collection(args[0])
	if err != nil {
		return err
	}
	n, err := coll.CountDocuments(filter)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

// parseFilter decodes a JSON object flag into a filter; an empty flag
// matches everything.
func parseFilter(raw string) (mango.M, error) {
	if raw == "" {
		return mango.M{}, nil
	}
	var filter mango.M
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return filter, nil
}
