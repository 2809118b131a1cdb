// Part of the mango CLI - this file implements the 'mango find' subcommand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mango-odm/mango/mango"
)

var (
	findFilter string
	findSort   []string
	findSkip   int64
	findLimit  int64
)

var findCmd = &cobra.Command{
	Use:   "find <collection>",
	Short: "Print matching documents as JSON lines",
	Long:  "Find documents in a collection and print them to stdout, one JSON object per line.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

func init() {
	findCmd.Flags().StringVarP(&findFilter, "filter", "f", "", "JSON equality filter")
	findCmd.Flags().StringSliceVar(&findSort, "sort", nil, "sort keys, prefix with '-' for descending")
	findCmd.Flags().Int64Var(&findSkip, "skip", 0, "documents to skip")
	findCmd.Flags().Int64Var(&findLimit, "limit", 0, "maximum documents to return (0 = all)")
}

func runFind(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	defer func() { _ = store.Close() }()

	filter, err := parseFilter(findFilter)
	if err != nil {
		return err
	}

	coll, err := store.Collection(args[0])
	if err != nil {
		return err
	}
	opts := &mango.FindOptions{Skip: findSkip, Limit: findLimit, Sort: parseSort(findSort)}
	it, err := coll.Find(filter, opts)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	enc := json.NewEncoder(os.Stdout)
	for {
		doc, ok := it.Next()
		if !ok {
			break
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return it.Err()
}

func parseSort(keys []string) []mango.SortKey {
	out := make([]mango.SortKey, 0, len(keys))
	for _, k := range keys {
		dir := mango.ASC
		if strings.HasPrefix(k, "-") {
			dir = mango.DESC
			k = k[1:]
		}
		out = append(out, mango.SortKey{Key: k, Dir: dir})
	}
	return out
}
