// Part of the mango CLI - this file implements the 'mango export' subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mango-odm/mango/mango"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <collection>",
	Short: "Export a collection as YAML",
	Long:  "Export every document of a collection as a YAML sequence, to stdout or a file.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	defer func() { _ = store.Close() }()

	coll, err := store.Collection(args[0])
	if err != nil {
		return err
	}
	it, err := coll.Find(mango.M{}, nil)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	var docs []mango.M
	for {
		doc, ok := it.Next()
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	if err := it.Err(); err != nil {
		return err
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	enc := yaml.NewEncoder(out)
	defer func() { _ = enc.Close() }()
	return enc.Encode(docs)
}
