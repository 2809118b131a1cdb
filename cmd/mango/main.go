// Entry point for the mango CLI.
// Build with: go build -o bin/mango ./cmd/mango
// Usage: mango <command> [options]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
