// Part of the mango CLI - this file implements the root command and the
// shared store/config plumbing used by every subcommand.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mango-odm/mango/mango"
	"github.com/mango-odm/mango/mango/memstore"
)

var (
	storePath  string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mango",
	Short: "Mango CLI",
	Long:  "Mango is a schema-driven document mapping library. The CLI inspects and maintains its file-backed stores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&storePath, "store", "s", "", "path to store file (required)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	_ = rootCmd.MarkPersistentFlagRequired("store")

	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dropCmd)
}

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func setupLogging() error {
	level, ok := logLevelMap[logLevel]
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

// cliConfig is the YAML shape of the optional --config file.
type cliConfig struct {
	AutoCreateFields bool `yaml:"auto_create_fields"`
}

// loadStore opens the file-backed store and applies the optional config
// file to the default configuration.
func loadStore() (*memstore.Store, error) {
	if storePath == "" {
		return nil, fmt.Errorf("store path is required")
	}
	absPath, err := filepath.Abs(storePath)
	if err != nil {
		return nil, fmt.Errorf("invalid store path: %w", err)
	}

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		var cfg cliConfig
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		mango.DefaultConfig.AutoCreateFields = cfg.AutoCreateFields
	}

	store, err := memstore.Open(absPath)
	if err != nil {
		return nil, err
	}
	mango.DefaultConfig.Session = store
	slog.Debug("store opened", "path", absPath)
	return store, nil
}
