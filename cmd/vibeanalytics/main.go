package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ttracx/vibeanalytics/internal/config"
	"github.com/ttracx/vibeanalytics/internal/logging"
	spg "github.com/ttracx/vibeanalytics/internal/storage/postgres"
)

var (
	configPath string
	jsonOutput bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "vibeanalytics <command>",
	Short:         "Web analytics ingestion and dashboard API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logging.Init(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("VA_CONFIG"), "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

// openDB connects with the loaded configuration and checks the connection.
func openDB(ctx context.Context) (*spg.DB, error) {
	db, err := spg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ready(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
