package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete free-tier events older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.FreeRetentionDays <= 0 {
			return fmt.Errorf("free_retention_days must be positive to prune")
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.FreeRetentionDays)
		n, err := db.PruneFreeTier(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"deleted": n, "cutoff": cutoff.Format(time.RFC3339)}).Info("Pruned free-tier events.")
		return output(map[string]any{"deleted": n, "cutoff": cutoff}, fmt.Sprintf("Deleted %d events older than %s", n, cutoff.Format(time.DateOnly)))
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
