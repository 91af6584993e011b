package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfarrag/ragline/internal/ledger"
)

var cleanupRetention time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old task ledger entries",
	Long: `Delete ledger rows older than the retention window by creation time,
regardless of status. Storage hygiene only; dedup decisions for records
younger than the window are unaffected.

Examples:
  ragline cleanup
  ragline cleanup --retention 72h`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupRetention, "retention", 0, "retention window (default from config)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	retention := cleanupRetention
	if retention <= 0 {
		retention = cfg.TaskRetention
	}

	removed, err := ledger.New(dbClient).CleanupOldTasks(context.Background(), retention)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("Removed %d task execution record(s) older than %s\n", removed, retention)
	return nil
}
