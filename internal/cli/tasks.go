package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfarrag/ragline/internal/models"
)

var tasksLimit int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show recent task ledger entries",
	Long: `List the most recent entries of the task execution ledger: one row per
logical job attempt with its status, timing, and stored outcome.`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "maximum rows")
}

func runTasks(cmd *cobra.Command, args []string) error {
	records, err := dbClient.ListRecentTaskExecutions(context.Background(), tasksLimit)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No task executions recorded.")
		return nil
	}

	for _, rec := range records {
		completed := "-"
		if rec.CompletedAt != nil {
			completed = rec.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-22s %-8s job=%-38s started=%s completed=%s\n",
			rec.TaskName, rec.Status, rec.JobID,
			rec.StartedAt.Format("2006-01-02 15:04:05"), completed)

		if verbose && rec.Result != nil {
			outcome := models.OutcomeFromMap(rec.Result)
			if outcome.Signal != "" {
				fmt.Printf("  signal=%s files=%d chunks=%d\n",
					outcome.Signal, outcome.ProcessedFiles, outcome.InsertedChunks)
			}
		}
	}
	return nil
}
