package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexReset bool

var indexCmd = &cobra.Command{
	Use:   "index <project-id>",
	Short: "Embed a project's chunks into its vector collection",
	Long: `Embed every persisted chunk of a project and upsert the vectors into
the project's collection, in batches. Like processing, indexing runs
through the worker queue and the task ledger.

Examples:
  ragline index 1
  ragline index 1 --reset`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "recreate the vector collection first")
}

func runIndex(cmd *cobra.Command, args []string) error {
	projectID, err := parseProjectID(args[0])
	if err != nil {
		return err
	}

	svc, err := getService(true)
	if err != nil {
		return err
	}
	pool, err := getPool(svc)
	if err != nil {
		return fmt.Errorf("init worker pool: %w", err)
	}
	defer pool.Release()

	jobID, err := pool.SubmitIndex(context.Background(), projectID, indexReset)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	fmt.Printf("Submitted indexing job %s for project %d\n", jobID, projectID)
	pool.Wait()

	if verbose {
		printMetrics(svc)
	}
	return nil
}
