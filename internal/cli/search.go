package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <project-id> <query>",
	Short: "Search a project's indexed chunks",
	Long: `Embed the query and return the closest indexed chunks for a project,
best match first.

Examples:
  ragline search 1 "how does billing work"
  ragline search 1 "error handling" --limit 10`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectID, err := parseProjectID(args[0])
	if err != nil {
		return err
	}
	query := args[1]

	svc, err := getService(true)
	if err != nil {
		return err
	}

	results, err := svc.SearchProject(context.Background(), projectID, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, r.Text)
		if verbose && r.Metadata != nil {
			if src, ok := r.Metadata["source"]; ok {
				fmt.Printf("   source: %v\n", src)
			}
		}
	}
	return nil
}
