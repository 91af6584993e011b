package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mfarrag/ragline/internal/filestore"
	"github.com/mfarrag/ragline/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add <project-id> <file>...",
	Short: "Register files as project assets",
	Long: `Copy files into the project's storage directory and register them as
assets in the document store. File names are sanitized and prefixed with
a random key, so adding the same file twice creates two assets.

Examples:
  ragline add 1 notes.txt report.md
  ragline add 2 ./docs/*.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	projectID, err := parseProjectID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	project, err := dbClient.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	projectKey, err := models.RecordIDString(project.ID)
	if err != nil {
		return fmt.Errorf("project record ID: %w", err)
	}

	files := filestore.New(cfg.FilesDir)
	projectDir := args[0]

	for _, path := range args[1:] {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", path, err)
			continue
		}

		name, size, err := files.Write(projectDir, filepath.Base(path), f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to store %s: %v\n", path, err)
			continue
		}

		asset, err := dbClient.CreateAsset(ctx, models.AssetInput{
			ProjectID: projectKey,
			Type:      models.AssetTypeFile,
			Name:      name,
			Size:      size,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to register %s: %v\n", name, err)
			continue
		}

		fmt.Printf("Added %s (%d bytes) to project %d\n", name, size, projectID)
		if verbose {
			fmt.Printf("  Asset: %s\n", models.MustRecordIDString(asset.ID))
		}
	}

	return nil
}
