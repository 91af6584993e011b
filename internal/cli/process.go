package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mfarrag/ragline/internal/service"
)

var (
	processFileID  string
	processChunk   int
	processOverlap int
	processReset   bool
)

var processCmd = &cobra.Command{
	Use:   "process <project-id>",
	Short: "Chunk a project's files into the document store",
	Long: `Chunk every registered file of a project (or one file with --file-id)
and persist the chunks. The run is dispatched through the worker queue
and recorded in the task ledger, so re-running a completed job returns
its stored outcome instead of redoing the work.

With --reset, the project's vector collection and existing chunk rows
are deleted first.

Examples:
  ragline process 1
  ragline process 1 --file-id notes.txt --chunk-size 512 --overlap 64
  ragline process 1 --reset`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processFileID, "file-id", "", "process only this asset (by stored file name)")
	processCmd.Flags().IntVar(&processChunk, "chunk-size", 512, "maximum chunk size in characters")
	processCmd.Flags().IntVar(&processOverlap, "overlap", 64, "overlap between neighboring chunks")
	processCmd.Flags().BoolVar(&processReset, "reset", false, "delete existing chunks and vectors first")
}

func parseProjectID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project ID %q (expected a positive integer)", arg)
	}
	return id, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	projectID, err := parseProjectID(args[0])
	if err != nil {
		return err
	}

	svc, err := getService(false)
	if err != nil {
		return err
	}
	pool, err := getPool(svc)
	if err != nil {
		return fmt.Errorf("init worker pool: %w", err)
	}
	defer pool.Release()

	jobID, err := pool.SubmitProcess(context.Background(), service.ProcessRequest{
		ProjectID:   projectID,
		FileID:      processFileID,
		ChunkSize:   processChunk,
		OverlapSize: processOverlap,
		DoReset:     processReset,
	})
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	fmt.Printf("Submitted ingestion job %s for project %d\n", jobID, projectID)
	pool.Wait()

	if verbose {
		printMetrics(svc)
	}
	return nil
}

func printMetrics(svc *service.IngestService) {
	snap := svc.Metrics().Snapshot()
	if snap.Chunking != nil {
		fmt.Printf("  Chunking: %d calls, %d chunks, avg %.1fms\n",
			snap.Chunking.Count, snap.Chunking.TotalItems, snap.Chunking.AvgTimeMs)
	}
	if snap.ChunkInsert != nil {
		fmt.Printf("  Chunk insert: %d batches, %d rows, avg %.1fms\n",
			snap.ChunkInsert.Count, snap.ChunkInsert.TotalItems, snap.ChunkInsert.AvgTimeMs)
	}
	if snap.Embedding != nil {
		fmt.Printf("  Embedding: %d batches, %d texts, avg %.1fms\n",
			snap.Embedding.Count, snap.Embedding.TotalItems, snap.Embedding.AvgTimeMs)
	}
	if snap.VectorUpsert != nil {
		fmt.Printf("  Vector upsert: %d batches, %d points, avg %.1fms\n",
			snap.VectorUpsert.Count, snap.VectorUpsert.TotalItems, snap.VectorUpsert.AvgTimeMs)
	}
	if snap.VectorSearch != nil {
		fmt.Printf("  Vector search: %d queries, avg %.1fms\n",
			snap.VectorSearch.Count, snap.VectorSearch.AvgTimeMs)
	}
}
