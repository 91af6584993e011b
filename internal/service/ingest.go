// Package service contains the ingestion orchestrator: the pipeline that
// turns a project's uploaded files into persisted chunk rows and a searchable
// vector index, with every run gated and recorded through the task ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mfarrag/ragline/internal/chunker"
	"github.com/mfarrag/ragline/internal/db"
	"github.com/mfarrag/ragline/internal/embedding"
	"github.com/mfarrag/ragline/internal/ledger"
	"github.com/mfarrag/ragline/internal/metrics"
	"github.com/mfarrag/ragline/internal/models"
	"github.com/mfarrag/ragline/internal/vectorstore"
)

// Task names recorded in the ledger.
const (
	TaskProcessProjectFiles = "process_project_files"
	TaskIndexProject        = "index_project"
)

// indexBatchSize is how many chunks are embedded and upserted per round trip.
const indexBatchSize = 50

// DocumentStore is the persistence surface the orchestrator needs from the
// document database. *db.Client satisfies it.
type DocumentStore interface {
	GetOrCreateProject(ctx context.Context, logicalID int64) (*models.Project, error)
	FindAssetByName(ctx context.Context, projectID, name string) (*models.Asset, error)
	ListAssets(ctx context.Context, projectID string, assetType models.AssetType) ([]models.Asset, error)
	BulkInsertChunks(ctx context.Context, chunks []models.ChunkInput) (int, error)
	DeleteChunksByProject(ctx context.Context, projectID string) (int, error)
	GetProjectChunks(ctx context.Context, projectID string, limit, offset int) ([]models.DataChunk, error)
}

// ContentReader loads raw asset content. *filestore.Store satisfies it.
type ContentReader interface {
	Read(projectID, name string) (string, error)
}

// IngestService orchestrates chunking and vector indexing for project files.
type IngestService struct {
	store     DocumentStore
	files     ContentReader
	chunker   chunker.Chunker
	vectors   vectorstore.Store
	embedder  embedding.Embedder
	ledger    *ledger.Ledger
	metrics   *metrics.Collector
	timeLimit time.Duration
}

// NewIngestService wires the orchestrator. timeLimit bounds how long a single
// attempt may run before a later submission presumes it abandoned.
func NewIngestService(
	store DocumentStore,
	files ContentReader,
	ch chunker.Chunker,
	vectors vectorstore.Store,
	embedder embedding.Embedder,
	led *ledger.Ledger,
	collector *metrics.Collector,
	timeLimit time.Duration,
) *IngestService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &IngestService{
		store:     store,
		files:     files,
		chunker:   ch,
		vectors:   vectors,
		embedder:  embedder,
		ledger:    led,
		metrics:   collector,
		timeLimit: timeLimit,
	}
}

// Metrics exposes the service's collector.
func (s *IngestService) Metrics() *metrics.Collector {
	return s.metrics
}

// CollectionName returns the vector collection for a project.
func CollectionName(projectID int64) string {
	return fmt.Sprintf("collection_%d", projectID)
}

// ProcessRequest describes one ingestion submission.
type ProcessRequest struct {
	ProjectID   int64
	FileID      string // optional: restrict to one asset by name
	ChunkSize   int
	OverlapSize int
	DoReset     bool
	JobID       string
}

func (r ProcessRequest) args() map[string]any {
	return map[string]any{
		"project_id":   r.ProjectID,
		"file_id":      r.FileID,
		"chunk_size":   r.ChunkSize,
		"overlap_size": r.OverlapSize,
		"do_reset":     r.DoReset,
	}
}

// ProcessProjectFiles runs one ingestion attempt end to end: dedup check,
// ledger record, chunking, persistence, and guaranteed finalization. A
// duplicate of an already-succeeded job returns the recorded outcome without
// doing any work; a duplicate of an in-flight job returns ErrInFlight.
func (s *IngestService) ProcessProjectFiles(ctx context.Context, req ProcessRequest) (*models.IngestionOutcome, error) {
	if req.ChunkSize <= 0 || req.OverlapSize < 0 || req.OverlapSize >= req.ChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", ErrValidation, req.ChunkSize, req.OverlapSize)
	}

	execID, prior, err := s.acquire(ctx, TaskProcessProjectFiles, req.args(), req.JobID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		outcome := models.OutcomeFromMap(prior.Result)
		slog.Info("duplicate submission, returning recorded outcome",
			"task", TaskProcessProjectFiles, "job_id", req.JobID, "signal", outcome.Signal)
		return &outcome, nil
	}

	finalized := false
	defer func() {
		if !finalized {
			if ferr := s.ledger.UpdateStatus(context.WithoutCancel(ctx), execID, models.TaskStatusFailure, nil); ferr != nil {
				slog.Error("failed to finalize abandoned task record", "execution", execID, "error", ferr)
			}
		}
		if derr := s.vectors.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			slog.Warn("vector store disconnect failed", "error", derr)
		}
	}()

	outcome, runErr := s.runIngestion(ctx, req)
	if runErr != nil {
		outcome.Signal = classifySignal(runErr)
		if uerr := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusFailure, outcome.ToMap()); uerr != nil {
			slog.Error("failed to record task failure", "execution", execID, "error", uerr)
		}
		finalized = true
		return &outcome, runErr
	}

	if err := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusSuccess, outcome.ToMap()); err != nil {
		slog.Error("failed to record task success", "execution", execID, "error", err)
	}
	finalized = true
	return &outcome, nil
}

// acquire performs the dedup check and claims a ledger row for this attempt.
// Returns the execution record ID on a claim, or the prior record when a
// succeeded duplicate short-circuits.
func (s *IngestService) acquire(ctx context.Context, taskName string, args map[string]any, jobID string) (string, *models.TaskExecution, error) {
	run, existing, err := s.ledger.ShouldExecute(ctx, taskName, args, jobID, s.timeLimit)
	if err != nil {
		return "", nil, fmt.Errorf("dedup check: %w", err)
	}
	if !run {
		if existing != nil && existing.Status == models.TaskStatusSuccess {
			return "", existing, nil
		}
		return "", nil, fmt.Errorf("%w: job %s", ErrInFlight, jobID)
	}

	// A permitted re-run of a failed or abandoned attempt reuses its row;
	// the dedup index allows only one per (task, args, job) identity.
	if existing != nil {
		execID, err := models.RecordIDString(existing.ID)
		if err != nil {
			return "", nil, fmt.Errorf("execution record ID: %w", err)
		}
		if err := s.ledger.Reclaim(ctx, execID); err != nil {
			return "", nil, err
		}
		if err := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusStarted, nil); err != nil {
			slog.Warn("failed to mark task started", "execution", execID, "error", err)
		}
		return execID, nil, nil
	}

	rec, err := s.ledger.CreateRecord(ctx, taskName, args, jobID)
	if err != nil {
		// Losing the insert race means another attempt claimed the job
		// between our lookup and our insert.
		if errors.Is(err, db.ErrDuplicateRecord) {
			return "", nil, fmt.Errorf("%w: job %s", ErrInFlight, jobID)
		}
		return "", nil, err
	}

	execID, err := models.RecordIDString(rec.ID)
	if err != nil {
		return "", nil, fmt.Errorf("execution record ID: %w", err)
	}
	if err := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusStarted, nil); err != nil {
		slog.Warn("failed to mark task started", "execution", execID, "error", err)
	}
	return execID, nil, nil
}

// runIngestion does the actual work: resolve assets, optionally reset, then
// chunk and persist each readable file. Unreadable assets are skipped so one
// bad file never sinks the whole run.
func (s *IngestService) runIngestion(ctx context.Context, req ProcessRequest) (models.IngestionOutcome, error) {
	outcome := models.IngestionOutcome{Signal: models.SignalProcessingFailed}

	project, err := s.store.GetOrCreateProject(ctx, req.ProjectID)
	if err != nil {
		return outcome, fmt.Errorf("resolve project: %w", err)
	}
	projectKey, err := models.RecordIDString(project.ID)
	if err != nil {
		return outcome, fmt.Errorf("project record ID: %w", err)
	}

	assets, err := s.resolveAssets(ctx, projectKey, req.FileID)
	if err != nil {
		return outcome, err
	}

	// Reset order matters: drop the derived vector projection before the
	// source rows, so a crash in between leaves no index over deleted data.
	if req.DoReset {
		if err := s.vectors.Connect(ctx); err != nil {
			return outcome, fmt.Errorf("connect vector store: %w", err)
		}
		if _, err := s.vectors.DeleteCollection(ctx, CollectionName(req.ProjectID)); err != nil {
			return outcome, fmt.Errorf("reset vector collection: %w", err)
		}
		removed, err := s.store.DeleteChunksByProject(ctx, projectKey)
		if err != nil {
			return outcome, fmt.Errorf("reset chunks: %w", err)
		}
		slog.Info("project reset", "project", req.ProjectID, "removed_chunks", removed)
	}

	projectDir := strconv.FormatInt(req.ProjectID, 10)

	for _, asset := range assets {
		assetKey, err := models.RecordIDString(asset.ID)
		if err != nil {
			slog.Warn("skipping asset with unusable record ID", "asset", asset.Name, "error", err)
			continue
		}

		content, err := s.files.Read(projectDir, asset.Name)
		if err != nil {
			slog.Warn("skipping unreadable asset", "project", req.ProjectID, "asset", asset.Name, "error", err)
			continue
		}

		start := time.Now()
		chunks, err := s.chunker.Chunk(content, map[string]any{"source": asset.Name}, req.ChunkSize, req.OverlapSize)
		if err != nil {
			slog.Warn("skipping asset that failed to chunk", "asset", asset.Name, "error", err)
			continue
		}
		s.metrics.RecordBatch(metrics.OpChunking, time.Since(start), int64(len(chunks)))

		if len(chunks) == 0 {
			slog.Debug("asset produced no chunks", "asset", asset.Name)
			outcome.ProcessedFiles++
			continue
		}

		rows := make([]models.ChunkInput, len(chunks))
		for i, ch := range chunks {
			rows[i] = models.ChunkInput{
				Text:      ch.Text,
				Metadata:  ch.Metadata,
				Order:     i + 1,
				ProjectID: projectKey,
				AssetID:   assetKey,
			}
		}

		start = time.Now()
		inserted, err := s.store.BulkInsertChunks(ctx, rows)
		if err != nil {
			slog.Warn("skipping asset whose chunks failed to persist", "asset", asset.Name, "error", err)
			continue
		}
		s.metrics.RecordBatch(metrics.OpChunkInsert, time.Since(start), int64(inserted))

		outcome.ProcessedFiles++
		outcome.InsertedChunks += inserted
	}

	// Skipped assets reduce the aggregates but never fail the run; a project
	// whose every file was unreadable still completes with zero counts.
	if outcome.ProcessedFiles == 0 {
		slog.Warn("no assets could be processed", "project", req.ProjectID, "assets", len(assets))
	}

	outcome.Signal = models.SignalProcessingSuccess
	slog.Info("ingestion complete",
		"project", req.ProjectID, "files", outcome.ProcessedFiles, "chunks", outcome.InsertedChunks)
	return outcome, nil
}

func (s *IngestService) resolveAssets(ctx context.Context, projectKey, fileID string) ([]models.Asset, error) {
	if fileID != "" {
		asset, err := s.store.FindAssetByName(ctx, projectKey, fileID)
		if err != nil {
			return nil, fmt.Errorf("find asset: %w", err)
		}
		if asset == nil {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, fileID)
		}
		return []models.Asset{*asset}, nil
	}

	assets, err := s.store.ListAssets(ctx, projectKey, models.AssetTypeFile)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}
	return assets, nil
}

// IndexProject embeds a project's persisted chunks and upserts them into the
// vector collection, in batches. Gated through the ledger like processing.
// Returns the number of chunks indexed.
func (s *IngestService) IndexProject(ctx context.Context, projectID int64, doReset bool, jobID string) (int, error) {
	args := map[string]any{"project_id": projectID, "do_reset": doReset}

	execID, prior, err := s.acquire(ctx, TaskIndexProject, args, jobID)
	if err != nil {
		return 0, err
	}
	if prior != nil {
		return models.OutcomeFromMap(prior.Result).InsertedChunks, nil
	}

	finalized := false
	defer func() {
		if !finalized {
			if ferr := s.ledger.UpdateStatus(context.WithoutCancel(ctx), execID, models.TaskStatusFailure, nil); ferr != nil {
				slog.Error("failed to finalize abandoned task record", "execution", execID, "error", ferr)
			}
		}
		if derr := s.vectors.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			slog.Warn("vector store disconnect failed", "error", derr)
		}
	}()

	total, runErr := s.runIndex(ctx, projectID, doReset)
	result := map[string]any{"inserted_chunks": total}
	if runErr != nil {
		if uerr := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusFailure, result); uerr != nil {
			slog.Error("failed to record task failure", "execution", execID, "error", uerr)
		}
		finalized = true
		return total, runErr
	}

	if err := s.ledger.UpdateStatus(ctx, execID, models.TaskStatusSuccess, result); err != nil {
		slog.Error("failed to record task success", "execution", execID, "error", err)
	}
	finalized = true
	return total, nil
}

func (s *IngestService) runIndex(ctx context.Context, projectID int64, doReset bool) (int, error) {
	project, err := s.store.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("resolve project: %w", err)
	}
	projectKey, err := models.RecordIDString(project.ID)
	if err != nil {
		return 0, fmt.Errorf("project record ID: %w", err)
	}

	if err := s.vectors.Connect(ctx); err != nil {
		return 0, fmt.Errorf("connect vector store: %w", err)
	}

	collection := CollectionName(projectID)
	created, err := s.vectors.CreateCollection(ctx, collection, s.embedder.Dimension(), doReset)
	if err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}
	if created {
		slog.Info("vector collection created", "collection", collection, "dimension", s.embedder.Dimension())
	}

	total := 0
	offset := 0
	for {
		chunks, err := s.store.GetProjectChunks(ctx, projectKey, indexBatchSize, offset)
		if err != nil {
			return total, fmt.Errorf("load chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}

		start := time.Now()
		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed batch at offset %d: %w", offset, err)
		}
		s.metrics.RecordBatch(metrics.OpEmbedding, time.Since(start), int64(len(texts)))

		points := make([]vectorstore.Point, len(chunks))
		for i, ch := range chunks {
			points[i] = vectorstore.Point{
				ID:       pointID(ch),
				Vector:   vectors[i],
				Text:     ch.Text,
				Metadata: ch.Metadata,
			}
		}

		start = time.Now()
		if err := s.vectors.UpsertBatch(ctx, collection, points); err != nil {
			return total, fmt.Errorf("upsert batch at offset %d: %w", offset, err)
		}
		s.metrics.RecordBatch(metrics.OpVectorUpsert, time.Since(start), int64(len(points)))

		total += len(chunks)
		offset += len(chunks)
		if len(chunks) < indexBatchSize {
			break
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("%w: project %d has no chunks to index", ErrNoAssets, projectID)
	}

	slog.Info("indexing complete", "project", projectID, "collection", collection, "chunks", total)
	return total, nil
}

// pointID derives a stable UUID for a chunk so re-indexing upserts in place
// instead of accumulating duplicate points.
func pointID(ch models.DataChunk) string {
	key, err := models.RecordIDString(ch.ID)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("chunk:"+key)).String()
}
