package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mfarrag/ragline/internal/chunker"
	"github.com/mfarrag/ragline/internal/db"
	"github.com/mfarrag/ragline/internal/ledger"
	"github.com/mfarrag/ragline/internal/models"
	"github.com/mfarrag/ragline/internal/vectorstore/memory"
)

// --- fakes ---

type fakeStore struct {
	assets        []models.Asset
	insertedRows  []models.ChunkInput
	chunks        []models.DataChunk
	deleteLog     *[]string // shared op log for reset ordering
	deletedChunks int
	deleteErr     error // injected DeleteChunksByProject failure
}

func newFakeStore(assetNames ...string) *fakeStore {
	s := &fakeStore{}
	for i, name := range assetNames {
		s.assets = append(s.assets, models.Asset{
			ID:   surrealmodels.RecordID{Table: "asset", ID: fmt.Sprintf("a%d", i+1)},
			Type: models.AssetTypeFile,
			Name: name,
		})
	}
	return s
}

func (s *fakeStore) GetOrCreateProject(_ context.Context, logicalID int64) (*models.Project, error) {
	return &models.Project{
		ID:        surrealmodels.RecordID{Table: "project", ID: "p1"},
		LogicalID: logicalID,
	}, nil
}

func (s *fakeStore) FindAssetByName(_ context.Context, _, name string) (*models.Asset, error) {
	for _, a := range s.assets {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListAssets(_ context.Context, _ string, _ models.AssetType) ([]models.Asset, error) {
	return s.assets, nil
}

func (s *fakeStore) BulkInsertChunks(_ context.Context, chunks []models.ChunkInput) (int, error) {
	s.insertedRows = append(s.insertedRows, chunks...)
	return len(chunks), nil
}

func (s *fakeStore) DeleteChunksByProject(_ context.Context, _ string) (int, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if s.deleteLog != nil {
		*s.deleteLog = append(*s.deleteLog, "chunks")
	}
	n := s.deletedChunks
	s.deletedChunks = 0
	return n, nil
}

func (s *fakeStore) GetProjectChunks(_ context.Context, _ string, limit, offset int) ([]models.DataChunk, error) {
	if offset >= len(s.chunks) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.chunks) {
		end = len(s.chunks)
	}
	return s.chunks[offset:end], nil
}

type fakeReader struct {
	contents map[string]string
}

func (r *fakeReader) Read(_, name string) (string, error) {
	content, ok := r.contents[name]
	if !ok {
		return "", fmt.Errorf("read asset %s: no such file", name)
	}
	return content, nil
}

// fakeChunker splits on "|" so tests control chunk counts exactly.
type fakeChunker struct {
	calls int
}

func (c *fakeChunker) Chunk(content string, metadata map[string]any, _, _ int) ([]chunker.Chunk, error) {
	c.calls++
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	parts := strings.Split(content, "|")
	chunks := make([]chunker.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = chunker.Chunk{Text: p, Metadata: metadata}
	}
	return chunks, nil
}

type fakeEmbedder struct {
	dim   int
	calls int
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		v[0] = float32(len(t))
		v[e.dim-1] = 1
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Model() string  { return "fake" }
func (e *fakeEmbedder) Dimension() int { return e.dim }

// memLedgerStore is an in-memory ledger.Store enforcing the dedup key.
type memLedgerStore struct {
	rows   map[string]*models.TaskExecution
	nextID int
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{rows: make(map[string]*models.TaskExecution)}
}

func dedupKey(taskName, argsHash, jobID string) string {
	return taskName + "\x00" + argsHash + "\x00" + jobID
}

func (m *memLedgerStore) InsertTaskExecution(_ context.Context, taskName, argsHash string, args map[string]any, jobID string, startedAt time.Time) (*models.TaskExecution, error) {
	key := dedupKey(taskName, argsHash, jobID)
	if _, exists := m.rows[key]; exists {
		return nil, fmt.Errorf("insert task execution: %w", db.ErrDuplicateRecord)
	}
	m.nextID++
	rec := &models.TaskExecution{
		ID:        surrealmodels.RecordID{Table: "task_execution", ID: fmt.Sprintf("t%d", m.nextID)},
		TaskName:  taskName,
		ArgsHash:  argsHash,
		Args:      args,
		JobID:     jobID,
		Status:    models.TaskStatusPending,
		StartedAt: startedAt,
		CreatedAt: startedAt,
	}
	m.rows[key] = rec
	return rec, nil
}

func (m *memLedgerStore) FindTaskExecution(_ context.Context, taskName, argsHash, jobID string) (*models.TaskExecution, error) {
	rec, ok := m.rows[dedupKey(taskName, argsHash, jobID)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (m *memLedgerStore) UpdateTaskStatus(_ context.Context, executionID string, status models.TaskStatus, result map[string]any) error {
	for _, rec := range m.rows {
		if models.MustRecordIDString(rec.ID) != executionID {
			continue
		}
		if rec.Status.Terminal() {
			return nil
		}
		rec.Status = status
		if result != nil {
			rec.Result = result
		}
		if status.Terminal() {
			now := time.Now().UTC()
			rec.CompletedAt = &now
		}
		return nil
	}
	return fmt.Errorf("execution %s not found", executionID)
}

func (m *memLedgerStore) ReclaimTaskExecution(_ context.Context, executionID string, startedAt time.Time) error {
	for _, rec := range m.rows {
		if models.MustRecordIDString(rec.ID) != executionID {
			continue
		}
		if rec.Status == models.TaskStatusSuccess {
			return nil
		}
		rec.Status = models.TaskStatusPending
		rec.StartedAt = startedAt
		rec.Result = nil
		rec.CompletedAt = nil
	}
	return nil
}

func (m *memLedgerStore) DeleteTaskExecutionsBefore(_ context.Context, cutoff time.Time) (int, error) {
	count := 0
	for key, rec := range m.rows {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.rows, key)
			count++
		}
	}
	return count, nil
}

func (m *memLedgerStore) find(taskName, jobID string) *models.TaskExecution {
	for _, rec := range m.rows {
		if rec.TaskName == taskName && rec.JobID == jobID {
			return rec
		}
	}
	return nil
}

// --- harness ---

type harness struct {
	store    *fakeStore
	reader   *fakeReader
	chunker  *fakeChunker
	vectors  *memory.Store
	embedder *fakeEmbedder
	ledStore *memLedgerStore
	svc      *IngestService
}

func newHarness(store *fakeStore, contents map[string]string) *harness {
	h := &harness{
		store:    store,
		reader:   &fakeReader{contents: contents},
		chunker:  &fakeChunker{},
		vectors:  memory.New(),
		embedder: &fakeEmbedder{dim: 4},
		ledStore: newMemLedgerStore(),
	}
	h.svc = NewIngestService(
		h.store, h.reader, h.chunker, h.vectors, h.embedder,
		ledger.New(h.ledStore), nil, 10*time.Minute,
	)
	return h
}

// --- tests ---

func TestProcessProjectFilesSuccess(t *testing.T) {
	h := newHarness(newFakeStore("a.txt", "b.txt"), map[string]string{
		"a.txt": "one|two|three",
		"b.txt": "four|five",
	})

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 20, JobID: "job-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)
	assert.Equal(t, 2, outcome.ProcessedFiles)
	assert.Equal(t, 5, outcome.InsertedChunks)

	rec := h.ledStore.find(TaskProcessProjectFiles, "job-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, outcome.ToMap()["signal"], rec.Result["signal"])
}

func TestProcessProjectFilesChunkOrder(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{
		"a.txt": "one|two|three",
	})

	_, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.NoError(t, err)

	require.Len(t, h.store.insertedRows, 3)
	for i, row := range h.store.insertedRows {
		assert.Equal(t, i+1, row.Order, "chunk order must be 1-based and gap-free")
		assert.Equal(t, "p1", row.ProjectID)
		assert.Equal(t, "a1", row.AssetID)
	}
}

func TestProcessProjectFilesPartialFailure(t *testing.T) {
	// b.txt has no content entry, so reading it fails and it is skipped.
	h := newHarness(newFakeStore("a.txt", "b.txt"), map[string]string{
		"a.txt": "one|two",
	})

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)
	assert.Equal(t, 1, outcome.ProcessedFiles)
	assert.Equal(t, 2, outcome.InsertedChunks)
}

func TestProcessProjectFilesAllUnreadableStillSucceeds(t *testing.T) {
	// Skips never fail the run: a project whose every file is unreadable
	// completes with zero counts rather than triggering queue retries.
	h := newHarness(newFakeStore("a.txt", "b.txt"), map[string]string{})

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)
	assert.Equal(t, 0, outcome.ProcessedFiles)
	assert.Equal(t, 0, outcome.InsertedChunks)

	rec := h.ledStore.find(TaskProcessProjectFiles, "job-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
}

func TestProcessProjectFilesEmptyAssetCountsAsProcessed(t *testing.T) {
	// A readable file that yields no chunks still counts toward the
	// processed-file aggregate; only its chunk insert is skipped.
	h := newHarness(newFakeStore("empty.txt", "full.txt"), map[string]string{
		"empty.txt": "   ",
		"full.txt":  "one|two",
	})

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)
	assert.Equal(t, 2, outcome.ProcessedFiles)
	assert.Equal(t, 2, outcome.InsertedChunks)
}

func TestProcessProjectFilesNoAssets(t *testing.T) {
	h := newHarness(newFakeStore(), nil)

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.ErrorIs(t, err, ErrNoAssets)
	assert.Equal(t, models.SignalNoFiles, outcome.Signal)

	rec := h.ledStore.find(TaskProcessProjectFiles, "job-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.TaskStatusFailure, rec.Status)
}

func TestProcessProjectFilesUnknownFileID(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one"})

	outcome, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, FileID: "missing.txt", ChunkSize: 100, OverlapSize: 0, JobID: "job-1",
	})
	require.ErrorIs(t, err, ErrAssetNotFound)
	assert.Equal(t, models.SignalFileIDError, outcome.Signal)
}

func TestProcessProjectFilesValidation(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one"})

	_, err := h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 0, OverlapSize: 0, JobID: "job-1",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 100, JobID: "job-2",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

// loggingVectors records collection deletions into a shared op log so tests
// can assert ordering against document-store deletions.
type loggingVectors struct {
	*memory.Store
	log *[]string
}

func (v *loggingVectors) DeleteCollection(ctx context.Context, name string) (bool, error) {
	*v.log = append(*v.log, "collection")
	return v.Store.DeleteCollection(ctx, name)
}

func TestProcessProjectFilesResetOrder(t *testing.T) {
	opLog := []string{}
	store := newFakeStore("a.txt")
	store.deleteLog = &opLog
	h := newHarness(store, map[string]string{"a.txt": "one|two"})
	h.svc.vectors = &loggingVectors{Store: h.vectors, log: &opLog}

	// Pre-create the collection so the reset has something to drop.
	_, err := h.vectors.CreateCollection(context.Background(), CollectionName(1), 4, false)
	require.NoError(t, err)

	_, err = h.svc.ProcessProjectFiles(context.Background(), ProcessRequest{
		ProjectID: 1, ChunkSize: 100, OverlapSize: 0, DoReset: true, JobID: "job-1",
	})
	require.NoError(t, err)

	exists, err := h.vectors.CollectionExists(context.Background(), CollectionName(1))
	require.NoError(t, err)
	assert.False(t, exists, "reset must drop the vector collection")
	assert.Equal(t, []string{"collection", "chunks"}, opLog, "collection drops before chunk rows")
}

func TestProcessProjectFilesDuplicateReturnsPriorOutcome(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one|two"})
	req := ProcessRequest{ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1"}

	first, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.NoError(t, err)
	callsAfterFirst := h.chunker.calls

	second, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second, "duplicate returns the recorded outcome")
	assert.Equal(t, callsAfterFirst, h.chunker.calls, "no re-chunking on duplicate")
}

func TestProcessProjectFilesInFlightBlocks(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one"})
	req := ProcessRequest{ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1"}

	// Simulate an in-flight attempt by pre-inserting a young PENDING row.
	hash, err := ledger.ComputeArgsHash(TaskProcessProjectFiles, req.args())
	require.NoError(t, err)
	_, err = h.ledStore.InsertTaskExecution(context.Background(), TaskProcessProjectFiles, hash, req.args(), "job-1", time.Now().UTC())
	require.NoError(t, err)

	_, err = h.svc.ProcessProjectFiles(context.Background(), req)
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestProcessProjectFilesNewJobIDRunsFresh(t *testing.T) {
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one|two"})
	req := ProcessRequest{ProjectID: 1, ChunkSize: 100, OverlapSize: 0, JobID: "job-1"}

	_, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.NoError(t, err)

	req.JobID = "job-2"
	outcome, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)
	assert.NotNil(t, h.ledStore.find(TaskProcessProjectFiles, "job-2"))
}

func TestProcessProjectFilesRetryAfterFailureReusesRecord(t *testing.T) {
	// First attempt fails during the reset, second succeeds once the
	// store recovers. Both attempts share one ledger row.
	h := newHarness(newFakeStore("a.txt"), map[string]string{"a.txt": "one|two"})
	h.store.deleteErr = fmt.Errorf("store unavailable")
	req := ProcessRequest{ProjectID: 1, ChunkSize: 100, OverlapSize: 0, DoReset: true, JobID: "job-1"}

	_, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, models.TaskStatusFailure, h.ledStore.find(TaskProcessProjectFiles, "job-1").Status)

	h.store.deleteErr = nil
	outcome, err := h.svc.ProcessProjectFiles(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SignalProcessingSuccess, outcome.Signal)

	rec := h.ledStore.find(TaskProcessProjectFiles, "job-1")
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
	assert.Len(t, h.ledStore.rows, 1, "retry reuses the existing ledger row")
}

func TestIndexProjectBatches(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 120; i++ {
		store.chunks = append(store.chunks, models.DataChunk{
			ID:    surrealmodels.RecordID{Table: "chunk", ID: fmt.Sprintf("c%d", i)},
			Text:  fmt.Sprintf("chunk %d", i),
			Order: i + 1,
		})
	}
	h := newHarness(store, nil)

	total, err := h.svc.IndexProject(context.Background(), 1, false, "idx-1")
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	assert.Equal(t, 3, h.embedder.calls, "120 chunks embed in batches of 50")
	assert.Equal(t, 120, h.vectors.Count(CollectionName(1)))

	rec := h.ledStore.find(TaskIndexProject, "idx-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.TaskStatusSuccess, rec.Status)
}

func TestIndexProjectIdempotentUpserts(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 10; i++ {
		store.chunks = append(store.chunks, models.DataChunk{
			ID:   surrealmodels.RecordID{Table: "chunk", ID: fmt.Sprintf("c%d", i)},
			Text: fmt.Sprintf("chunk %d", i),
		})
	}
	h := newHarness(store, nil)

	_, err := h.svc.IndexProject(context.Background(), 1, false, "idx-1")
	require.NoError(t, err)
	_, err = h.svc.IndexProject(context.Background(), 1, false, "idx-2")
	require.NoError(t, err)

	assert.Equal(t, 10, h.vectors.Count(CollectionName(1)), "stable point IDs keep re-indexing in place")
}

func TestIndexProjectNoChunks(t *testing.T) {
	h := newHarness(newFakeStore(), nil)

	_, err := h.svc.IndexProject(context.Background(), 1, false, "idx-1")
	require.ErrorIs(t, err, ErrNoAssets)

	rec := h.ledStore.find(TaskIndexProject, "idx-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.TaskStatusFailure, rec.Status)
}
