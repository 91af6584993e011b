// Package ledger implements the task execution ledger: a durable record of
// background-job attempts used to deduplicate logical jobs and track their
// lifecycle. A logical job is identified by a content hash of its task name
// and normalized arguments, so identical requests hash identically no matter
// how the argument payload was assembled.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfarrag/ragline/internal/models"
)

// GracePeriod is added to a task's time limit before an in-flight attempt is
// presumed abandoned (worker crashed without reporting).
const GracePeriod = 60 * time.Second

// Store is the persistence surface the ledger needs. *db.Client satisfies it;
// tests substitute an in-memory implementation.
type Store interface {
	InsertTaskExecution(ctx context.Context, taskName, argsHash string, args map[string]any, jobID string, startedAt time.Time) (*models.TaskExecution, error)
	FindTaskExecution(ctx context.Context, taskName, argsHash, jobID string) (*models.TaskExecution, error)
	UpdateTaskStatus(ctx context.Context, executionID string, status models.TaskStatus, result map[string]any) error
	ReclaimTaskExecution(ctx context.Context, executionID string, startedAt time.Time) error
	DeleteTaskExecutionsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Ledger decides whether a job invocation should execute and records the
// attempt's lifecycle. It performs no retries itself; retry policy belongs to
// the queue layer wrapping the orchestrator.
type Ledger struct {
	store Store
	now   func() time.Time
}

// New creates a ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// ComputeArgsHash produces the deterministic digest identifying a logical
// job. The arguments are merged with the task name and serialized with
// sorted keys, so insertion order never changes the hash. The digest is a
// lookup key, not a capability token.
func ComputeArgsHash(taskName string, args map[string]any) (string, error) {
	combined := make(map[string]any, len(args)+1)
	for k, v := range args {
		combined[k] = v
	}
	combined["task_name"] = taskName

	// encoding/json writes map keys in sorted order, which is exactly the
	// canonical form the hash needs.
	data, err := json.Marshal(combined)
	if err != nil {
		return "", fmt.Errorf("normalize args: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CreateRecord inserts a new PENDING row for the attempt before any
// side-effecting work begins. Callers must not proceed if this fails: a
// db.ErrDuplicateRecord means another attempt for the same logical job
// committed its row first.
func (l *Ledger) CreateRecord(ctx context.Context, taskName string, args map[string]any, jobID string) (*models.TaskExecution, error) {
	argsHash, err := ComputeArgsHash(taskName, args)
	if err != nil {
		return nil, err
	}

	rec, err := l.store.InsertTaskExecution(ctx, taskName, argsHash, args, jobID, l.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create task record: %w", err)
	}

	slog.Debug("task record created", "task", taskName, "args_hash", argsHash, "job_id", jobID)
	return rec, nil
}

// Reclaim resets an existing record for a fresh attempt of the same logical
// job. The forward-only status invariant applies within one attempt; a
// permitted re-run (failed or abandoned prior attempt) starts a new attempt
// on the same row because the dedup index allows only one row per identity.
func (l *Ledger) Reclaim(ctx context.Context, executionID string) error {
	if err := l.store.ReclaimTaskExecution(ctx, executionID, l.now().UTC()); err != nil {
		return fmt.Errorf("reclaim task record: %w", err)
	}
	slog.Debug("task record reclaimed for re-run", "execution", executionID)
	return nil
}

// UpdateStatus transitions a record; completed_at is set by the store when
// the status becomes terminal. Only the owning execution updates its own
// record under normal operation, so last-write-wins is acceptable here.
func (l *Ledger) UpdateStatus(ctx context.Context, executionID string, status models.TaskStatus, result map[string]any) error {
	return l.store.UpdateTaskStatus(ctx, executionID, status, result)
}

// FindExisting looks up the attempt record for (taskName, args, jobID).
// Keying on the job ID means retries of the same queued job match the same
// record, while a brand-new submission with identical arguments is looked up
// as a distinct attempt.
func (l *Ledger) FindExisting(ctx context.Context, taskName string, args map[string]any, jobID string) (*models.TaskExecution, error) {
	argsHash, err := ComputeArgsHash(taskName, args)
	if err != nil {
		return nil, err
	}
	return l.store.FindTaskExecution(ctx, taskName, argsHash, jobID)
}

// ShouldExecute is the dedup decision. Policy, in order:
//
//  1. no existing record: proceed
//  2. SUCCESS: don't proceed, prior result available on the returned record
//  3. PENDING/STARTED/RETRY: proceed only if the attempt has outlived
//     timeLimit plus GracePeriod (presumed abandoned), otherwise another
//     attempt is still in flight and this one must back off
//  4. FAILURE: proceed, failed attempts are always retryable
//
// The check itself is not a lock; the unique index behind CreateRecord is
// what makes the guarantee real when two callers race past this lookup.
func (l *Ledger) ShouldExecute(ctx context.Context, taskName string, args map[string]any, jobID string, timeLimit time.Duration) (bool, *models.TaskExecution, error) {
	existing, err := l.FindExisting(ctx, taskName, args, jobID)
	if err != nil {
		return false, nil, err
	}

	if existing == nil {
		return true, nil, nil
	}

	switch existing.Status {
	case models.TaskStatusSuccess:
		return false, existing, nil

	case models.TaskStatusPending, models.TaskStatusStarted, models.TaskStatusRetry:
		elapsed := l.now().Sub(existing.StartedAt)
		if elapsed > timeLimit+GracePeriod {
			slog.Warn("task attempt presumed abandoned, allowing re-run",
				"task", taskName, "job_id", jobID, "elapsed", elapsed.Round(time.Second))
			return true, existing, nil
		}
		return false, existing, nil
	}

	// FAILURE and anything unrecognized: retryable
	return true, existing, nil
}

// CleanupOldTasks deletes records older than the retention window by
// creation time, regardless of status, and returns the number removed.
func (l *Ledger) CleanupOldTasks(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := l.now().UTC().Add(-retention)
	count, err := l.store.DeleteTaskExecutionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old tasks: %w", err)
	}
	if count > 0 {
		slog.Info("task ledger cleanup", "removed", count, "retention", retention)
	}
	return count, nil
}
