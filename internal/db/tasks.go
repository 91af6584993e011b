package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mfarrag/ragline/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// InsertTaskExecution commits a new ledger row. The task_dedup unique index
// makes this insert the linearization point for duplicate detection: a lost
// race surfaces as ErrDuplicateRecord, never as two committed rows.
func (c *Client) InsertTaskExecution(ctx context.Context, taskName, argsHash string, args map[string]any, jobID string, startedAt time.Time) (*models.TaskExecution, error) {
	results, err := surrealdb.Query[[]models.TaskExecution](ctx, c.db, `
		CREATE task_execution CONTENT {
			task_name: $task_name,
			args_hash: $args_hash,
			args: $args,
			job_id: $job_id,
			status: $status,
			started_at: <datetime>$started_at
		}
	`, map[string]any{
		"task_name":  taskName,
		"args_hash":  argsHash,
		"args":       args,
		"job_id":     jobID,
		"status":     string(models.TaskStatusPending),
		"started_at": startedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("insert task execution: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("insert task execution: empty result")
	}
	return &(*results)[0].Result[0], nil
}

// FindTaskExecution looks up the ledger row for (taskName, argsHash, jobID).
// Returns nil if no attempt with that identity has been recorded.
func (c *Client) FindTaskExecution(ctx context.Context, taskName, argsHash, jobID string) (*models.TaskExecution, error) {
	results, err := surrealdb.Query[[]models.TaskExecution](ctx, c.db, `
		SELECT * FROM task_execution
		WHERE task_name = $task_name AND args_hash = $args_hash AND job_id = $job_id
		LIMIT 1
	`, map[string]any{"task_name": taskName, "args_hash": argsHash, "job_id": jobID})
	if err != nil {
		return nil, fmt.Errorf("find task execution: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// UpdateTaskStatus transitions a ledger row, setting completed_at when the
// new status is terminal. Rows already in a terminal status are left alone.
func (c *Client) UpdateTaskStatus(ctx context.Context, executionID string, status models.TaskStatus, result map[string]any) error {
	sql := `
		UPDATE type::record("task_execution", $id) SET
			status = $status,
			result = $result ?? result
		WHERE status NOT IN ["SUCCESS", "FAILURE"]
	`
	if status.Terminal() {
		sql = `
			UPDATE type::record("task_execution", $id) SET
				status = $status,
				result = $result ?? result,
				completed_at = time::now()
			WHERE status NOT IN ["SUCCESS", "FAILURE"]
		`
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":     executionID,
		"status": string(status),
		"result": result,
	})
	if err != nil {
		return fmt.Errorf("update task status: %w", wrapQueryError(err))
	}
	return nil
}

// ReclaimTaskExecution resets an existing ledger row for a fresh attempt of
// the same logical job: back to PENDING with a new started_at, prior result
// and completion cleared. Used when the dedup policy allows a re-run of a
// failed or abandoned attempt, where the unique index forbids a second row.
// A SUCCESS row is never reclaimed: a presumed-abandoned worker that finished
// between the dedup check and this reset keeps its recorded outcome.
func (c *Client) ReclaimTaskExecution(ctx context.Context, executionID string, startedAt time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("task_execution", $id) SET
			status = $status,
			started_at = <datetime>$started_at,
			result = NONE,
			completed_at = NONE
		WHERE status != "SUCCESS"
	`, map[string]any{
		"id":         executionID,
		"status":     string(models.TaskStatusPending),
		"started_at": startedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("reclaim task execution: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteTaskExecutionsBefore removes ledger rows created before the cutoff,
// regardless of status, and returns the number removed. Storage hygiene only.
func (c *Client) DeleteTaskExecutionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	results, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM task_execution
		WHERE created_at < <datetime>$cutoff
		GROUP ALL
	`, map[string]any{"cutoff": cutoffStr})
	if err != nil {
		return 0, fmt.Errorf("count old task executions: %w", err)
	}
	count := 0
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		count = (*results)[0].Result[0].Count
	}
	if count == 0 {
		return 0, nil
	}

	_, err = surrealdb.Query[any](ctx, c.db, `
		DELETE task_execution WHERE created_at < <datetime>$cutoff
	`, map[string]any{"cutoff": cutoffStr})
	if err != nil {
		return 0, fmt.Errorf("delete old task executions: %w", wrapQueryError(err))
	}
	return count, nil
}

// ListRecentTaskExecutions returns the newest ledger rows, most recent first.
func (c *Client) ListRecentTaskExecutions(ctx context.Context, limit int) ([]models.TaskExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := surrealdb.Query[[]models.TaskExecution](ctx, c.db, `
		SELECT * FROM task_execution ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list task executions: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.TaskExecution{}, nil
	}
	return (*results)[0].Result, nil
}
