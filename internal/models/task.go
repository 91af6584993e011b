package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// TaskStatus is the lifecycle state of a task execution record.
// Status only moves forward through the non-terminal states into
// SUCCESS or FAILURE; terminal statuses are never overwritten.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusStarted TaskStatus = "STARTED"
	TaskStatusRetry   TaskStatus = "RETRY"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// Terminal reports whether the status is SUCCESS or FAILURE.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// TaskExecution is one row per attempted logical job, keyed by a content
// hash of (task name, arguments). CompletedAt is set if and only if the
// status is terminal.
type TaskExecution struct {
	ID surrealmodels.RecordID `json:"id"`

	TaskName string         `json:"task_name"`
	ArgsHash string         `json:"args_hash"`
	Args     map[string]any `json:"args"`

	// JobID is the identifier assigned by the queue layer, empty until dispatch.
	JobID string `json:"job_id,omitempty"`

	Status TaskStatus     `json:"status"`
	Result map[string]any `json:"result,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
