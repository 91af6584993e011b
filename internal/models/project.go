// Package models defines data structures for the ragline ingestion pipeline.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Project is the ownership root for assets and chunks. Projects are created
// on first reference by their client-supplied logical ID and never deleted
// by the pipeline.
type Project struct {
	ID surrealmodels.RecordID `json:"id"`

	// LogicalID is the external-facing project identifier supplied by clients.
	LogicalID int64 `json:"logical_id"`

	CreatedAt time.Time `json:"created_at"`
}
