package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DataChunk is one unit of chunked text derived from exactly one asset.
// Order is 1-based and gap-free within the chunk's (project, asset) pair;
// retrieval and debugging rely on that ordering.
type DataChunk struct {
	ID surrealmodels.RecordID `json:"id"`

	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Order    int            `json:"position"`

	Project surrealmodels.RecordID `json:"project"`
	Asset   surrealmodels.RecordID `json:"asset"`

	CreatedAt time.Time `json:"created_at"`
}

// ChunkInput is the input structure for bulk-inserting chunks.
type ChunkInput struct {
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Order     int            `json:"position"`
	ProjectID string         `json:"project"`
	AssetID   string         `json:"asset"`
}
