package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// AssetType identifies the kind of source an asset was created from.
type AssetType string

const (
	// AssetTypeFile is an uploaded file stored in the filestore.
	AssetTypeFile AssetType = "file"
)

// Asset is one stored source file belonging to a project. Assets are created
// by the upload path and read-only to the ingestion pipeline.
type Asset struct {
	ID surrealmodels.RecordID `json:"id"`

	Project surrealmodels.RecordID `json:"project"`
	Type    AssetType              `json:"type"`

	// Name is the stored file identifier under the project's directory.
	Name string `json:"name"`
	Size int64  `json:"size"`

	CreatedAt time.Time `json:"created_at"`
}

// AssetInput is the input structure for registering an asset.
type AssetInput struct {
	ProjectID string    `json:"project"`
	Type      AssetType `json:"type"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
}
