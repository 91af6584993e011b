// Package vectorstore defines the capability interface over the vector
// index. The pipeline holds a derived, eventually-consistent projection of
// chunk content here; the document store stays the source of truth.
package vectorstore

import "context"

// Point is one vector record with its payload.
type Point struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// Result is a search hit.
type Result struct {
	Text     string
	Score    float64
	Metadata map[string]any
}

// Store is the Vector Store Gateway. Collection deletion is idempotent:
// deleting an absent collection is not an error, which is what makes the
// reset path safe to retry.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection creates a collection sized for the embedder's
	// dimension. With doReset it drops any existing collection first.
	// Returns true if a new collection was created.
	CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) (bool, error)
	// DeleteCollection returns true if a collection was actually removed.
	DeleteCollection(ctx context.Context, name string) (bool, error)

	UpsertBatch(ctx context.Context, name string, points []Point) error
	SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]Result, error)
}
