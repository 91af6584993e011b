package db

import (
	"context"
	"fmt"

	"github.com/mfarrag/ragline/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// BulkInsertChunks inserts chunk rows in one round trip and returns the
// inserted count. The (project, asset, position) unique index rejects
// re-inserting an order slot that already exists for the same asset.
func (c *Client) BulkInsertChunks(ctx context.Context, chunks []models.ChunkInput) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		rows[i] = map[string]any{
			"text":     ch.Text,
			"metadata": ch.Metadata,
			"position": ch.Order,
			"project":  ch.ProjectID,
			"asset":    ch.AssetID,
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			CREATE chunk CONTENT {
				text: $row.text,
				metadata: $row.metadata,
				position: $row.position,
				project: type::record("project", $row.project),
				asset: type::record("asset", $row.asset)
			};
		};
	`, map[string]any{"rows": rows})
	if err != nil {
		return 0, fmt.Errorf("bulk insert chunks: %w", wrapQueryError(err))
	}
	return len(chunks), nil
}

// DeleteChunksByProject removes every chunk row belonging to a project and
// returns the number removed. Used by the reset path before re-chunking.
func (c *Client) DeleteChunksByProject(ctx context.Context, projectID string) (int, error) {
	count, err := c.CountChunksByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}

	_, err = surrealdb.Query[any](ctx, c.db, `
		DELETE chunk WHERE project = type::record("project", $project)
	`, map[string]any{"project": projectID})
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", wrapQueryError(err))
	}
	return count, nil
}

// CountChunksByProject returns the number of chunk rows under a project.
func (c *Client) CountChunksByProject(ctx context.Context, projectID string) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	results, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM chunk
		WHERE project = type::record("project", $project)
		GROUP ALL
	`, map[string]any{"project": projectID})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// GetProjectChunks pages through a project's chunks in (asset, position)
// order, the order the vector indexer feeds them to the store.
func (c *Client) GetProjectChunks(ctx context.Context, projectID string, limit, offset int) ([]models.DataChunk, error) {
	if limit <= 0 {
		limit = 100
	}
	results, err := surrealdb.Query[[]models.DataChunk](ctx, c.db, `
		SELECT * FROM chunk
		WHERE project = type::record("project", $project)
		ORDER BY asset, position
		LIMIT $limit START $offset
	`, map[string]any{"project": projectID, "limit": limit, "offset": offset})
	if err != nil {
		return nil, fmt.Errorf("get project chunks: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.DataChunk{}, nil
	}
	return (*results)[0].Result, nil
}
