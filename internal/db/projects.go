package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/mfarrag/ragline/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// GetOrCreateProject resolves a project by its client-supplied logical ID,
// creating it if absent. A concurrent create racing past the lookup loses to
// the unique index and falls back to re-reading the winner's row.
func (c *Client) GetOrCreateProject(ctx context.Context, logicalID int64) (*models.Project, error) {
	project, err := c.findProject(ctx, logicalID)
	if err != nil {
		return nil, err
	}
	if project != nil {
		return project, nil
	}

	results, err := surrealdb.Query[[]models.Project](ctx, c.db, `
		CREATE project SET logical_id = $logical_id
	`, map[string]any{"logical_id": logicalID})
	if err != nil {
		if errors.Is(wrapQueryError(err), ErrDuplicateRecord) {
			return c.findProject(ctx, logicalID)
		}
		return nil, fmt.Errorf("create project: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create project: empty result")
	}
	return &(*results)[0].Result[0], nil
}

func (c *Client) findProject(ctx context.Context, logicalID int64) (*models.Project, error) {
	results, err := surrealdb.Query[[]models.Project](ctx, c.db, `
		SELECT * FROM project WHERE logical_id = $logical_id LIMIT 1
	`, map[string]any{"logical_id": logicalID})
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// CreateAsset registers an uploaded file under a project.
func (c *Client) CreateAsset(ctx context.Context, input models.AssetInput) (*models.Asset, error) {
	results, err := surrealdb.Query[[]models.Asset](ctx, c.db, `
		CREATE asset CONTENT {
			project: type::record("project", $project),
			type: $type,
			name: $name,
			size: $size
		}
	`, map[string]any{
		"project": input.ProjectID,
		"type":    string(input.Type),
		"name":    input.Name,
		"size":    input.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create asset: empty result")
	}
	return &(*results)[0].Result[0], nil
}

// FindAssetByName looks up a single asset by its stored file name under a
// project. Returns nil if not found.
func (c *Client) FindAssetByName(ctx context.Context, projectID, name string) (*models.Asset, error) {
	results, err := surrealdb.Query[[]models.Asset](ctx, c.db, `
		SELECT * FROM asset
		WHERE project = type::record("project", $project) AND name = $name
		LIMIT 1
	`, map[string]any{"project": projectID, "name": name})
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListAssets returns all assets of the given type under a project.
func (c *Client) ListAssets(ctx context.Context, projectID string, assetType models.AssetType) ([]models.Asset, error) {
	results, err := surrealdb.Query[[]models.Asset](ctx, c.db, `
		SELECT * FROM asset
		WHERE project = type::record("project", $project) AND type = $type
		ORDER BY created_at
	`, map[string]any{"project": projectID, "type": string(assetType)})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Asset{}, nil
	}
	return (*results)[0].Result, nil
}
