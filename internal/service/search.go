package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mfarrag/ragline/internal/metrics"
	"github.com/mfarrag/ragline/internal/vectorstore"
)

// SearchProject embeds the query and returns the closest indexed chunks for
// a project, best match first.
func (s *IngestService) SearchProject(ctx context.Context, projectID int64, query string, limit int) ([]vectorstore.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrValidation)
	}
	if limit <= 0 {
		limit = 5
	}

	if err := s.vectors.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}
	defer func() {
		_ = s.vectors.Disconnect(context.WithoutCancel(ctx))
	}()

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	results, err := s.vectors.SearchByVector(ctx, CollectionName(projectID), vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	s.metrics.RecordBatch(metrics.OpVectorSearch, time.Since(start), int64(len(results)))

	return results, nil
}
