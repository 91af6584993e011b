// Package memory is an in-process vectorstore.Store used in tests and for
// running the pipeline without a Qdrant server.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/mfarrag/ragline/internal/vectorstore"
)

type collection struct {
	size   int
	points map[string]vectorstore.Point
}

// Store keeps collections in memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ vectorstore.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Connect(_ context.Context) error    { return nil }
func (s *Store) Disconnect(_ context.Context) error { return nil }

func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(_ context.Context, name string, embeddingSize int, doReset bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doReset {
		delete(s.collections, name)
	}
	if _, ok := s.collections[name]; ok {
		return false, nil
	}
	s.collections[name] = &collection{
		size:   embeddingSize,
		points: make(map[string]vectorstore.Point),
	}
	return true, nil
}

func (s *Store) DeleteCollection(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return false, nil
	}
	delete(s.collections, name)
	return true, nil
}

func (s *Store) UpsertBatch(_ context.Context, name string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		coll = &collection{points: make(map[string]vectorstore.Point)}
		s.collections[name] = coll
	}
	for _, p := range points {
		coll.points[p.ID] = p
	}
	return nil
}

func (s *Store) SearchByVector(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	results := make([]vectorstore.Result, 0, len(coll.points))
	for _, p := range coll.points {
		results = append(results, vectorstore.Result{
			Text:     p.Text,
			Score:    cosineSimilarity(vector, p.Vector),
			Metadata: p.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of points in a collection. Test helper.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return 0
	}
	return len(coll.points)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
