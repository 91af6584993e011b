// Package qdrant is a minimal REST client to Qdrant implementing the
// vectorstore.Store gateway. It assumes cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfarrag/ragline/internal/vectorstore"
)

// Config contains connection details for a Qdrant server.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Store talks to Qdrant over its HTTP API.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

var _ vectorstore.Store = (*Store)(nil)

// New creates a Qdrant store client. No connection is made until Connect.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Connect verifies the server is reachable.
func (s *Store) Connect(ctx context.Context) error {
	var out struct {
		Result any `json:"result"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/collections", s.url), &out); err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	return nil
}

// Disconnect releases pooled connections. Qdrant's HTTP API is stateless.
func (s *Store) Disconnect(_ context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// CollectionExists reports whether the named collection exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var out struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/collections/%s/exists", s.url, name), &out); err != nil {
		return false, fmt.Errorf("qdrant collection exists: %w", err)
	}
	return out.Result.Exists, nil
}

// CreateCollection creates the collection if missing, dropping any existing
// one first when doReset is set. Returns true if a collection was created.
func (s *Store) CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) (bool, error) {
	if embeddingSize <= 0 {
		return false, fmt.Errorf("invalid embedding size %d", embeddingSize)
	}

	if doReset {
		if _, err := s.DeleteCollection(ctx, name); err != nil {
			return false, err
		}
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     embeddingSize,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, name), body); err != nil {
		return false, fmt.Errorf("qdrant create collection: %w", err)
	}
	return true, nil
}

// DeleteCollection drops the collection. Absence is not an error.
func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, name), nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant delete collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("qdrant delete collection %s failed: %s", name, resp.Status)
	}

	var out struct {
		Result bool `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, nil
	}
	return out.Result, nil
}

// UpsertBatch writes points with wait=true so a completed upsert is durable
// before the pipeline reports progress.
func (s *Store) UpsertBatch(ctx context.Context, name string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(points))
	for i, p := range points {
		rows[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":     p.Text,
				"metadata": p.Metadata,
			},
		}
	}

	body := map[string]any{"points": rows}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, name), body); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// SearchByVector returns the closest points with payloads.
func (s *Store) SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.Result, error) {
	if limit <= 0 {
		limit = 5
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, name), req, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]vectorstore.Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := vectorstore.Result{Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			res.Text = v
		}
		if v, ok := r.Payload["metadata"].(map[string]any); ok {
			res.Metadata = v
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
