package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfarrag/ragline/internal/vectorstore"
)

func newTestStore(handler http.Handler) (*Store, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(Config{URL: srv.URL, APIKey: "test-key"}), srv
}

func TestDeleteCollectionAbsentIsNotAnError(t *testing.T) {
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	deleted, err := s.DeleteCollection(context.Background(), "collection_1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteCollectionServerError(t *testing.T) {
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := s.DeleteCollection(context.Background(), "collection_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCollectionExistsNon2xxIsError(t *testing.T) {
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := s.CollectionExists(context.Background(), "collection_1")
	require.Error(t, err)
}

func TestCreateCollectionSkipsExisting(t *testing.T) {
	var putCalls int
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"exists": true}})
		case r.Method == http.MethodPut:
			putCalls++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	created, err := s.CreateCollection(context.Background(), "collection_1", 4, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, putCalls, "existing collection must not be recreated")
}

func TestCreateCollectionSendsDimension(t *testing.T) {
	var body map[string]any
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"exists": false}})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	created, err := s.CreateCollection(context.Background(), "collection_1", 768, false)
	require.NoError(t, err)
	assert.True(t, created)

	vectors, ok := body["vectors"].(map[string]any)
	require.True(t, ok, "create body must carry a vectors config: %v", body)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestUpsertBatchWaitsAndAuthenticates(t *testing.T) {
	var gotWait, gotKey string
	var pointCount int
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWait = r.URL.Query().Get("wait")
		gotKey = r.Header.Get("api-key")
		var body struct {
			Points []map[string]any `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		pointCount = len(body.Points)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := s.UpsertBatch(context.Background(), "collection_1", []vectorstore.Point{
		{ID: "id-1", Vector: []float32{1, 0}, Text: "hello"},
		{ID: "id-2", Vector: []float32{0, 1}, Text: "world"},
	})
	require.NoError(t, err)
	assert.Equal(t, "true", gotWait, "upserts must be durable before progress is reported")
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, 2, pointCount)
}

func TestUpsertBatchNon2xxIsError(t *testing.T) {
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := s.UpsertBatch(context.Background(), "collection_1", []vectorstore.Point{
		{ID: "id-1", Vector: []float32{1}},
	})
	require.Error(t, err)
}

func TestSearchByVectorParsesPayloads(t *testing.T) {
	s, srv := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.92, "payload": map[string]any{"text": "first", "metadata": map[string]any{"source": "a.txt"}}},
				{"score": 0.47, "payload": map[string]any{"text": "second"}},
			},
		})
	}))
	defer srv.Close()

	results, err := s.SearchByVector(context.Background(), "collection_1", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, 0.92, results[0].Score)
	assert.Equal(t, "a.txt", results[0].Metadata["source"])
	assert.Equal(t, "second", results[1].Text)
}
