package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"localfiles/internal/handlers"
	"localfiles/internal/index"
	"localfiles/internal/indexer"
	"localfiles/internal/ingest"
	"localfiles/internal/query"
)

type stubStats struct {
	stats index.Stats
	err   error
}

func (s stubStats) Stats(context.Context) (index.Stats, error) { return s.stats, s.err }

func TestIndexStatsAdapter(t *testing.T) {
	a := &indexStatsAdapter{store: stubStats{stats: index.Stats{Records: 5, Tombstones: 2, InvertedKeys: 3, DistinctIDs: 1}}, timeout: time.Second}
	got := a.GetStats()
	assert.Equal(t, 5, got.Records)
	assert.Equal(t, 2, got.Tombstones)
	assert.Equal(t, 3, got.InvertedKeys)
	assert.Equal(t, 1, got.DistinctIDs)

	a = &indexStatsAdapter{store: stubStats{err: errors.New("locked")}, timeout: time.Second}
	assert.Zero(t, a.GetStats().Records)
}

type stubScanner struct{}

func (stubScanner) Status() indexer.Status { return indexer.Status{Passes: 1} }
func (stubScanner) TriggerScan() bool      { return true }

type stubPipeline struct{}

func (stubPipeline) Stats() ingest.Stats { return ingest.Stats{} }

func TestSetupRouter(t *testing.T) {
	q := query.New(index.NewStore(index.NewMemKV(), index.NewMemKV()), nil)
	h := handlers.New(q, stubStats{}, stubScanner{}, stubPipeline{})
	router := setupRouter(h)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/manifest.json", http.StatusOK},
		{http.MethodGet, "/stream/movie/tt1.json", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodPost, "/api/rescan", http.StatusAccepted},
		{http.MethodGet, "/api/rescan", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNewFilesystemLabelsVolumes(t *testing.T) {
	fs := newFilesystem([]string{t.TempDir()})
	_, err := fs.Stat(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
