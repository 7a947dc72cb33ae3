package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localfiles/internal/handlers"
	"localfiles/internal/index"
	"localfiles/internal/indexer"
	"localfiles/internal/ingest"
	"localfiles/internal/query"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	forceJSON = false
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stats", r.URL.Path)
		_ = json.NewEncoder(w).Encode(handlers.StatsResponse{
			Index:    index.Stats{Records: 4, DistinctIDs: 2},
			Scanner:  indexer.Status{State: "warm", Passes: 3},
			Pipeline: ingest.Stats{Processed: 7, Outcomes: map[ingest.Outcome]int64{ingest.OutcomeIndexed: 4}},
			TopIDs:   []query.IDCount{{ID: "tt1", Count: 2}},
		})
	}))
	defer srv.Close()

	out, err := runCmd(t, "stats", "--server", srv.URL)
	require.NoError(t, err)

	// a buffer is not a terminal
	var got handlers.StatsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4, got.Index.Records)
	assert.Equal(t, int64(4), got.Pipeline.Outcomes[ingest.OutcomeIndexed])
}

func TestStatsCommandServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := runCmd(t, "stats", "--server", srv.URL)
	assert.ErrorContains(t, err, "500")
}

func TestRescanCommand(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		status string
		want   string
	}{
		{"started", http.StatusAccepted, "started", "Scan pass started."},
		{"busy", http.StatusConflict, "already_running", "already running"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(tt.code)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": tt.status})
			}))
			defer srv.Close()

			out, err := runCmd(t, "rescan", "--server", srv.URL)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestPrintStatsTable(t *testing.T) {
	var out bytes.Buffer
	printStats(&out, handlers.StatsResponse{
		Index:    index.Stats{Records: 4, Tombstones: 1},
		Scanner:  indexer.Status{State: "cold", Running: true, LastError: "mdfind exited 1"},
		Pipeline: ingest.Stats{Outcomes: map[ingest.Outcome]int64{"indexed": 3, "rejected": 1}},
		TopIDs:   []query.IDCount{{ID: "tt1", Count: 2}},
	})

	s := out.String()
	assert.Contains(t, s, "cold (0 passes, running)")
	assert.Contains(t, s, "mdfind exited 1")
	assert.Contains(t, s, "indexed=3 rejected=1")
	assert.Contains(t, s, "tt1")
}

func TestParseLookup(t *testing.T) {
	q, err := parseLookup([]string{"tt1"})
	require.NoError(t, err)
	assert.Equal(t, query.StreamQuery{IMDbID: "tt1"}, q)

	q, err = parseLookup([]string{"tt1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, query.StreamQuery{IMDbID: "tt1", Season: 2, Episodes: []int{3}}, q)

	_, err = parseLookup([]string{"tt1", "2"})
	assert.Error(t, err)
	_, err = parseLookup([]string{"tt1", "x", "3"})
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	idx := 2
	assert.Equal(t, "file:///a.mkv", location(query.StreamDescriptor{URL: "file:///a.mkv"}))
	assert.Equal(t, "abc#2", location(query.StreamDescriptor{InfoHash: "abc", MapIdx: &idx}))
}
