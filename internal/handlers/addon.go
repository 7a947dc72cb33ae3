package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"localfiles/internal/apperr"
	"localfiles/internal/catalog"
	"localfiles/internal/logging"
	"localfiles/internal/metrics"
	"localfiles/internal/query"
	"localfiles/internal/startup"
)

// maxRequestSize bounds JSON-RPC request bodies.
const maxRequestSize = 1 << 20

// Manifest describes the addon to clients.
type Manifest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Types       []string `json:"types"`
	IDProperty  string   `json:"idProperty"`
	// Filter is the pre-4.0 form of Types and IDProperty
	Filter map[string]any `json:"filter"`
}

// AddonManifest returns the manifest served by the addon.
func AddonManifest() Manifest {
	return Manifest{
		ID:          "org.stremio.local",
		Name:        "Local",
		Description: "Watch from local files",
		Version:     startup.Version,
		Types:       []string{"movie", "series"},
		IDProperty:  "imdb_id",
		Filter: map[string]any{
			"query.imdb_id": map[string]any{"$exists": true},
			"query.type":    map[string]any{"$in": []string{"series", "movie"}},
		},
	}
}

// GetManifest serves the manifest.
func (h *Handlers) GetManifest(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatusCode(w, http.StatusOK, AddonManifest())
}

// streamArgs is the argument object of stream.find.
type streamArgs struct {
	Query *struct {
		IMDbID  string   `json:"imdb_id"`
		Type    string   `json:"type"`
		Season  flexInt  `json:"season"`
		Episode flexInts `json:"episode"`
	} `json:"query"`
}

// flexInt accepts numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*f = flexInt(n)
	return nil
}

// flexInts accepts a single flexInt or a list of them.
type flexInts []int

func (f *flexInts) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []flexInt
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		out := make([]int, 0, len(list))
		for _, n := range list {
			out = append(out, int(n))
		}
		*f = out
		return nil
	}

	var n flexInt
	if err := n.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	if n == 0 {
		*f = nil
		return nil
	}
	*f = flexInts{int(n)}
	return nil
}

// RPC handles JSON-RPC calls posted to the addon endpoint.
func (h *Handlers) RPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		writeRPC(w, catalog.Failure(nil, catalog.CodeParseError, "failed to read request"))
		return
	}
	writeRPC(w, h.call(r.Context(), body))
}

// RPCGet handles the stremioget form: the call is base64 JSON in ?b=.
func (h *Handlers) RPCGet(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBase64(r.URL.Query().Get("b"))
	if err != nil {
		writeRPC(w, catalog.Failure(nil, catalog.CodeParseError, "malformed request encoding"))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeRPC(w, h.call(r.Context(), body))
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty payload")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("invalid base64")
}

// call decodes and dispatches one JSON-RPC request.
func (h *Handlers) call(ctx context.Context, body []byte) *catalog.Response {
	var req catalog.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return catalog.Failure(nil, catalog.CodeParseError, "malformed request")
	}
	if req.Method == "" {
		return catalog.Failure(req.ID, catalog.CodeInvalidRequest, "missing method")
	}

	start := time.Now()
	result, err := h.dispatch(ctx, req.Method, req.Args())
	if errors.Is(err, errMethodNotFound) {
		return catalog.Failure(req.ID, catalog.CodeMethodNotFound, "method not found: "+req.Method)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.QueryRequestsTotal.WithLabelValues(req.Method, status).Inc()
	metrics.QueryDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		code, message := rpcError(err)
		return catalog.Failure(req.ID, code, message)
	}

	res, err := catalog.Result(req.ID, result)
	if err != nil {
		return catalog.Failure(req.ID, catalog.CodeInternalError, "internal error")
	}
	return res
}

var errMethodNotFound = errors.New("method not found")

func (h *Handlers) dispatch(ctx context.Context, method string, args json.RawMessage) (any, error) {
	switch method {
	case "stream.find":
		q, ok, err := parseStreamArgs(args)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []query.StreamDescriptor{}, nil
		}
		return h.query.StreamFind(ctx, q)
	case "meta.find":
		return h.query.MetaFind(ctx, args)
	case "meta":
		return AddonManifest(), nil
	default:
		return nil, errMethodNotFound
	}
}

// parseStreamArgs returns false when args carry no query.
func parseStreamArgs(args json.RawMessage) (query.StreamQuery, bool, error) {
	if len(args) == 0 || string(args) == "null" {
		return query.StreamQuery{}, false, nil
	}
	var sa streamArgs
	if err := json.Unmarshal(args, &sa); err != nil {
		return query.StreamQuery{}, false, apperr.Malformed("stream.find", err)
	}
	if sa.Query == nil {
		return query.StreamQuery{}, false, nil
	}
	return query.StreamQuery{
		IMDbID:   sa.Query.IMDbID,
		Season:   int(sa.Query.Season),
		Episodes: []int(sa.Query.Episode),
	}, true, nil
}

// rpcError maps a classified error to a JSON-RPC code and a client safe
// message.
func rpcError(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindTransient:
		logging.Warn("Upstream failure: %v", err)
		return catalog.CodeServerError, "upstream unavailable"
	case apperr.KindMalformed:
		return catalog.CodeParseError, "malformed request"
	default:
		logging.Error("Query failed: %v", err)
		return catalog.CodeInternalError, "internal error"
	}
}

func writeRPC(w http.ResponseWriter, res *catalog.Response) {
	writeJSONStatusCode(w, http.StatusOK, res)
}

// StreamREST serves GET /stream/{type}/{id}.json, where id is "tt1" or
// "tt1:1:2".
func (h *Handlers) StreamREST(w http.ResponseWriter, r *http.Request) {
	q, err := parseStreamID(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	streams, err := h.query.StreamFind(r.Context(), q)
	metrics.QueryDuration.WithLabelValues("stream.find").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("stream.find", "error").Inc()
		switch apperr.KindOf(err) {
		case apperr.KindTransient:
			writeJSONError(w, "upstream unavailable", http.StatusBadGateway)
		case apperr.KindMalformed:
			writeJSONError(w, "malformed request", http.StatusBadRequest)
		default:
			logging.Error("Stream lookup failed: %v", err)
			writeJSONError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	metrics.QueryRequestsTotal.WithLabelValues("stream.find", "success").Inc()
	writeJSONStatusCode(w, http.StatusOK, map[string]any{"streams": streams})
}

func parseStreamID(id string) (query.StreamQuery, error) {
	parts := strings.Split(id, ":")
	if parts[0] == "" || len(parts) > 3 {
		return query.StreamQuery{}, fmt.Errorf("invalid id %q", id)
	}
	q := query.StreamQuery{IMDbID: parts[0]}
	nums := make([]int, 0, 2)
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return query.StreamQuery{}, fmt.Errorf("invalid id %q", id)
		}
		nums = append(nums, n)
	}
	if len(nums) > 0 {
		q.Season = nums[0]
	}
	if len(nums) > 1 && nums[1] > 0 {
		q.Episodes = []int{nums[1]}
	}
	return q, nil
}
