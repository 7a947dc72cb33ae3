package query

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"localfiles/internal/apperr"
	"localfiles/internal/index"
	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

// Descriptor names shown by the client.
const (
	TorrentSourceName = "Local Torrent"
	FileSourceName    = "Local File"
)

// StreamQuery selects one canonical key. Episodes may hold several
// episodes; only the first derived key is looked up.
type StreamQuery struct {
	IMDbID   string `json:"imdb_id"`
	Season   int    `json:"season,omitempty"`
	Episodes []int  `json:"episode,omitempty"`
}

// Keys returns the index keys the query derives.
func (q StreamQuery) Keys() []string {
	return index.Keys(q.IMDbID, q.Season, q.Episodes)
}

// StreamDescriptor is a playable location. Torrent descriptors carry
// InfoHash, MapIdx and Sources; file descriptors carry URL.
type StreamDescriptor struct {
	InfoHash string   `json:"infoHash,omitempty"`
	MapIdx   *int     `json:"mapIdx,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	URL      string   `json:"url,omitempty"`
	Title    string   `json:"title"`
	Name     string   `json:"name"`
	Tag      []string `json:"tag,omitempty"`
}

// Catalog is the external metadata provider meta.find is forwarded to.
type Catalog interface {
	MetaFind(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// IDCount is a canonical id with the number of index keys it appears under.
type IDCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Resolver serves queries from a Store.
type Resolver struct {
	store   *index.Store
	catalog Catalog
}

// New returns a Resolver. catalog may be nil, in which case MetaFind fails
// with a transient error.
func New(store *index.Store, catalog Catalog) *Resolver {
	return &Resolver{store: store, catalog: catalog}
}

// StreamFind returns the descriptors under the first key derived from q.
// An unknown key yields an empty, non-nil list.
func (r *Resolver) StreamFind(ctx context.Context, q StreamQuery) ([]StreamDescriptor, error) {
	streams := []StreamDescriptor{}

	keys := q.Keys()
	if len(keys) == 0 {
		return streams, nil
	}

	entry, err := r.store.GetInverted(ctx, keys[0])
	if err != nil {
		if apperr.IsNotFound(err) {
			metrics.StreamsReturned.Observe(0)
			return streams, nil
		}
		return nil, internal("query.stream_find", err)
	}

	paths := entry.Paths()
	slices.Sort(paths)
	for _, path := range paths {
		rec, err := r.store.GetRecord(ctx, path)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return nil, internal("query.stream_find", err)
		}
		if rec.Uninteresting {
			continue
		}
		streams = append(streams, Describe(rec))
	}

	metrics.StreamsReturned.Observe(float64(len(streams)))
	return streams, nil
}

// Describe builds the descriptor for a record.
func Describe(rec *index.FileRecord) StreamDescriptor {
	title := rec.Name
	if title == "" {
		title = rec.Path
	}

	if rec.Swarm != nil {
		idx := rec.Swarm.FileIndex
		sources := make([]string, 0, len(rec.Swarm.Trackers)+1)
		sources = append(sources, "dht:"+rec.Swarm.InfoHash)
		for _, t := range rec.Swarm.Trackers {
			sources = append(sources, "tracker:"+t)
		}
		return StreamDescriptor{
			InfoHash: rec.Swarm.InfoHash,
			MapIdx:   &idx,
			Sources:  sources,
			Title:    title,
			Name:     TorrentSourceName,
			Tag:      rec.Tag(),
		}
	}

	return StreamDescriptor{
		URL:   "file://" + rec.Path,
		Title: title,
		Name:  FileSourceName,
		Tag:   rec.Tag(),
	}
}

// MetaFind restricts args.query.imdb_id to the locally indexed ids, unless
// the caller already set it, and forwards the request to the catalog.
func (r *Resolver) MetaFind(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	ids, err := r.store.DistinctIDs(ctx)
	if err != nil {
		return nil, internal("query.meta_find", err)
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	slices.Sort(sorted)

	forwarded, err := withIDs(args, sorted)
	if err != nil {
		return nil, err
	}

	if r.catalog == nil {
		return nil, apperr.Transient("query.meta_find", errors.New("no catalog configured"))
	}
	res, err := r.catalog.MetaFind(ctx, forwarded)
	if err != nil {
		if errors.Is(err, apperr.ErrTransient) {
			return nil, err
		}
		return nil, apperr.Transient("query.meta_find", err)
	}
	return res, nil
}

// TopIDs returns up to n ids ordered by key count, most first. n <= 0
// returns all of them.
func (r *Resolver) TopIDs(ctx context.Context, n int) ([]IDCount, error) {
	ids, err := r.store.DistinctIDs(ctx)
	if err != nil {
		return nil, internal("query.top_ids", err)
	}

	out := make([]IDCount, 0, len(ids))
	for id, count := range ids {
		out = append(out, IDCount{ID: id, Count: count})
	}
	slices.SortFunc(out, func(a, b IDCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// withIDs sets query.imdb_id to {"$in": ids} when absent. Other fields of
// args are passed through untouched.
func withIDs(args json.RawMessage, ids []string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &fields); err != nil {
			return nil, apperr.Malformed("query.meta_find", fmt.Errorf("args: %w", err))
		}
	}

	query := map[string]json.RawMessage{}
	if raw, ok := fields["query"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &query); err != nil {
			return nil, apperr.Malformed("query.meta_find", fmt.Errorf("args.query: %w", err))
		}
	}

	if _, ok := query["imdb_id"]; !ok {
		in, err := json.Marshal(map[string][]string{"$in": ids})
		if err != nil {
			return nil, apperr.Internal("query.meta_find", err)
		}
		query["imdb_id"] = in
	}

	raw, err := json.Marshal(query)
	if err != nil {
		return nil, apperr.Internal("query.meta_find", err)
	}
	fields["query"] = raw

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, apperr.Internal("query.meta_find", err)
	}
	return out, nil
}

func internal(op string, err error) error {
	if errors.Is(err, apperr.ErrInternal) {
		return err
	}
	logging.Error("%s failed: %v", op, err)
	return apperr.Internal(op, err)
}
