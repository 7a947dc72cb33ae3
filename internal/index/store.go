package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"localfiles/internal/apperr"
	"localfiles/internal/identity"
	"localfiles/internal/logging"
	"localfiles/internal/torrent"
)

// FileRecord is the forward index entry for one path.
type FileRecord struct {
	Path          string             `json:"path"`
	Name          string             `json:"name,omitempty"`
	Length        int64              `json:"length,omitempty"`
	Identity      *identity.Identity `json:"identity,omitempty"`
	IMDbID        string             `json:"imdb_id,omitempty"`
	Swarm         *torrent.SwarmInfo `json:"swarm,omitempty"`
	Uninteresting bool               `json:"uninteresting"`
}

// Tag returns the release tags of the parsed identity.
func (r *FileRecord) Tag() []string {
	if r.Identity == nil {
		return nil
	}
	return r.Identity.Tag
}

// InvertedEntry is the set of paths under one canonical episode key. Values
// are presence markers.
type InvertedEntry map[string]int

// Paths returns the member paths in map order.
func (e InvertedEntry) Paths() []string {
	out := make([]string, 0, len(e))
	for p := range e {
		out = append(out, p)
	}
	return out
}

// KV is a key-value namespace. Get returns an error matching
// apperr.ErrNotFound for missing keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Scan(ctx context.Context, fn func(key string, value []byte) error) error
}

// ErrInvalidRecord is returned for records that would break the inverted
// index invariant.
var ErrInvalidRecord = errors.New("invalid file record")

// Store is the index over a files and a meta namespace.
type Store struct {
	files KV
	meta  KV
	locks Locker
}

// NewStore returns a Store over the given namespaces.
func NewStore(files, meta KV) *Store {
	return &Store{files: files, meta: meta, locks: NewLocker()}
}

// GetRecord loads the record for path.
func (s *Store) GetRecord(ctx context.Context, path string) (*FileRecord, error) {
	data, err := s.files.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var rec FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperr.Internal("index.get_record", fmt.Errorf("corrupt record %q: %w", path, err))
	}
	return &rec, nil
}

// HasRecord reports whether any record, tombstone included, exists for path.
func (s *Store) HasRecord(ctx context.Context, path string) (bool, error) {
	_, err := s.files.Get(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case apperr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// PutRecord writes rec. A record that is not a tombstone needs a canonical id.
func (s *Store) PutRecord(ctx context.Context, rec *FileRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.files.Put(ctx, rec.Path, data)
}

func validate(rec *FileRecord) error {
	if rec == nil || rec.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRecord)
	}
	if !rec.Uninteresting && rec.IMDbID == "" {
		return fmt.Errorf("%w: %q has no canonical id", ErrInvalidRecord, rec.Path)
	}
	return nil
}

// PutTombstone marks path as processed and uninteresting.
func (s *Store) PutTombstone(ctx context.Context, path string) error {
	return s.PutRecord(ctx, &FileRecord{Path: path, Uninteresting: true})
}

// AddToInverted merges path into the entry under key.
func (s *Store) AddToInverted(ctx context.Context, key, path string) error {
	unlock, err := s.locks.ContextLock(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to lock %q: %w", key, err)
	}
	defer unlock.Unlock()

	entry, err := s.GetInverted(ctx, key)
	switch {
	case err == nil:
	case apperr.IsNotFound(err):
		entry = InvertedEntry{}
	default:
		return err
	}

	if _, ok := entry[path]; ok {
		return nil
	}
	entry[path] = 1

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode inverted entry: %w", err)
	}
	return s.meta.Put(ctx, key, data)
}

// Index adds the record's path under every derived key, then writes the
// record. A failed merge leaves no record behind, so the path is picked up
// again on the next pass.
func (s *Store) Index(ctx context.Context, rec *FileRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	for _, key := range RecordKeys(rec) {
		if err := s.AddToInverted(ctx, key, rec.Path); err != nil {
			return fmt.Errorf("failed to add %q under %q: %w", rec.Path, key, err)
		}
	}
	return s.PutRecord(ctx, rec)
}

// GetInverted loads the entry under key.
func (s *Store) GetInverted(ctx context.Context, key string) (InvertedEntry, error) {
	data, err := s.meta.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entry InvertedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, apperr.Internal("index.get_inverted", fmt.Errorf("corrupt entry %q: %w", key, err))
	}
	if entry == nil {
		entry = InvertedEntry{}
	}
	return entry, nil
}

// ScanInvertedKeys calls fn for every inverted key.
func (s *Store) ScanInvertedKeys(ctx context.Context, fn func(key string) error) error {
	return s.meta.Scan(ctx, func(key string, _ []byte) error {
		return fn(key)
	})
}

// ScanRecords calls fn for every decodable record. Corrupt records are
// logged and skipped.
func (s *Store) ScanRecords(ctx context.Context, fn func(rec *FileRecord) error) error {
	return s.files.Scan(ctx, func(key string, value []byte) error {
		var rec FileRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			logging.Warn("Skipping corrupt record %q: %v", key, err)
			return nil
		}
		return fn(&rec)
	})
}

// DistinctIDs returns every canonical id present in the inverted index with
// the number of keys it appears under.
func (s *Store) DistinctIDs(ctx context.Context) (map[string]int, error) {
	ids := make(map[string]int)
	err := s.ScanInvertedKeys(ctx, func(key string) error {
		if id := CanonicalID(key); id != "" {
			ids[id]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Stats summarizes the index.
type Stats struct {
	Records      int `json:"records"`
	Tombstones   int `json:"tombstones"`
	InvertedKeys int `json:"invertedKeys"`
	DistinctIDs  int `json:"distinctIds"`
}

// Stats walks both namespaces.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.ScanRecords(ctx, func(rec *FileRecord) error {
		st.Records++
		if rec.Uninteresting {
			st.Tombstones++
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to scan records: %w", err)
	}

	ids, err := s.DistinctIDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to scan inverted keys: %w", err)
	}
	for _, n := range ids {
		st.InvertedKeys += n
	}
	st.DistinctIDs = len(ids)
	return st, nil
}
