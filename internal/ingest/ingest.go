package ingest

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"localfiles/internal/filesystem"
	"localfiles/internal/identity"
	"localfiles/internal/index"
	"localfiles/internal/logging"
	"localfiles/internal/mediatypes"
	"localfiles/internal/metrics"
	"localfiles/internal/resolver"
	"localfiles/internal/torrent"
)

// Outcome is how one ingestion ended.
type Outcome string

// Ingestion outcomes.
const (
	OutcomeRejected       Outcome = "rejected"
	OutcomeExpanded       Outcome = "expanded"
	OutcomeAlreadyIndexed Outcome = "already_indexed"
	OutcomeVanished       Outcome = "vanished"
	OutcomeTombstoned     Outcome = "tombstoned"
	OutcomeIndexed        Outcome = "indexed"
	OutcomeFailed         Outcome = "failed"
)

// Candidate is a plain path or a virtual file from a torrent container.
type Candidate struct {
	Path   string
	Name   string
	Length int64
	Swarm  *torrent.SwarmInfo
}

// PathCandidate wraps a discovered path.
func PathCandidate(path string) Candidate {
	return Candidate{Path: path}
}

// SeedCandidate wraps a torrent seed.
func SeedCandidate(s torrent.Seed) Candidate {
	swarm := s.Swarm
	return Candidate{Path: s.Path, Name: s.Name, Length: s.Length, Swarm: &swarm}
}

// Virtual reports whether the candidate lives inside a torrent.
func (c Candidate) Virtual() bool {
	return c.Swarm != nil
}

// Ingester runs the ingestion steps against one index.
type Ingester struct {
	store    *index.Store
	parser   identity.Parser
	resolver resolver.Resolver
	expander *torrent.Expander
	fs       *filesystem.FS
	filter   mediatypes.Filter
	paths    index.Locker
	log      *logrus.Entry
}

// New returns an Ingester. A nil parser selects identity.NewParser.
func New(store *index.Store, parser identity.Parser, res resolver.Resolver, expander *torrent.Expander, fs *filesystem.FS, filter mediatypes.Filter) *Ingester {
	if parser == nil {
		parser = identity.NewParser()
	}
	return &Ingester{
		store:    store,
		parser:   parser,
		resolver: res,
		expander: expander,
		fs:       fs,
		filter:   filter,
		paths:    index.NewLocker(),
		log:      logging.WithFields(map[string]interface{}{"component": "ingest"}),
	}
}

// Ingest runs every step for c. Seeds of a torrent container are ingested
// in turn and the container itself is never written.
func (in *Ingester) Ingest(ctx context.Context, c Candidate) Outcome {
	if !in.Accept(c) {
		return record(OutcomeRejected)
	}

	if c.isTorrent() {
		seeds, err := in.Expand(c.Path)
		if err != nil {
			return record(OutcomeFailed)
		}
		for seed := range seeds {
			in.Ingest(ctx, seed)
		}
		return record(OutcomeExpanded)
	}

	return in.Index(ctx, c)
}

// Accept applies the candidate filter. Torrent files inside torrents are
// rejected.
func (in *Ingester) Accept(c Candidate) bool {
	if !in.filter.IsInteresting(c.Path) {
		return false
	}
	return !(c.Virtual() && mediatypes.IsTorrent(c.Path))
}

// Expand reads and decodes the container at path. On error nothing is
// produced.
func (in *Ingester) Expand(path string) (iter.Seq[Candidate], error) {
	seeds, err := in.expander.ExpandFile(path)
	if err != nil {
		in.log.WithField("path", path).Warnf("Dropping torrent: %v", err)
		return nil, err
	}
	return func(yield func(Candidate) bool) {
		for s := range seeds {
			if !yield(SeedCandidate(s)) {
				return
			}
		}
	}, nil
}

// Index runs the dedupe, parse, resolve and write steps for a non-container
// candidate.
func (in *Ingester) Index(ctx context.Context, c Candidate) Outcome {
	start := time.Now()
	metrics.IngestInFlight.Inc()
	defer func() {
		metrics.IngestInFlight.Dec()
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	unlock, err := in.paths.ContextLock(ctx, c.Path)
	if err != nil {
		return record(OutcomeFailed)
	}
	defer unlock.Unlock()

	log := in.log.WithField("path", c.Path)

	exists, err := in.store.HasRecord(ctx, c.Path)
	if err != nil {
		log.Errorf("Index lookup failed: %v", err)
		return record(OutcomeFailed)
	}
	if exists {
		return record(OutcomeAlreadyIndexed)
	}

	name, length := c.Name, c.Length
	if name == "" {
		name = filepath.Base(c.Path)
	}
	if !c.Virtual() {
		info, err := in.fs.Stat(c.Path)
		if err != nil {
			log.Debugf("Stat failed, skipping: %v", err)
			return record(OutcomeVanished)
		}
		length = info.Size()
	}

	id := in.parser.Parse(c.Path, name, length)
	if !id.Catalogable() {
		log.Debugf("Not a movie or episode (%s)", id.Type)
		return in.tombstone(ctx, log, c.Path)
	}

	canonicalID, err := in.resolver.Resolve(ctx, resolver.Request{
		Name:   id.Name,
		Year:   id.Year,
		Type:   id.Type,
		Strict: true,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return record(OutcomeFailed)
		}
		log.Warnf("Resolution failed for %q: %v", id.Name, err)
	}
	if canonicalID == "" {
		log.Debugf("No canonical id for %q (%d)", id.Name, id.Year)
		return in.tombstone(ctx, log, c.Path)
	}

	rec := &index.FileRecord{
		Path:     c.Path,
		Name:     name,
		Length:   length,
		Identity: &id,
		IMDbID:   canonicalID,
		Swarm:    c.Swarm,
	}
	if err := in.store.Index(ctx, rec); err != nil {
		log.Errorf("Failed to write record: %v", err)
		return record(OutcomeFailed)
	}

	log.Infof("Indexed %s as %s", name, canonicalID)
	return record(OutcomeIndexed)
}

func (in *Ingester) tombstone(ctx context.Context, log *logrus.Entry, path string) Outcome {
	if err := in.store.PutTombstone(ctx, path); err != nil {
		log.Errorf("Failed to write tombstone: %v", err)
		return record(OutcomeFailed)
	}
	return record(OutcomeTombstoned)
}

func record(o Outcome) Outcome {
	metrics.IngestOutcomesTotal.WithLabelValues(string(o)).Inc()
	return o
}

func (c Candidate) isTorrent() bool {
	return !c.Virtual() && mediatypes.IsTorrent(c.Path)
}
