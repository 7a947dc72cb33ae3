package handlers

import (
	"context"
	"encoding/json"
	"time"

	"localfiles/internal/index"
	"localfiles/internal/indexer"
	"localfiles/internal/ingest"
	"localfiles/internal/query"
)

// Querier answers addon lookups. query.Resolver implements it.
type Querier interface {
	StreamFind(ctx context.Context, q query.StreamQuery) ([]query.StreamDescriptor, error)
	MetaFind(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
	TopIDs(ctx context.Context, n int) ([]query.IDCount, error)
}

// IndexStats summarizes the index. index.Store implements it.
type IndexStats interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Scanner is the scan scheduler as seen by the API.
type Scanner interface {
	Status() indexer.Status
	TriggerScan() bool
}

// PipelineStats reports ingestion progress. ingest.Pipeline implements it.
type PipelineStats interface {
	Stats() ingest.Stats
}

type Handlers struct {
	query     Querier
	index     IndexStats
	scanner   Scanner
	pipeline  PipelineStats
	startTime time.Time
}

func New(q Querier, stats IndexStats, scanner Scanner, pipeline PipelineStats) *Handlers {
	return &Handlers{
		query:     q,
		index:     stats,
		scanner:   scanner,
		pipeline:  pipeline,
		startTime: time.Now(),
	}
}
