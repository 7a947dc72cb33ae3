package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"localfiles/internal/logging"
	"localfiles/internal/metrics"
	"localfiles/internal/workers"
)

// DefaultQueueSize is the capacity of the submission queue.
const DefaultQueueSize = 1024

// flushPollInterval is how often Flush checks for an idle pipeline.
const flushPollInterval = 10 * time.Millisecond

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Queued    int64             `json:"queued"`
	InFlight  int64             `json:"inFlight"`
	Processed int64             `json:"processed"`
	Workers   int               `json:"workers"`
	Outcomes  map[Outcome]int64 `json:"outcomes"`
}

// Gate holds ingest workers back under resource pressure. memory.Monitor
// implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Pipeline feeds submitted paths through filter, expand and ingest stages.
type Pipeline struct {
	ingester *Ingester
	workers  int
	queue    chan string
	gate     Gate

	// pending counts submitted paths and expanded seeds not yet finished
	pending   atomic.Int64
	queued    atomic.Int64
	inFlight  atomic.Int64
	processed atomic.Int64

	mu       sync.Mutex
	outcomes map[Outcome]int64
}

// NewPipeline returns a Pipeline with n ingest workers. n <= 0 selects
// workers.Resolve's default.
func NewPipeline(ing *Ingester, n, queueSize int) *Pipeline {
	if n <= 0 {
		n = workers.Resolve(0, 32)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pipeline{
		ingester: ing,
		workers:  n,
		queue:    make(chan string, queueSize),
		outcomes: make(map[Outcome]int64),
	}
}

// SetGate installs g in front of every ingest. Call before Run.
func (p *Pipeline) SetGate(g Gate) {
	p.gate = g
}

// Submit enqueues path. It blocks while the queue is full and returns
// ctx.Err() if ctx ends first.
func (p *Pipeline) Submit(ctx context.Context, path string) error {
	p.pending.Add(1)
	select {
	case p.queue <- path:
		p.queued.Add(1)
		metrics.PipelineQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Run starts the stages and blocks until ctx is done and every stage has
// exited.
func (p *Pipeline) Run(ctx context.Context) error {
	logging.Info("Ingest pipeline starting with %d workers", p.workers)

	accepted := make(chan string, p.workers)
	candidates := make(chan Candidate, p.workers*2)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(accepted)
		p.filterStage(ctx, accepted)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(candidates)
		p.expandStage(ctx, accepted, candidates)
	}()

	var ingestWG sync.WaitGroup
	for range p.workers {
		ingestWG.Add(1)
		go func() {
			defer ingestWG.Done()
			p.ingestStage(ctx, candidates)
		}()
	}

	wg.Wait()
	ingestWG.Wait()
	logging.Info("Ingest pipeline stopped")
	return ctx.Err()
}

func (p *Pipeline) filterStage(ctx context.Context, out chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-p.queue:
			p.queued.Add(-1)
			metrics.PipelineQueueDepth.Dec()

			if !p.ingester.Accept(PathCandidate(path)) {
				p.done(record(OutcomeRejected))
				continue
			}
			select {
			case out <- path:
			case <-ctx.Done():
				p.pending.Add(-1)
				return
			}
		}
	}
}

func (p *Pipeline) expandStage(ctx context.Context, in <-chan string, out chan<- Candidate) {
	for path := range in {
		if !isContainer(path) {
			if !send(ctx, out, PathCandidate(path)) {
				p.pending.Add(-1)
			}
			continue
		}

		seeds, err := p.ingester.Expand(path)
		if err != nil {
			p.done(record(OutcomeFailed))
			continue
		}
		for seed := range seeds {
			p.pending.Add(1)
			if !send(ctx, out, seed) {
				p.pending.Add(-1)
				break
			}
		}
		p.done(record(OutcomeExpanded))
	}
}

func (p *Pipeline) ingestStage(ctx context.Context, in <-chan Candidate) {
	for c := range in {
		if ctx.Err() != nil || p.wait(ctx) != nil {
			p.pending.Add(-1)
			continue
		}
		p.inFlight.Add(1)
		var outcome Outcome
		if p.ingester.Accept(c) {
			outcome = p.ingester.Index(ctx, c)
		} else {
			outcome = record(OutcomeRejected)
		}
		p.inFlight.Add(-1)
		p.done(outcome)
	}
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.gate == nil {
		return nil
	}
	return p.gate.Wait(ctx)
}

func (p *Pipeline) done(o Outcome) {
	p.processed.Add(1)
	p.pending.Add(-1)
	p.mu.Lock()
	p.outcomes[o]++
	p.mu.Unlock()
}

// Flush blocks until every submitted path, including expanded seeds, has
// been processed, or ctx ends.
func (p *Pipeline) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for p.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	outcomes := make(map[Outcome]int64, len(p.outcomes))
	for k, v := range p.outcomes {
		outcomes[k] = v
	}
	p.mu.Unlock()

	return Stats{
		Queued:    p.queued.Load(),
		InFlight:  p.inFlight.Load(),
		Processed: p.processed.Load(),
		Workers:   p.workers,
		Outcomes:  outcomes,
	}
}

func isContainer(path string) bool {
	return PathCandidate(path).isTorrent()
}

func send(ctx context.Context, out chan<- Candidate, c Candidate) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
