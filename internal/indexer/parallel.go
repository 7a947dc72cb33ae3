package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"localfiles/internal/filesystem"
	"localfiles/internal/logging"
	"localfiles/internal/mediatypes"
	"localfiles/internal/metrics"
)

// ParallelWalkerConfig configures the fallback walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of workers handing candidates to emit
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns defaults safe for network mounts.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    3,
		ChannelBuffer: 256,
		SkipHidden:    true,
	}
}

// WalkStats summarizes one walk.
type WalkStats struct {
	Visited  int64
	Emitted  int64
	Errors   int64
	TimedOut bool
}

// ParallelWalker walks several roots at once and emits interesting files.
// Every goroutine it starts has returned by the time Walk does.
type ParallelWalker struct {
	config ParallelWalkerConfig
	fs     *filesystem.FS
	filter mediatypes.Filter
	roots  []string

	visited atomic.Int64
	emitted atomic.Int64
	errors  atomic.Int64
}

// NewParallelWalker returns a walker over roots.
func NewParallelWalker(fs *filesystem.FS, filter mediatypes.Filter, roots []string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if config.ChannelBuffer < 0 {
		config.ChannelBuffer = 0
	}
	return &ParallelWalker{
		config: config,
		fs:     fs,
		filter: filter,
		roots:  roots,
	}
}

// Walk visits every root until the trees are exhausted or ctx is done.
// Missing roots are skipped. A walk cut short by ctx reports TimedOut and
// returns nil.
func (pw *ParallelWalker) Walk(ctx context.Context, emit func(ctx context.Context, path string)) (WalkStats, error) {
	start := time.Now()
	jobs := make(chan string, pw.config.ChannelBuffer)

	var workersWG sync.WaitGroup
	for i := 0; i < pw.config.NumWorkers; i++ {
		workersWG.Add(1)
		go func(id int) {
			defer workersWG.Done()
			pw.worker(ctx, id, jobs, emit)
		}(i)
	}

	var walkersWG sync.WaitGroup
	for _, root := range pw.roots {
		if _, err := pw.fs.Stat(root); err != nil {
			logging.Debug("Skipping fallback root %s: %v", root, err)
			continue
		}
		walkersWG.Add(1)
		go func(root string) {
			defer walkersWG.Done()
			if err := pw.walkAndEnqueue(ctx, root, jobs); err != nil && !isCancel(err) {
				pw.errors.Add(1)
				logging.Warn("Walk of %s failed: %v", root, err)
			}
		}(root)
	}

	walkersWG.Wait()
	close(jobs)
	workersWG.Wait()

	stats := pw.Stats()
	stats.TimedOut = ctx.Err() != nil
	if stats.TimedOut {
		metrics.WalkTimeoutsTotal.Inc()
	}
	logging.Debug("Fallback walk finished: %d visited, %d emitted in %v (timed out: %v)",
		stats.Visited, stats.Emitted, time.Since(start), stats.TimedOut)
	return stats, nil
}

// walkAndEnqueue walks one root and sends files to workers.
func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context, root string, jobs chan<- string) error {
	return afero.Walk(pw.fs.Afero(), root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			logging.Debug("Error accessing path %s: %v", path, err)
			return nil
		}

		if pw.config.SkipHidden && path != root && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		pw.visited.Add(1)
		select {
		case jobs <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(ctx context.Context, id int, jobs <-chan string, emit func(context.Context, string)) {
	for path := range jobs {
		if ctx.Err() != nil {
			// drain so walkers blocked on send can observe ctx and exit
			continue
		}
		if !pw.filter.IsInteresting(path) {
			continue
		}
		pw.emitted.Add(1)
		metrics.DiscoveryCandidatesTotal.WithLabelValues("walk").Inc()
		emit(ctx, path)
	}
	logging.Debug("Walk worker %d finished", id)
}

// Stats returns the counters accumulated so far.
func (pw *ParallelWalker) Stats() WalkStats {
	return WalkStats{
		Visited: pw.visited.Load(),
		Emitted: pw.emitted.Load(),
		Errors:  pw.errors.Load(),
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
