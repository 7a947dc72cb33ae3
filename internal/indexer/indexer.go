package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"localfiles/internal/discovery"
	"localfiles/internal/filesystem"
	"localfiles/internal/logging"
	"localfiles/internal/mediatypes"
	"localfiles/internal/metrics"
)

const (
	// DefaultInterval is the delay between the end of a pass and the start
	// of the next one.
	DefaultInterval = time.Minute

	// DefaultStartupDelay postpones the first pass after Start.
	DefaultStartupDelay = 5 * time.Second

	// DefaultFallbackTimeout bounds each fallback walk.
	DefaultFallbackTimeout = 3 * time.Second

	// metadataTimeout bounds reads and writes of the persisted pass time.
	metadataTimeout = 5 * time.Second
)

// Scheduler states.
const (
	StateCold = "cold"
	StateWarm = "warm"
)

// Submitter accepts candidate paths. ingest.Pipeline implements it.
type Submitter interface {
	Submit(ctx context.Context, path string) error
}

// PassStore persists the time of the last completed pass.
type PassStore interface {
	GetLastScanPass(ctx context.Context) (time.Time, error)
	SetLastScanPass(ctx context.Context, t time.Time) error
}

// Config holds scheduler timings and fallback roots.
type Config struct {
	Interval        time.Duration
	StartupDelay    time.Duration
	FallbackTimeout time.Duration
	FallbackRoots   []string
	Walker          ParallelWalkerConfig
}

// DefaultConfig returns the default timings with no fallback roots.
func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		StartupDelay:    DefaultStartupDelay,
		FallbackTimeout: DefaultFallbackTimeout,
		Walker:          DefaultParallelWalkerConfig(),
	}
}

// Scheduler drives discovery passes. A pass is cold until the native
// discoverer has completed once, and warm afterwards. Cold passes run the
// native discoverer unrestricted together with a fallback walk; warm passes
// restrict native discovery to recent changes and skip the walk once any
// source has produced a candidate.
type Scheduler struct {
	native    discovery.Discoverer
	submitter Submitter
	passes    PassStore
	fs        *filesystem.FS
	filter    mediatypes.Filter
	config    Config

	stopOnce sync.Once
	stopChan chan struct{}
	trigger  chan struct{}
	done     chan struct{}
	started  atomic.Bool

	// hasResults is set from emit callbacks on any goroutine
	hasResults atomic.Bool

	mu              sync.Mutex
	running         bool
	firstImportDone bool
	passCount       int
	lastPassStart   time.Time
	lastPassAt      time.Time
	lastDuration    time.Duration
	lastError       string
	startTime       time.Time
}

// Status reports the scheduler state.
type Status struct {
	State            string    `json:"state"`
	Running          bool      `json:"running"`
	Passes           int       `json:"passes"`
	HasResults       bool      `json:"hasResults"`
	NativeAvailable  bool      `json:"nativeAvailable"`
	LastPassAt       time.Time `json:"lastPassAt,omitempty"`
	LastPassDuration string    `json:"lastPassDuration,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
	Uptime           string    `json:"uptime"`
}

// NewScheduler returns a stopped Scheduler. native and passes may be nil.
func NewScheduler(native discovery.Discoverer, submitter Submitter, passes PassStore, fs *filesystem.FS, filter mediatypes.Filter, config Config) *Scheduler {
	if native == nil {
		native = discovery.Unavailable{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.StartupDelay < 0 {
		config.StartupDelay = 0
	}
	if config.FallbackTimeout <= 0 {
		config.FallbackTimeout = DefaultFallbackTimeout
	}
	return &Scheduler{
		native:    native,
		submitter: submitter,
		passes:    passes,
		fs:        fs,
		filter:    filter,
		config:    config,
		stopChan:  make(chan struct{}),
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
}

// Start loads the persisted pass time and begins scheduling passes.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.loadLastPass()
	logging.Info("Scan scheduler starting (interval %v, native discovery available: %v)",
		s.config.Interval, s.native.Available())
	go s.loop()
}

// Stop ends the schedule, cancels a running pass and waits for it.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

// TriggerScan requests a pass now. It returns false when a pass is already
// running or requested.
func (s *Scheduler) TriggerScan() bool {
	if s.IsRunning() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// IsRunning reports whether a pass is in progress.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:           s.state(),
		Running:         s.running,
		Passes:          s.passCount,
		HasResults:      s.hasResults.Load(),
		NativeAvailable: s.native.Available(),
		LastPassAt:      s.lastPassAt,
		LastError:       s.lastError,
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.lastDuration > 0 {
		st.LastPassDuration = s.lastDuration.String()
	}
	return st
}

// Submit hands a path from source to the submitter and records that a
// candidate was produced. The fallback walker filters before calling Submit,
// so a walk that only sees non-candidates does not set hasResults. Native
// discovery already queries by extension, so every path it emits counts.
func (s *Scheduler) Submit(ctx context.Context, source, path string) {
	s.hasResults.Store(true)
	if err := s.submitter.Submit(ctx, path); err != nil && !isCancel(err) {
		logging.Warn("Failed to submit %s candidate %s: %v", source, path, err)
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	timer := time.NewTimer(s.config.StartupDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			logging.Info("Scan scheduler stopped")
			return
		case <-timer.C:
		case <-s.trigger:
			logging.Debug("Scan pass triggered manually")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := s.RunPass(ctx); err != nil && !isCancel(err) {
			logging.Error("Scan pass failed: %v", err)
		}
		timer.Reset(s.config.Interval)
	}
}

// ErrPassRunning is returned by RunPass while another pass is in progress.
var ErrPassRunning = errors.New("scan pass already running")

// RunPass runs one pass synchronously.
func (s *Scheduler) RunPass(ctx context.Context) error {
	if !s.tryStartPass() {
		return ErrPassRunning
	}

	start := time.Now()
	s.mu.Lock()
	warm := s.firstImportDone
	query := discovery.Query{}
	if warm {
		query.Since = s.lastPassStart
	}
	walk := !(warm && s.hasResults.Load())
	s.mu.Unlock()

	state := StateCold
	if warm {
		state = StateWarm
	}
	metrics.ScanPassesTotal.WithLabelValues(state).Inc()
	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	logging.Debug("Starting %s scan pass (fallback walk: %v)", state, walk)

	var wg sync.WaitGroup
	var nativeErr error
	nativeDone := false

	if s.native.Available() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nativeErr = s.native.Discover(ctx, query, func(path string) {
				s.Submit(ctx, "native", path)
			})
			nativeDone = ctx.Err() == nil
			if nativeErr != nil && !isCancel(nativeErr) {
				metrics.DiscoveryErrors.WithLabelValues("native").Inc()
				logging.Warn("Native discovery failed: %v", nativeErr)
			}
		}()
	}

	if walk && len(s.config.FallbackRoots) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.fallbackWalk(ctx)
		}()
	}

	wg.Wait()
	s.finishPass(start, nativeDone, nativeErr)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) fallbackWalk(ctx context.Context) {
	walkCtx, cancel := context.WithTimeout(ctx, s.config.FallbackTimeout)
	defer cancel()

	walker := NewParallelWalker(s.fs, s.filter, s.config.FallbackRoots, s.config.Walker)
	if _, err := walker.Walk(walkCtx, func(ctx context.Context, path string) {
		s.Submit(ctx, "walk", path)
	}); err != nil {
		metrics.DiscoveryErrors.WithLabelValues("walk").Inc()
		logging.Warn("Fallback walk failed: %v", err)
	}
}

func (s *Scheduler) tryStartPass() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) finishPass(start time.Time, nativeDone bool, nativeErr error) {
	duration := time.Since(start)

	s.mu.Lock()
	s.running = false
	s.passCount++
	s.lastPassStart = start
	s.lastPassAt = start
	s.lastDuration = duration
	s.lastError = ""
	if nativeErr != nil {
		s.lastError = nativeErr.Error()
	}
	if nativeDone && !s.firstImportDone {
		s.firstImportDone = true
		logging.Info("First native discovery pass complete, switching to incremental scans")
	}
	warm := s.firstImportDone
	s.mu.Unlock()

	if warm {
		metrics.ScanWarm.Set(1)
	} else {
		metrics.ScanWarm.Set(0)
	}
	metrics.ScanLastPassTimestamp.Set(float64(start.Unix()))
	metrics.ScanLastPassDuration.Set(duration.Seconds())

	s.saveLastPass(start)
}

func (s *Scheduler) loadLastPass() {
	if s.passes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	last, err := s.passes.GetLastScanPass(ctx)
	if err != nil {
		logging.Warn("Failed to load last scan pass: %v", err)
		return
	}
	s.mu.Lock()
	if s.lastPassAt.IsZero() {
		s.lastPassAt = last
	}
	s.mu.Unlock()
}

func (s *Scheduler) saveLastPass(t time.Time) {
	if s.passes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	if err := s.passes.SetLastScanPass(ctx, t); err != nil {
		logging.Warn("Failed to persist last scan pass: %v", err)
	}
}

// state must be called with mu held.
func (s *Scheduler) state() string {
	if s.firstImportDone {
		return StateWarm
	}
	return StateCold
}
