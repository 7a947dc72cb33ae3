package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

// Config controls the Monitor's thresholds.
type Config struct {
	// LimitBytes is the reference limit. Zero uses GOMEMLIMIT; no limit
	// disables the monitor.
	LimitBytes int64
	// ResumeMark is the usage fraction below which a paused monitor resumes.
	ResumeMark float64
	// PauseMark is the usage fraction at which Wait starts blocking.
	PauseMark     float64
	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResumeMark:    0.7,
		PauseMark:     0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Monitor samples heap usage and pauses Wait callers under pressure.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu       sync.Mutex
	current  uint64
	paused   bool
	resumeCh chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMonitor returns a stopped Monitor.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}
	return &Monitor{
		config:   config,
		limit:    limit,
		sample:   heapAlloc,
		resumeCh: make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins sampling. It is a no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any blocked Wait callers.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) check() {
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.config.PauseMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing ingestion", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case usage < m.config.ResumeMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming ingestion", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumeCh)
		m.resumeCh = make(chan struct{})
	}
}

// Wait blocks while the monitor is paused. It returns ctx.Err() if ctx
// ends first and nil once ingestion may proceed or the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	ch := m.resumeCh
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether Wait is currently blocking.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled heap usage as a fraction of the limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.current) / float64(m.limit)
}
