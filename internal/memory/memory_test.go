package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(alloc *uint64) *Monitor {
	m := NewMonitor(Config{LimitBytes: 1000, ResumeMark: 0.5, PauseMark: 0.8, CheckInterval: time.Hour})
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestMonitorPausesAndResumes(t *testing.T) {
	alloc := uint64(100)
	m := newTestMonitor(&alloc)

	m.check()
	assert.False(t, m.Paused())
	assert.InDelta(t, 0.1, m.Usage(), 0.001)
	require.NoError(t, m.Wait(context.Background()))

	alloc = 900
	m.check()
	assert.True(t, m.Paused())

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	// between the marks stays paused
	alloc = 600
	m.check()
	assert.True(t, m.Paused())

	alloc = 100
	m.check()
	assert.False(t, m.Paused())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(&alloc)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(&alloc)
	m.check()

	m.Stop()
	m.Stop()
	assert.NoError(t, m.Wait(context.Background()))
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantSrc   string
		wantLimit int64
		wantSet   bool
	}{
		{"nothing set", nil, "none", 0, false},
		{"container limit", map[string]string{"MEMORY_LIMIT": "1000"}, "MEMORY_LIMIT", 900, true},
		{"custom ratio", map[string]string{"MEMORY_LIMIT": "1000", "MEMORY_RATIO": "0.5"}, "MEMORY_LIMIT", 500, true},
		{"ratio out of range", map[string]string{"MEMORY_LIMIT": "1000", "MEMORY_RATIO": "1.5"}, "MEMORY_LIMIT", 900, true},
		{"bad limit", map[string]string{"MEMORY_LIMIT": "lots"}, "none", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var applied int64
			set := func(v int64) int64 {
				if v >= 0 {
					applied = v
				}
				return applied
			}
			res := configure(func(k string) string { return tt.env[k] }, set)

			assert.Equal(t, tt.wantSrc, res.Source)
			assert.Equal(t, tt.wantSet, res.Configured)
			assert.Equal(t, tt.wantLimit, res.GoMemLimit)
			assert.Equal(t, tt.wantLimit, applied)
		})
	}
}

func TestConfigureExplicitGoMemLimit(t *testing.T) {
	res := configure(func(k string) string {
		if k == "GOMEMLIMIT" {
			return "512MiB"
		}
		return "1000"
	}, func(int64) int64 { return 512 << 20 })

	assert.Equal(t, "GOMEMLIMIT", res.Source)
	assert.True(t, res.Configured)
	assert.Equal(t, int64(512<<20), res.GoMemLimit)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
}
