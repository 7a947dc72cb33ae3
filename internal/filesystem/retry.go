package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"localfiles/internal/logging"
	"localfiles/internal/metrics"

	"github.com/spf13/afero"
)

// MaxReadSize bounds ReadFile. Torrent containers are small; anything larger
// is not a container worth decoding.
const MaxReadSize = 32 << 20

// ErrTooLarge is returned by ReadFile for files above MaxReadSize.
var ErrTooLarge = errors.New("file exceeds read limit")

// VolumeResolver maps file paths to known volume names for metric labeling.
// It uses longest-prefix matching on absolute paths.
type VolumeResolver struct {
	// mounts is sorted by path length descending for longest-prefix matching
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing separator
	name string
}

// NewVolumeResolver creates a resolver from a map of volume name → path.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, string(filepath.Separator)) {
			absPath += string(filepath.Separator)
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a given file path.
// Returns "unknown" if the path doesn't match any configured volume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+string(filepath.Separator), mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// FS is the filesystem used by ingestion and discovery. Production code uses
// the OS filesystem; tests pass an afero.MemMapFs.
type FS struct {
	fs    afero.Fs
	retry RetryConfig
}

// New wraps fs with retry behaviour.
func New(fs afero.Fs, retry RetryConfig) *FS {
	return &FS{fs: fs, retry: retry}
}

// NewOS returns an FS over the real filesystem with default retries.
func NewOS() *FS {
	return New(afero.NewOsFs(), DefaultRetryConfig())
}

// Afero exposes the underlying filesystem.
func (f *FS) Afero() afero.Fs {
	return f.fs
}

// Stat performs Stat with retry on stale file handles.
func (f *FS) Stat(path string) (os.FileInfo, error) {
	var info os.FileInfo
	err := f.withRetry("stat", path, func() error {
		var err error
		info, err = f.fs.Stat(path)
		return err
	})
	return info, err
}

// ReadDir lists a directory with retry on stale file handles.
func (f *FS) ReadDir(path string) ([]os.FileInfo, error) {
	var entries []os.FileInfo
	err := f.withRetry("readdir", path, func() error {
		var err error
		entries, err = afero.ReadDir(f.fs, path)
		return err
	})
	return entries, err
}

// ReadFile reads a whole file of at most MaxReadSize bytes.
func (f *FS) ReadFile(path string) ([]byte, error) {
	var file afero.File
	err := f.withRetry("open", path, func() error {
		var err error
		file, err = f.fs.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxReadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > MaxReadSize {
		return nil, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}
	return data, nil
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn, retrying with exponential backoff while it fails with ESTALE.
func (f *FS) withRetry(op, path string, fn func() error) error {
	start := time.Now()
	volume := f.retry.VolumeResolver.Resolve(path)
	backoff := f.retry.InitialBackoff
	var lastErr error

	defer func() {
		metrics.FilesystemRetryDuration.WithLabelValues(op, volume).Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
			}
			return nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !isNFSStaleError(err) {
			return err
		}

		metrics.FilesystemStaleErrors.WithLabelValues(op, volume).Inc()

		if attempt < f.retry.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, f.retry.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > f.retry.MaxBackoff {
				backoff = f.retry.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, f.retry.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
	return lastErr
}
