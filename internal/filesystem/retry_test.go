package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 500*time.Millisecond, config.MaxBackoff)
	assert.Nil(t, config.VolumeResolver)
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"downloads": "/home/u/Downloads",
		"videos":    "/home/u/Videos",
		"home":      "/home/u",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"downloads root", "/home/u/Downloads", "downloads"},
		{"downloads file", "/home/u/Downloads/a/movie.mkv", "downloads"},
		{"videos file", "/home/u/Videos/show.mkv", "videos"},
		{"longest prefix wins", "/home/u/Desktop/x.mkv", "home"},
		{"sibling prefix is not a match", "/home/u2/x.mkv", "unknown"},
		{"unknown path", "/etc/hosts", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	assert.Equal(t, "unknown", vr.Resolve("/anything"))
}

func TestFS_StatMemFs(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/videos/movie.mkv", []byte("1234"), 0o644))

	fs := New(mem, fastRetry())

	info, err := fs.Stat("/videos/movie.mkv")
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size())

	_, err = fs.Stat("/videos/missing.mkv")
	assert.True(t, os.IsNotExist(err), "expected not-exist, got %v", err)
}

func TestFS_ReadFile(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/dl/pack.torrent", []byte("d4:infod4:name1:aee"), 0o644))

	fs := New(mem, fastRetry())

	data, err := fs.ReadFile("/dl/pack.torrent")
	require.NoError(t, err)
	assert.Equal(t, "d4:infod4:name1:aee", string(data))

	_, err = fs.ReadFile("/dl/missing.torrent")
	assert.Error(t, err)
}

func TestFS_ReadDir(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/v/a.mkv", nil, 0o644))
	require.NoError(t, afero.WriteFile(mem, "/v/b.mkv", nil, 0o644))
	require.NoError(t, mem.MkdirAll("/v/sub", 0o755))

	entries, err := New(mem, fastRetry()).ReadDir("/v")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestFS_OSStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))

	info, err := NewOS().Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size())
}

func TestWithRetry_RetriesStaleHandles(t *testing.T) {
	fs := New(afero.NewMemMapFs(), fastRetry())

	calls := 0
	err := fs.withRetry("stat", "/x", func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	fs := New(afero.NewMemMapFs(), fastRetry())

	calls := 0
	err := fs.withRetry("stat", "/x", func() error {
		calls++
		return syscall.ESTALE
	})

	assert.True(t, errors.Is(err, syscall.ESTALE))
	assert.Equal(t, 4, calls)
}

func TestWithRetry_NoRetryOnOtherErrors(t *testing.T) {
	fs := New(afero.NewMemMapFs(), fastRetry())

	calls := 0
	err := fs.withRetry("open", "/x", func() error {
		calls++
		return os.ErrPermission
	})

	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, calls)
}
