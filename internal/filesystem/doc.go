/*
Package filesystem provides the filesystem used by ingestion and discovery,
with automatic retry for NFS stale file handle errors.

# Purpose

FS wraps an afero.Fs. Production code uses the OS filesystem (NewOS); tests
use afero.NewMemMapFs so stat, read and directory listing can be exercised
without touching disk:

	fs := filesystem.New(afero.NewMemMapFs(), filesystem.DefaultRetryConfig())
	info, err := fs.Stat("/videos/movie.mkv")

# Retry Behavior

Only ESTALE (stale file handle) errors trigger retries, with exponential
backoff:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately. A vanished file is reported as-is so
ingestion can drop the candidate without a tombstone.

# Volumes

A VolumeResolver labels retry metrics by scan root (for example
"downloads" or "videos") using longest-prefix matching.
*/
package filesystem
