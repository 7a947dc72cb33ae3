package mediatypes

import (
	"path/filepath"
	"strings"
)

// MediaType is the catalog type of a parsed file.
type MediaType string

const (
	// MediaTypeMovie is a feature film.
	MediaTypeMovie MediaType = "movie"
	// MediaTypeSeries is an episode of a series.
	MediaTypeSeries MediaType = "series"
	// MediaTypeExtra is a sample, trailer or other bonus clip.
	MediaTypeExtra MediaType = "extras"
	// MediaTypeOther is anything the parser could not classify.
	MediaTypeOther MediaType = "other"
)

// Catalogable reports whether files of this type can be indexed.
func (t MediaType) Catalogable() bool {
	return t == MediaTypeMovie || t == MediaTypeSeries
}

// DefaultCacheDirName is the streaming cache directory excluded from discovery.
const DefaultCacheDirName = "stremio-cache"

// TorrentExtension is the extension of torrent containers.
const TorrentExtension = ".torrent"

// VideoExtensions maps file extensions to whether they are indexed video formats.
var VideoExtensions = map[string]bool{
	".mkv": true,
	".avi": true,
	".mp4": true,
	".mov": true,
}

// Filter decides whether a discovered path is worth ingesting.
// The zero value excludes DefaultCacheDirName.
type Filter struct {
	CacheDirName string
}

// NewFilter returns a filter excluding paths containing cacheDirName.
// An empty name falls back to DefaultCacheDirName.
func NewFilter(cacheDirName string) Filter {
	return Filter{CacheDirName: cacheDirName}
}

func (f Filter) cacheDirName() string {
	if f.CacheDirName == "" {
		return DefaultCacheDirName
	}
	return f.CacheDirName
}

// IsInteresting reports whether path has an indexed video extension or is a
// torrent container, and does not live under the cache directory.
func (f Filter) IsInteresting(path string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(path, f.cacheDirName()) {
		return false
	}
	ext := Ext(path)
	return VideoExtensions[ext] || ext == TorrentExtension
}

// IsInteresting applies the default filter.
func IsInteresting(path string) bool {
	return Filter{}.IsInteresting(path)
}

// IsTorrent reports whether path names a torrent container.
func IsTorrent(path string) bool {
	return Ext(path) == TorrentExtension
}

// Ext returns the lowercase extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
