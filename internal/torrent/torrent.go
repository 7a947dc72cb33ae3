package torrent

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"path"
	"path/filepath"
	"strings"

	"localfiles/internal/apperr"
	"localfiles/internal/filesystem"
	"localfiles/internal/metrics"

	"github.com/anacrolix/torrent/metainfo"
)

// SwarmInfo addresses one file inside a torrent swarm.
type SwarmInfo struct {
	InfoHash  string   `json:"infoHash"`
	FileIndex int      `json:"fileIndex"`
	Trackers  []string `json:"trackers"`
}

// File is one entry of a torrent's file table.
type File struct {
	Path   string // slash separated, relative to the container
	Length int64
}

// Meta is the decoded content of a torrent container.
type Meta struct {
	InfoHash string
	Trackers []string
	Files    []File
}

// Decoder decodes torrent container bytes.
type Decoder interface {
	Decode(data []byte) (*Meta, error)
}

// Seed is a virtual file candidate produced from a container.
type Seed struct {
	Path   string
	Name   string
	Length int64
	Swarm  SwarmInfo
}

// MetainfoDecoder decodes containers with anacrolix/torrent/metainfo.
type MetainfoDecoder struct{}

// Decode implements Decoder.
func (MetainfoDecoder) Decode(data []byte) (*Meta, error) {
	if len(data) == 0 || data[0] != 'd' {
		return nil, errors.New("not a bencoded dictionary")
	}

	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode metainfo: %w", err)
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to decode info dictionary: %w", err)
	}

	name := info.BestName()
	if name == "" {
		return nil, errors.New("torrent has no name")
	}

	meta := &Meta{
		InfoHash: mi.HashInfoBytes().HexString(),
		Trackers: trackers(mi),
	}

	if len(info.Files) == 0 {
		meta.Files = []File{{Path: name, Length: info.Length}}
		return meta, nil
	}

	for _, fi := range info.Files {
		parts := fi.BestPath()
		if len(parts) == 0 {
			return nil, errors.New("torrent file entry has an empty path")
		}
		meta.Files = append(meta.Files, File{
			Path:   path.Join(append([]string{name}, parts...)...),
			Length: fi.Length,
		})
	}
	return meta, nil
}

// trackers flattens the announce list in tier order, dropping duplicates.
func trackers(mi *metainfo.MetaInfo) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, tier := range mi.UpvertedAnnounceList() {
		for _, url := range tier {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}
			out = append(out, url)
		}
	}
	return out
}

// Expander turns containers into seeds.
type Expander struct {
	decoder Decoder
	fs      *filesystem.FS
}

// NewExpander returns an Expander. A nil decoder selects MetainfoDecoder.
func NewExpander(decoder Decoder, fs *filesystem.FS) *Expander {
	if decoder == nil {
		decoder = MetainfoDecoder{}
	}
	return &Expander{decoder: decoder, fs: fs}
}

// Expand decodes data and returns a sequence of seeds, one per file in the
// container's file table. On error no seeds are produced.
func (e *Expander) Expand(torrentPath string, data []byte) (iter.Seq[Seed], error) {
	meta, err := e.decoder.Decode(data)
	if err != nil {
		metrics.TorrentExpansionsTotal.WithLabelValues("malformed").Inc()
		return nil, apperr.Malformed("torrent.decode "+torrentPath, err)
	}
	metrics.TorrentExpansionsTotal.WithLabelValues("success").Inc()

	return func(yield func(Seed) bool) {
		for i, f := range meta.Files {
			seed := Seed{
				Path:   VirtualPath(torrentPath, f.Path),
				Name:   path.Base(f.Path),
				Length: f.Length,
				Swarm: SwarmInfo{
					InfoHash:  meta.InfoHash,
					FileIndex: i,
					Trackers:  meta.Trackers,
				},
			}
			metrics.TorrentFilesExpanded.Inc()
			if !yield(seed) {
				return
			}
		}
	}, nil
}

// ExpandFile reads the container at torrentPath and expands it.
func (e *Expander) ExpandFile(torrentPath string) (iter.Seq[Seed], error) {
	data, err := e.fs.ReadFile(torrentPath)
	if err != nil {
		metrics.TorrentExpansionsTotal.WithLabelValues("read_error").Inc()
		return nil, apperr.Malformed("torrent.read "+torrentPath, err)
	}
	return e.Expand(torrentPath, data)
}

// VirtualPath joins a container path with a slash separated in-torrent path.
func VirtualPath(torrentPath, rel string) string {
	return filepath.Join(torrentPath, filepath.FromSlash(rel))
}
