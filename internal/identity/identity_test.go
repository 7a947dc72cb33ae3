package identity

import (
	"testing"

	"localfiles/internal/mediatypes"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		path   string
		length int64
		want   Identity
	}{
		{
			name:   "dotted movie with release tags",
			path:   "/media/The.Matrix.1999.1080p.BluRay.x264.mkv",
			length: 2 << 30,
			want: Identity{
				Type: mediatypes.MediaTypeMovie,
				Name: "The Matrix",
				Year: 1999,
				Tag:  []string{"1080p", "bluray"},
			},
		},
		{
			name:   "movie with year in parens",
			path:   "/media/Alien (1979) [Remastered].mp4",
			length: 1 << 30,
			want:   Identity{Type: mediatypes.MediaTypeMovie, Name: "Alien", Year: 1979, Tag: []string{"remastered"}},
		},
		{
			name:   "title that starts with a year",
			path:   "/media/2001.A.Space.Odyssey.1968.mkv",
			length: 1 << 30,
			want:   Identity{Type: mediatypes.MediaTypeMovie, Name: "2001 A Space Odyssey", Year: 1968},
		},
		{
			name:   "series episode",
			path:   "/tv/Breaking.Bad.S01E02.720p.HDTV.mkv",
			length: 1 << 29,
			want: Identity{
				Type:    mediatypes.MediaTypeSeries,
				Name:    "Breaking Bad",
				Season:  1,
				Episode: []int{2},
				Tag:     []string{"720p", "hdtv"},
			},
		},
		{
			name:   "multi episode pair",
			path:   "/tv/Show.S01E01E02.mkv",
			length: 1 << 29,
			want:   Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{1, 2}},
		},
		{
			name:   "multi episode range",
			path:   "/tv/Show.S01E01-E03.mkv",
			length: 1 << 29,
			want:   Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{1, 2, 3}},
		},
		{
			name:   "season by episode notation",
			path:   "/tv/Show 1x05.avi",
			length: 1 << 29,
			want:   Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{5}},
		},
		{
			name:   "episode named only by number falls back to show directory",
			path:   "/tv/Firefly/Season 1/ep1.mkv",
			length: 1 << 29,
			want:   Identity{Type: mediatypes.MediaTypeSeries, Name: "Firefly", Season: 1, Episode: []int{1}},
		},
		{
			name:   "numeric file name falls back to parent directory",
			path:   "/movies/Alien (1979)/1.mkv",
			length: 1 << 30,
			want:   Identity{Type: mediatypes.MediaTypeMovie, Name: "Alien", Year: 1979},
		},
		{
			name:   "small sample is an extra",
			path:   "/movies/Alien/alien-sample.mkv",
			length: 10 << 20,
			want:   Identity{Type: mediatypes.MediaTypeExtra, Name: "alien-sample"},
		},
		{
			name:   "file under a trailers directory is an extra",
			path:   "/movies/Alien/Trailers/teaser.mkv",
			length: 10 << 20,
			want:   Identity{Type: mediatypes.MediaTypeExtra, Name: "teaser"},
		},
		{
			name:   "no usable title",
			path:   "/12345.mp4",
			length: 1 << 20,
			want:   Identity{Type: mediatypes.MediaTypeOther, Name: "12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.path, "", tt.length)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUsesDisplayName(t *testing.T) {
	p := NewParser()

	got := p.Parse("/dl/pack.torrent/Show.S02E03.mkv", "Show.S02E03.mkv", 100)
	assert.Equal(t, mediatypes.MediaTypeSeries, got.Type)
	assert.Equal(t, "Show", got.Name)
	assert.Equal(t, 2, got.Season)
	assert.Equal(t, []int{3}, got.Episode)
}

func TestCatalogable(t *testing.T) {
	assert.True(t, Identity{Type: mediatypes.MediaTypeMovie, Name: "Alien"}.Catalogable())
	assert.True(t, Identity{Type: mediatypes.MediaTypeSeries, Name: "Show"}.Catalogable())
	assert.False(t, Identity{Type: mediatypes.MediaTypeSeries}.Catalogable())
	assert.False(t, Identity{Type: mediatypes.MediaTypeExtra, Name: "x"}.Catalogable())
	assert.False(t, Identity{Type: mediatypes.MediaTypeOther}.Catalogable())
}

func TestAppendEpisode(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, appendEpisode([]int{1}, 3))
	assert.Equal(t, []int{4}, appendEpisode([]int{4}, 2))
	assert.Equal(t, []int{1}, appendEpisode([]int{1}, 720))
}
