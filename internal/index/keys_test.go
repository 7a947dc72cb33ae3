package index

import (
	"testing"

	"localfiles/internal/identity"
	"localfiles/internal/mediatypes"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		season   int
		episodes []int
		want     []string
	}{
		{"movie", "tt1", 0, nil, []string{"tt1"}},
		{"season only", "tt1", 2, nil, []string{"tt1 2"}},
		{"single episode", "tt1", 1, []int{2}, []string{"tt1 1 2"}},
		{"multi episode", "tt1", 1, []int{1, 2}, []string{"tt1 1 1", "tt1 1 2"}},
		{"duplicate episodes collapse", "tt1", 1, []int{3, 3}, []string{"tt1 1 3"}},
		{"zero episode omitted", "tt1", 1, []int{0}, []string{"tt1 1"}},
		{"episode without season", "tt1", 0, []int{4}, []string{"tt1 4"}},
		{"no id", "", 1, []int{1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keys(tt.id, tt.season, tt.episodes))
		})
	}
}

func TestRecordKeys(t *testing.T) {
	rec := &FileRecord{
		Path:     "/tv/show.s01e01e02.mkv",
		IMDbID:   "tt1",
		Identity: &identity.Identity{Type: mediatypes.MediaTypeSeries, Season: 1, Episode: []int{1, 2}},
	}
	assert.Equal(t, []string{"tt1 1 1", "tt1 1 2"}, RecordKeys(rec))

	assert.Nil(t, RecordKeys(&FileRecord{Path: "/x", Uninteresting: true}))
	assert.Equal(t, []string{"tt9"}, RecordKeys(&FileRecord{Path: "/x", IMDbID: "tt9"}))
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "tt1", CanonicalID("tt1 1 2"))
	assert.Equal(t, "tt1", CanonicalID("tt1"))
	assert.Equal(t, "", CanonicalID(""))
}
