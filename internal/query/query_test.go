package query

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localfiles/internal/apperr"
	"localfiles/internal/identity"
	"localfiles/internal/index"
	"localfiles/internal/mediatypes"
	"localfiles/internal/torrent"
)

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenKV) Put(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func (brokenKV) Scan(context.Context, func(string, []byte) error) error {
	return errors.New("disk on fire")
}

type fakeCatalog struct {
	args json.RawMessage
	err  error
}

func (c *fakeCatalog) MetaFind(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	c.args = args
	if c.err != nil {
		return nil, c.err
	}
	return json.RawMessage(`[{"imdb_id":"tt1"}]`), nil
}

func seededStore(t *testing.T) *index.Store {
	t.Helper()
	ctx := context.Background()
	store := index.NewStore(index.NewMemKV(), index.NewMemKV())

	records := []*index.FileRecord{
		{
			Path:     "/tv/Show.S01E02.mkv",
			Name:     "Show.S01E02.mkv",
			Identity: &identity.Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{2}, Tag: []string{"720p"}},
			IMDbID:   "tt1",
		},
		{
			Path:     "/dl/pack.torrent/Show.S01E02.mkv",
			Name:     "Show.S01E02.mkv",
			Identity: &identity.Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{2}},
			IMDbID:   "tt1",
			Swarm:    &torrent.SwarmInfo{InfoHash: "H", FileIndex: 0, Trackers: []string{"t1", "t2"}},
		},
		{
			Path:     "/movies/Alien (1979).mkv",
			Name:     "Alien (1979).mkv",
			Identity: &identity.Identity{Type: mediatypes.MediaTypeMovie, Name: "Alien", Year: 1979},
			IMDbID:   "tt0078748",
		},
	}
	for _, rec := range records {
		require.NoError(t, store.Index(ctx, rec))
	}
	require.NoError(t, store.PutTombstone(ctx, "/movies/unknown.mkv"))
	return store
}

func TestStreamFind(t *testing.T) {
	r := New(seededStore(t), nil)

	streams, err := r.StreamFind(context.Background(), StreamQuery{IMDbID: "tt1", Season: 1, Episodes: []int{2}})
	require.NoError(t, err)
	require.Len(t, streams, 2)

	// paths are returned sorted
	tor, file := streams[0], streams[1]

	assert.Equal(t, "H", tor.InfoHash)
	require.NotNil(t, tor.MapIdx)
	assert.Equal(t, 0, *tor.MapIdx)
	assert.Equal(t, []string{"dht:H", "tracker:t1", "tracker:t2"}, tor.Sources)
	assert.Equal(t, TorrentSourceName, tor.Name)
	assert.Equal(t, "Show.S01E02.mkv", tor.Title)
	assert.Empty(t, tor.URL)

	assert.Equal(t, "file:///tv/Show.S01E02.mkv", file.URL)
	assert.Equal(t, FileSourceName, file.Name)
	assert.Equal(t, []string{"720p"}, file.Tag)
	assert.Nil(t, file.MapIdx)
}

func TestStreamFindMovie(t *testing.T) {
	r := New(seededStore(t), nil)

	streams, err := r.StreamFind(context.Background(), StreamQuery{IMDbID: "tt0078748"})
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "file:///movies/Alien (1979).mkv", streams[0].URL)
}

func TestStreamFindEpisodeListUsesFirstKey(t *testing.T) {
	store := seededStore(t)
	double := &index.FileRecord{
		Path:     "/tv/Show.S02E01E02.mkv",
		Name:     "Show.S02E01E02.mkv",
		Identity: &identity.Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 2, Episode: []int{1, 2}},
		IMDbID:   "tt1",
	}
	require.NoError(t, store.Index(context.Background(), double))
	r := New(store, nil)

	q := StreamQuery{IMDbID: "tt1", Season: 2, Episodes: []int{1, 2}}
	assert.Equal(t, []string{"tt1 2 1", "tt1 2 2"}, q.Keys())

	streams, err := r.StreamFind(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "file:///tv/Show.S02E01E02.mkv", streams[0].URL)

	// only the first key is consulted
	streams, err = r.StreamFind(context.Background(), StreamQuery{IMDbID: "tt1", Season: 1, Episodes: []int{9, 2}})
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestStreamFindUnknownKeyIsEmpty(t *testing.T) {
	r := New(seededStore(t), nil)

	for _, q := range []StreamQuery{
		{IMDbID: "tt404"},
		{IMDbID: "tt1", Season: 1, Episodes: []int{9}},
		{},
	} {
		streams, err := r.StreamFind(context.Background(), q)
		require.NoError(t, err)
		assert.NotNil(t, streams)
		assert.Empty(t, streams)
	}
}

func TestStreamFindSkipsMissingRecords(t *testing.T) {
	ctx := context.Background()
	store := index.NewStore(index.NewMemKV(), index.NewMemKV())
	require.NoError(t, store.AddToInverted(ctx, "tt9", "/gone.mkv"))

	streams, err := New(store, nil).StreamFind(ctx, StreamQuery{IMDbID: "tt9"})
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestStreamFindStoreFailure(t *testing.T) {
	store := index.NewStore(brokenKV{}, brokenKV{})

	_, err := New(store, nil).StreamFind(context.Background(), StreamQuery{IMDbID: "tt1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)
}

func TestStreamDescriptorJSON(t *testing.T) {
	idx := 0
	data, err := json.Marshal(StreamDescriptor{InfoHash: "H", MapIdx: &idx, Sources: []string{"dht:H"}, Title: "x", Name: TorrentSourceName})
	require.NoError(t, err)
	assert.JSONEq(t, `{"infoHash":"H","mapIdx":0,"sources":["dht:H"],"title":"x","name":"Local Torrent"}`, string(data))
}

func TestMetaFindInjectsSortedIDs(t *testing.T) {
	catalog := &fakeCatalog{}
	r := New(seededStore(t), catalog)

	res, err := r.MetaFind(context.Background(), json.RawMessage(`{"query":{"type":"series"},"limit":10}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"imdb_id":"tt1"}]`, string(res))
	assert.JSONEq(t,
		`{"query":{"type":"series","imdb_id":{"$in":["tt0078748","tt1"]}},"limit":10}`,
		string(catalog.args))
}

func TestMetaFindKeepsCallerIDs(t *testing.T) {
	catalog := &fakeCatalog{}
	r := New(seededStore(t), catalog)

	_, err := r.MetaFind(context.Background(), json.RawMessage(`{"query":{"imdb_id":"tt5"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"imdb_id":"tt5"}}`, string(catalog.args))
}

func TestMetaFindEmptyArgs(t *testing.T) {
	catalog := &fakeCatalog{}
	r := New(index.NewStore(index.NewMemKV(), index.NewMemKV()), catalog)

	_, err := r.MetaFind(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"imdb_id":{"$in":[]}}}`, string(catalog.args))
}

func TestMetaFindErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("catalog failure is transient", func(t *testing.T) {
		r := New(seededStore(t), &fakeCatalog{err: errors.New("boom")})
		_, err := r.MetaFind(ctx, nil)
		assert.ErrorIs(t, err, apperr.ErrTransient)
	})

	t.Run("no catalog", func(t *testing.T) {
		_, err := New(seededStore(t), nil).MetaFind(ctx, nil)
		assert.ErrorIs(t, err, apperr.ErrTransient)
	})

	t.Run("malformed args", func(t *testing.T) {
		_, err := New(seededStore(t), &fakeCatalog{}).MetaFind(ctx, json.RawMessage(`[1,2]`))
		assert.ErrorIs(t, err, apperr.ErrMalformed)
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := New(index.NewStore(brokenKV{}, brokenKV{}), &fakeCatalog{}).MetaFind(ctx, nil)
		assert.ErrorIs(t, err, apperr.ErrInternal)
	})
}

func TestTopIDs(t *testing.T) {
	ctx := context.Background()
	store := index.NewStore(index.NewMemKV(), index.NewMemKV())
	for _, key := range []string{"tt1 1 1", "tt1 1 2", "tt2", "tt3 1 1", "tt3 1 2"} {
		require.NoError(t, store.AddToInverted(ctx, key, "/p"))
	}

	top, err := New(store, nil).TopIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []IDCount{{ID: "tt1", Count: 2}, {ID: "tt3", Count: 2}}, top)

	all, err := New(store, nil).TopIDs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
