package redisstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"localfiles/internal/apperr"
	"localfiles/internal/index"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to REDIS_URL under a throwaway prefix.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	prefix := "localfiles-test-" + uuid.NewString()
	s, err := New(context.Background(), url, prefix)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.cl.Del(ctx, s.key("files"), s.key("meta"), s.key("metadata")).Err()
		_ = s.Close()
	})
	return s
}

func TestHashGetPut(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := s.Files()

	_, err := h.Get(ctx, "/missing")
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, h.Put(ctx, "/a.mkv", []byte(`{"path":"/a.mkv"}`)))
	got, err := h.Get(ctx, "/a.mkv")
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/a.mkv"}`, string(got))

	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestHashScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := s.Meta()

	want := make([]string, 0, 30)
	for i := range 30 {
		k := fmt.Sprintf("tt%02d", i)
		want = append(want, k)
		require.NoError(t, h.Put(ctx, k, []byte(`{}`)))
	}

	var got []string
	require.NoError(t, h.Scan(ctx, func(key string, _ []byte) error {
		got = append(got, key)
		return nil
	}))
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestIndexStoreOnRedis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	store := index.NewStore(s.Files(), s.Meta())

	rec := &index.FileRecord{Path: "/m.mkv", IMDbID: "tt1"}
	require.NoError(t, store.Index(ctx, rec))
	require.NoError(t, store.AddToInverted(ctx, "tt1", "/n.mkv"))

	entry, err := store.GetInverted(ctx, "tt1")
	require.NoError(t, err)
	assert.Len(t, entry, 2)
}

func TestLastScanPass(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetLastScanPass(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastScanPass(ctx, now))
	got, err = s.GetLastScanPass(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url", "")
	assert.Error(t, err)
}
