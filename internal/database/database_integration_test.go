package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"localfiles/internal/apperr"
	"localfiles/internal/identity"
	"localfiles/internal/index"
	"localfiles/internal/mediatypes"
)

// setupTestDB creates a test database in a temporary directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "index.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

func TestNewDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := db.db.PingContext(context.Background()); err != nil {
		t.Errorf("Database ping failed: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	current, latest, dirty, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if current != latest || dirty {
		t.Errorf("schema at %d (dirty=%v), want %d", current, dirty, latest)
	}
}

func TestReopenDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := db.Files().Put(ctx, "/a.mkv", []byte(`{"path":"/a.mkv","uninteresting":true}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_ = db.Close()

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Files().Get(ctx, "/a.mkv"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}

func TestTableGetPut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for _, table := range []*Table{db.Files(), db.Meta()} {
		t.Run(table.name, func(t *testing.T) {
			_, err := table.Get(ctx, "missing")
			if !errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}

			if err := table.Put(ctx, "k", []byte(`{"v":1}`)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := table.Put(ctx, "k", []byte(`{"v":2}`)); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}

			got, err := table.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != `{"v":2}` {
				t.Errorf("Get = %s, want last write", got)
			}
		})
	}
}

func TestTableScanOrdered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	meta := db.Meta()

	for _, k := range []string{"tt3", "tt1 1 2", "tt2", "tt1 1 1"} {
		if err := meta.Put(ctx, k, []byte(`{}`)); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	var keys []string
	err := meta.Scan(ctx, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"tt1 1 1", "tt1 1 2", "tt2", "tt3"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Scan keys = %v, want %v", keys, want)
	}

	stop := errors.New("stop")
	calls := 0
	err = meta.Scan(ctx, func(string, []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Scan did not stop on callback error: err=%v calls=%d", err, calls)
	}
}

func TestCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := index.NewStore(db.Files(), db.Meta())

	if err := store.PutTombstone(ctx, "/junk.mkv"); err != nil {
		t.Fatal(err)
	}
	if err := store.Index(ctx, &index.FileRecord{Path: "/m.mkv", IMDbID: "tt1"}); err != nil {
		t.Fatal(err)
	}

	records, tombstones, err := db.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if records != 2 || tombstones != 1 {
		t.Errorf("Counts = (%d, %d), want (2, 1)", records, tombstones)
	}
}

func TestIndexStoreOnSQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := index.NewStore(db.Files(), db.Meta())

	rec := &index.FileRecord{
		Path:     "/tv/Show.S01E01E02.mkv",
		Name:     "Show.S01E01E02.mkv",
		IMDbID:   "tt1",
		Identity: &identity.Identity{Type: mediatypes.MediaTypeSeries, Name: "Show", Season: 1, Episode: []int{1, 2}},
	}
	if err := store.Index(ctx, rec); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	for _, key := range []string{"tt1 1 1", "tt1 1 2"} {
		entry, err := store.GetInverted(ctx, key)
		if err != nil {
			t.Fatalf("GetInverted(%q) failed: %v", key, err)
		}
		if _, ok := entry[rec.Path]; !ok || len(entry) != 1 {
			t.Errorf("entry %q = %v, want only %s", key, entry, rec.Path)
		}
	}

	got, err := store.GetRecord(ctx, rec.Path)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.IMDbID != "tt1" || got.Identity.Season != 1 {
		t.Errorf("GetRecord = %+v", got)
	}
}

func TestConcurrentInvertedMergesOnSQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := index.NewStore(db.Files(), db.Meta())

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.AddToInverted(ctx, "tt1", fmt.Sprintf("/p/%02d.mkv", i)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddToInverted failed: %v", err)
	}

	entry, err := store.GetInverted(ctx, "tt1")
	if err != nil {
		t.Fatalf("GetInverted failed: %v", err)
	}
	if len(entry) != n {
		t.Errorf("entry has %d members, want %d", len(entry), n)
	}
}

func TestVacuum(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	if err := db.Vacuum(context.Background()); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMetadata(ctx, "nonexistent"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	if err := db.SetMetadata(ctx, "key1", "value1"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if err := db.SetMetadata(ctx, "key1", "value2"); err != nil {
		t.Fatalf("SetMetadata update failed: %v", err)
	}
	value, err := db.GetMetadata(ctx, "key1")
	if err != nil || value != "value2" {
		t.Errorf("GetMetadata = %q, %v; want value2", value, err)
	}
}

func TestLastScanPass(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetLastScanPass(ctx)
	if err != nil || !got.IsZero() {
		t.Fatalf("GetLastScanPass before any pass = %v, %v", got, err)
	}

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := db.SetLastScanPass(ctx, now); err != nil {
		t.Fatalf("SetLastScanPass failed: %v", err)
	}
	got, err = db.GetLastScanPass(ctx)
	if err != nil || !got.Equal(now) {
		t.Errorf("GetLastScanPass = %v, %v; want %v", got, err, now)
	}

	if err := db.SetLastScanPass(ctx, time.Time{}); err != nil {
		t.Fatalf("clearing failed: %v", err)
	}
	got, _ = db.GetLastScanPass(ctx)
	if !got.IsZero() {
		t.Errorf("expected zero time after clearing, got %v", got)
	}
}
