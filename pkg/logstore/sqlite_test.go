package logstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "toolkit.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	entries := []models.LogEntry{
		entryAt(0, "Internet connection cleared."),
		entryAt(2, "Internet connection established successfully."),
	}
	if err := store.Append(ctx, testAddress, entries); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	loaded, err := store.Load(ctx, testAddress)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load() returned %d entries, want 2", len(loaded))
	}
	for i := range entries {
		if !loaded[i].Timestamp.Equal(entries[i].Timestamp) {
			t.Errorf("entry %d timestamp = %v, want %v", i, loaded[i].Timestamp, entries[i].Timestamp)
		}
		if loaded[i].Message != entries[i].Message {
			t.Errorf("entry %d message = %q, want %q", i, loaded[i].Message, entries[i].Message)
		}
	}
}

func TestSQLiteStoreUnknownRouter(t *testing.T) {
	store := newTestSQLiteStore(t)

	entries, err := store.Load(context.Background(), "never-seen.box")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Load() returned %d entries for unknown router, want 0", len(entries))
	}
}

func TestSQLiteStoreSeparatesRouters(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "box-one", []models.LogEntry{entryAt(0, "one")}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := store.Append(ctx, "box-two", []models.LogEntry{entryAt(0, "two")}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	one, err := store.Load(ctx, "box-one")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(one) != 1 || one[0].Message != "one" {
		t.Errorf("box-one entries = %v, want just \"one\"", one)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolkit.db")
	ctx := context.Background()

	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() failed: %v", err)
	}
	if err := store.Append(ctx, testAddress, []models.LogEntry{entryAt(0, "persisted")}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Second open must find the schema already migrated and the data intact.
	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() after close failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, testAddress)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Message != "persisted" {
		t.Errorf("reopened store entries = %v", loaded)
	}
}
