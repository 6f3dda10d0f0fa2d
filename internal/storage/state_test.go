package storage

import (
	"context"
	"testing"

	"github.com/vidyasagar/tabtrail/internal/trail"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTrailStoreFirstRun(t *testing.T) {
	store := NewTrailStore(openTestDB(t))

	records, cursor, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 || cursor != -1 {
		t.Errorf("first run = %v cursor %d, want empty and -1", records, cursor)
	}
}

func TestTrailStoreRoundTrip(t *testing.T) {
	store := NewTrailStore(openTestDB(t))
	ctx := context.Background()

	in := []trail.TabRecord{
		{TabID: 3, Title: "Go", FaviconURL: "https://go.dev/favicon.ico"},
		{TabID: 1, Title: "News"},
	}
	if err := store.Save(ctx, in, 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Overwrite: records and cursor always land together.
	if err := store.Save(ctx, in[:1], 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, cursor, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cursor != 0 {
		t.Errorf("cursor = %d, want 0", cursor)
	}
	if len(records) != 1 || records[0] != in[0] {
		t.Errorf("records = %+v, want %+v", records, in[:1])
	}
}

func TestTrailStoreSaveEmpty(t *testing.T) {
	store := NewTrailStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Save(ctx, nil, -1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	records, cursor, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 || cursor != -1 {
		t.Errorf("empty save round-trip = %v cursor %d", records, cursor)
	}
}

func TestActivationLog(t *testing.T) {
	log := NewActivationLog(openTestDB(t))

	for i := 0; i < 3; i++ {
		if err := log.Append(i, "tab"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d rows, want 2", len(recent))
	}
	if recent[0].TabID != 2 || recent[1].TabID != 1 {
		t.Errorf("rows = %+v, want newest first", recent)
	}

	if err := log.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	recent, err = log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("log not cleared: %+v", recent)
	}
}
