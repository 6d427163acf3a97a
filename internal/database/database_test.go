package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "nested", "index.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func lookup(t *testing.T, db *Database, fingerprint string) (Entry, bool) {
	t.Helper()
	entries, err := db.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	for _, e := range entries {
		if e.Fingerprint == fingerprint {
			return e, true
		}
	}
	return Entry{}, false
}

func TestAddBytesAccumulates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)

	if err := db.AddBytes(ctx, "aaa", 100, t2); err != nil {
		t.Fatal(err)
	}
	if err := db.AddBytes(ctx, "aaa", 50, t1); err != nil {
		t.Fatal(err)
	}

	e, ok := lookup(t, db, "aaa")
	if !ok {
		t.Fatal("entry aaa missing")
	}
	if e.SizeBytes != 150 {
		t.Errorf("SizeBytes = %d, want 150", e.SizeBytes)
	}
	if !e.LastAccess.Equal(t2) {
		t.Errorf("LastAccess = %v, want %v (never moves backwards)", e.LastAccess, t2)
	}

	if err := db.AddBytes(ctx, "aaa", -500, t2); err != nil {
		t.Fatal(err)
	}
	e, _ = lookup(t, db, "aaa")
	if e.SizeBytes != 0 {
		t.Errorf("SizeBytes = %d, want 0 after oversized decrement", e.SizeBytes)
	}
}

func TestTotalsAndEntriesOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.AddBytes(ctx, "new", 30, time.Unix(300, 0))
	db.AddBytes(ctx, "old", 10, time.Unix(100, 0))
	db.AddBytes(ctx, "mid", 20, time.Unix(200, 0))

	total, count, err := db.Totals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 60 || count != 3 {
		t.Errorf("Totals() = %d, %d; want 60, 3", total, count)
	}

	entries, err := db.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"old", "mid", "new"}
	for i, e := range entries {
		if e.Fingerprint != want[i] {
			t.Errorf("entries[%d] = %s, want %s", i, e.Fingerprint, want[i])
		}
	}

	if err := db.AddBytes(ctx, "old", 0, time.Unix(400, 0)); err != nil {
		t.Fatal(err)
	}
	entries, _ = db.Entries(ctx)
	if entries[len(entries)-1].Fingerprint != "old" {
		t.Errorf("touched entry should sort last, got %s", entries[len(entries)-1].Fingerprint)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.AddBytes(ctx, "aaa", 10, time.Now())
	if err := db.Delete(ctx, "aaa"); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(ctx, "aaa"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, ok := lookup(t, db, "aaa"); ok {
		t.Error("entry should be gone")
	}
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.AddBytes(ctx, "stale", 999, time.Now())

	err := db.ReplaceAll(ctx, []Entry{
		{Fingerprint: "a", SizeBytes: 5, LastAccess: time.Unix(1, 0)},
		{Fingerprint: "b", SizeBytes: 7, LastAccess: time.Unix(2, 0)},
	})
	if err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	total, count, _ := db.Totals(ctx)
	if total != 12 || count != 2 {
		t.Errorf("Totals() = %d, %d; want 12, 2", total, count)
	}
	if _, ok := lookup(t, db, "stale"); ok {
		t.Error("stale entry survived ReplaceAll")
	}

	// Duplicate keys violate the primary key and roll back.
	err = db.ReplaceAll(ctx, []Entry{{Fingerprint: "x"}, {Fingerprint: "x"}})
	if err == nil {
		t.Fatal("expected error for duplicate fingerprints")
	}
	total, count, _ = db.Totals(ctx)
	if total != 12 || count != 2 {
		t.Errorf("failed ReplaceAll changed the index: %d, %d", total, count)
	}
}

func TestCleanFlag(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	db, err := New(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	clean, err := db.IsClean(ctx)
	if err != nil || clean {
		t.Fatalf("fresh index IsClean() = %v, %v; want false", clean, err)
	}
	if err := db.SetClean(ctx, true); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = New(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if clean, _ := db.IsClean(ctx); !clean {
		t.Error("clean flag did not persist across reopen")
	}
}

func TestMigrationIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	for i := 0; i < 2; i++ {
		db, err := New(ctx, path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		db.Close()
	}
}
