package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	want := testRecord("conv_1", 3)

	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.ConversationID != want.ConversationID || got.TurnCount != want.TurnCount {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(got.Turns))
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("timestamps = (%v, %v), want (%v, %v)",
			got.CreatedAt, got.UpdatedAt, want.CreatedAt, want.UpdatedAt)
	}
}

func TestSQLiteStore_SaveUpserts(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.Save(testRecord("conv_1", 1)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Save(testRecord("conv_1", 4)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.Load("conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TurnCount != 4 || len(got.Turns) != 4 {
		t.Errorf("TurnCount = %d, turns = %d, want 4, 4", got.TurnCount, len(got.Turns))
	}
}

func TestSQLiteStore_LoadUnknownID(t *testing.T) {
	s := newTestSQLiteStore(t)

	if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(nope) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_LoadMalformedRow(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.db.ExecContext(context.TODO(), `
		INSERT INTO conversations (conversation_id, created_at, updated_at, turn_count, turns)
		VALUES ('broken', 'not-a-time', 'not-a-time', 1, '{bad json')`)
	if err != nil {
		t.Fatalf("insert broken row: %v", err)
	}

	if _, err := s.Load("broken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(broken) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.Save(testRecord("conv_1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete("conv_1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete("conv_1"); err != nil {
		t.Errorf("second delete: %v, want nil", err)
	}
	if _, err := s.Load("conv_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListAndStats(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.Save(testRecord("conv_a", 2)); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.Save(testRecord("conv_b", 3)); err != nil {
		t.Fatalf("save b: %v", err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("List() = %v, want 2 ids", ids)
	}
	// conv_b has the later updated_at and must come first.
	if ids[0] != "conv_b" {
		t.Errorf("List()[0] = %q, want conv_b", ids[0])
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", stats.Backend)
	}
	if stats.TotalConversations != 2 || stats.TotalTurns != 5 {
		t.Errorf("counts = (%d, %d), want (2, 5)", stats.TotalConversations, stats.TotalTurns)
	}
	if stats.StorageSizeBytes <= 0 {
		t.Errorf("StorageSizeBytes = %d, want > 0", stats.StorageSizeBytes)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := migrate(s.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
