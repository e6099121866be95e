package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRecord(id string, turns int) Record {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{
		ConversationID: id,
		CreatedAt:      base,
		UpdatedAt:      base.Add(time.Duration(turns) * time.Minute),
		TurnCount:      turns,
	}
	for i := 0; i < turns; i++ {
		rec.Turns = append(rec.Turns, Turn{
			UserMessage:   "create a task workflow",
			AgentResponse: "done",
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			ToolsUsed:     []string{"create_workflow"},
		})
	}
	return rec
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return fs
}

// ---------------------------------------------------------------------------
// Save / Load round trip
// ---------------------------------------------------------------------------

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	want := testRecord("conv_1", 3)

	if err := fs.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := fs.Load("conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.ConversationID != want.ConversationID || got.TurnCount != want.TurnCount {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Turns) != len(want.Turns) {
		t.Fatalf("got %d turns, want %d", len(got.Turns), len(want.Turns))
	}
	for i := range got.Turns {
		if got.Turns[i].UserMessage != want.Turns[i].UserMessage ||
			got.Turns[i].AgentResponse != want.Turns[i].AgentResponse ||
			!got.Turns[i].Timestamp.Equal(want.Turns[i].Timestamp) {
			t.Errorf("turn %d: got %+v, want %+v", i, got.Turns[i], want.Turns[i])
		}
	}
}

func TestFileStore_SaveOverwritesPrevious(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	if err := fs.Save(testRecord("conv_1", 1)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := fs.Save(testRecord("conv_1", 4)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := fs.Load("conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TurnCount != 4 {
		t.Errorf("TurnCount = %d, want 4", got.TurnCount)
	}
}

// ---------------------------------------------------------------------------
// Not-found and malformed records
// ---------------------------------------------------------------------------

func TestFileStore_LoadUnknownID(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	if _, err := fs.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(nope) error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_LoadMalformedRecord(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	path := filepath.Join(fs.dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write broken record: %v", err)
	}

	if _, err := fs.Load("broken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(broken) error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_LoadIgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	doc := `{"conversation_id":"conv_x","turn_count":1,"future_field":true,` +
		`"turns":[{"user_message":"hi","agent_response":"hello","extra":42}]}`
	if err := os.WriteFile(filepath.Join(fs.dir, "conv_x.json"), []byte(doc), 0o600); err != nil {
		t.Fatalf("write record: %v", err)
	}

	got, err := fs.Load("conv_x")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TurnCount != 1 || len(got.Turns) != 1 || got.Turns[0].UserMessage != "hi" {
		t.Errorf("got %+v, want 1 turn with user_message hi", got)
	}
}

// ---------------------------------------------------------------------------
// ID sanitization
// ---------------------------------------------------------------------------

func TestFileStore_SanitizesTraversalIDs(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	id := "../../etc/passwd"

	if err := fs.Save(testRecord(id, 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The document must land inside the storage directory.
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries in storage dir, want 1", len(entries))
	}

	// And the same hostile id must load it back.
	if _, err := fs.Load(id); err != nil {
		t.Errorf("load with traversal id: %v", err)
	}
}

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"conv_123", "conv_123"},
		{"a/b\\c", "a_b_c"},
		{"../up", "___up"},
		{"...", ""},
		{"id with spaces", "id_with_spaces"},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.in); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileStore_EmptyIDRejected(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	if err := fs.Save(Record{ConversationID: ""}); err == nil {
		t.Error("Save with empty id succeeded, want error")
	}
}

// ---------------------------------------------------------------------------
// Delete / List / Stats
// ---------------------------------------------------------------------------

func TestFileStore_DeleteIdempotent(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	if err := fs.Save(testRecord("conv_1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := fs.Delete("conv_1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := fs.Delete("conv_1"); err != nil {
		t.Errorf("second delete: %v, want nil", err)
	}
	if _, err := fs.Load("conv_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_ListAndStats(t *testing.T) {
	t.Parallel()

	fs := newTestFileStore(t)
	if err := fs.Save(testRecord("conv_a", 2)); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := fs.Save(testRecord("conv_b", 3)); err != nil {
		t.Fatalf("save b: %v", err)
	}

	// A leftover temp file from an interrupted save must not show up.
	if err := os.WriteFile(filepath.Join(fs.dir, "conv_c.json.123.tmp"), []byte("partial"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	ids, err := fs.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("List() = %v, want 2 ids", ids)
	}

	stats, err := fs.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Backend != "file" {
		t.Errorf("Backend = %q, want file", stats.Backend)
	}
	if stats.TotalConversations != 2 {
		t.Errorf("TotalConversations = %d, want 2", stats.TotalConversations)
	}
	if stats.TotalTurns != 5 {
		t.Errorf("TotalTurns = %d, want 5", stats.TotalTurns)
	}
	if stats.StorageSizeBytes <= 0 {
		t.Errorf("StorageSizeBytes = %d, want > 0", stats.StorageSizeBytes)
	}
}
