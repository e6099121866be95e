package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check that FileStore satisfies Store.
var _ Store = (*FileStore)(nil)

// FileStore keeps one JSON document per conversation under a single
// directory. Documents are human-readable and written atomically via a
// temp file in the same directory followed by a rename.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the storage directory if needed and returns a
// store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: storage directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger.With("component", "filestore")}, nil
}

// sanitizeID maps a conversation id to a safe filename stem. Anything
// outside [A-Za-z0-9._-] becomes an underscore, and leading dots are
// stripped so ids like "../../etc" cannot escape the storage directory.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

func (s *FileStore) path(conversationID string) (string, error) {
	stem := sanitizeID(conversationID)
	if stem == "" {
		return "", fmt.Errorf("store: invalid conversation id %q", conversationID)
	}
	return filepath.Join(s.dir, stem+".json"), nil
}

// Save writes the record to a temp file and renames it into place, so a
// crash at any point leaves either the previous document or the new one.
func (s *FileStore) Save(rec Record) error {
	path, err := s.path(rec.ConversationID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", rec.ConversationID, err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}

// Load reads a record back. Unknown JSON fields are ignored so newer
// documents remain loadable by older code. A document that fails to
// decode is logged and reported as ErrNotFound.
func (s *FileStore) Load(conversationID string) (Record, error) {
	path, err := s.path(conversationID)
	if err != nil {
		return Record{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: read %s: %w", conversationID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("conversation record is malformed, treating as absent",
			"conversation_id", conversationID, "error", err)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent record is a no-op.
func (s *FileStore) Delete(conversationID string) error {
	path, err := s.path(conversationID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", conversationID, err)
	}
	return nil
}

// List returns the ids of all persisted conversations.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Stats walks the directory, counting documents, turns, and bytes.
// Malformed documents count toward size but not toward turns.
func (s *FileStore) Stats() (Stats, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stat directory: %w", err)
	}

	stats := Stats{Backend: "file"}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.TotalConversations++
		stats.StorageSizeBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		stats.TotalTurns += len(rec.Turns)
	}
	return stats, nil
}
