package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// defaultBusyTimeout is the SQLite busy timeout in milliseconds.
const defaultBusyTimeout = 5000

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps conversation records in a single SQLite database.
// Each record is one row; the turn list is stored as a JSON column and
// replaced whole on save, so writes are atomic per row.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at the
// given path. The database uses WAL mode, a 5 s busy timeout, and a
// single connection (SQLite serialises writes). The schema is migrated
// automatically. Close the store when done.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "sqlitestore")}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts the full record in one statement.
func (s *SQLiteStore) Save(rec Record) error {
	if rec.ConversationID == "" {
		return fmt.Errorf("store: invalid conversation id %q", rec.ConversationID)
	}

	turnsJSON, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("store: marshal turns: %w", err)
	}

	_, err = s.db.ExecContext(context.TODO(), `
		INSERT OR REPLACE INTO conversations (conversation_id, created_at, updated_at, turn_count, turns)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ConversationID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.TurnCount,
		string(turnsJSON),
	)
	if err != nil {
		return fmt.Errorf("store: save conversation: %w", err)
	}
	return nil
}

// Load reads a record by id. Rows with undecodable columns are logged
// and reported as ErrNotFound.
func (s *SQLiteStore) Load(conversationID string) (Record, error) {
	var (
		rec       Record
		createdAt string
		updatedAt string
		turnsJSON string
	)

	err := s.db.QueryRowContext(context.TODO(), `
		SELECT conversation_id, created_at, updated_at, turn_count, turns
		FROM conversations WHERE conversation_id = ?`,
		conversationID,
	).Scan(&rec.ConversationID, &createdAt, &updatedAt, &rec.TurnCount, &turnsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: load conversation: %w", err)
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		s.logger.Warn("conversation record is malformed, treating as absent",
			"conversation_id", conversationID, "error", err)
		return Record{}, ErrNotFound
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		s.logger.Warn("conversation record is malformed, treating as absent",
			"conversation_id", conversationID, "error", err)
		return Record{}, ErrNotFound
	}
	if err := json.Unmarshal([]byte(turnsJSON), &rec.Turns); err != nil {
		s.logger.Warn("conversation record is malformed, treating as absent",
			"conversation_id", conversationID, "error", err)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent record is a no-op.
func (s *SQLiteStore) Delete(conversationID string) error {
	if _, err := s.db.ExecContext(context.TODO(),
		"DELETE FROM conversations WHERE conversation_id = ?", conversationID,
	); err != nil {
		return fmt.Errorf("store: delete conversation: %w", err)
	}
	return nil
}

// List returns all persisted conversation ids, most recently updated first.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.QueryContext(context.TODO(),
		"SELECT conversation_id FROM conversations ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return ids, nil
}

// Stats reports row counts and the database size in pages.
func (s *SQLiteStore) Stats() (Stats, error) {
	ctx := context.TODO()
	stats := Stats{Backend: "sqlite"}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(turn_count), 0) FROM conversations",
	).Scan(&stats.TotalConversations, &stats.TotalTurns)
	if err != nil {
		return Stats{}, fmt.Errorf("store: count conversations: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return Stats{}, fmt.Errorf("store: read page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return Stats{}, fmt.Errorf("store: read page_size: %w", err)
	}
	stats.StorageSizeBytes = pageCount * pageSize

	return stats, nil
}
