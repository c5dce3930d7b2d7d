package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"printlapse/internal/encoding"
	"printlapse/internal/logging"
)

// Store persists encode outcomes backed by SQLite. Session directories are
// pruned once videos are collected; the store keeps the record of what was
// produced.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Entry is one recorded encode attempt.
type Entry struct {
	ID         int64
	SessionID  string
	Frames     int
	VideoPath  string
	VideoBytes int64
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Succeeded reports whether the attempt produced a video.
func (e Entry) Succeeded() bool {
	return e.Error == ""
}

// Open initializes or connects to the history database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logger.With(logging.String(logging.FieldComponent, "history")),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordEncode implements encoding.Recorder. Persistence failures are logged
// and swallowed; history must never fail an encode.
func (s *Store) RecordEncode(rec encoding.Record) {
	if err := s.Add(context.Background(), rec); err != nil {
		s.logger.Warn("record encode outcome",
			logging.String(logging.FieldSession, rec.SessionID),
			logging.Error(err),
		)
	}
}

// Add inserts one encode outcome.
func (s *Store) Add(ctx context.Context, rec encoding.Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO encodes (
            session_id, frames, video_path, video_bytes,
            duration_ms, error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.Frames,
		rec.VideoPath,
		rec.VideoSize,
		rec.Duration.Milliseconds(),
		rec.Err,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert encode record: %w", err)
	}
	return nil
}

// Recent returns the newest encode records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, frames, video_path, video_bytes,
                duration_ms, error, created_at
           FROM encodes
          ORDER BY id DESC
          LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query encodes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodes: %w", err)
	}
	return entries, nil
}

// BySession returns every recorded attempt for one session, oldest first.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, frames, video_path, video_bytes,
                duration_ms, error, created_at
           FROM encodes
          WHERE session_id = ?
          ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session encodes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session encodes: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var durationMS int64
	var createdAt string
	if err := rows.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Frames,
		&entry.VideoPath,
		&entry.VideoBytes,
		&durationMS,
		&entry.Error,
		&createdAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan encode record: %w", err)
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}
