// ABOUTME: SQLite-backed outbox for lead submissions using modernc.org/sqlite
// ABOUTME: Queues failed webhook deliveries with automatic schema creation

package spool

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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/formgate/formgate/internal/lead"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("spool entry not found")

// Entry is one queued submission.
type Entry struct {
	ID        string
	Lead      lead.Lead
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// Store persists the submission outbox in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the spool database at the given path. The
// schema is created automatically; parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "spool")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening spool database: %w", err)
	}

	// WAL keeps the web handlers and the retry worker from blocking each other
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS outbox (
			id           TEXT PRIMARY KEY,
			payload      TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			last_error   TEXT,
			delivered_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_pending
			ON outbox(created_at) WHERE delivered_at IS NULL;
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating spool schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue queues a lead for later delivery and returns the entry ID.
func (s *Store) Enqueue(ctx context.Context, l lead.Lead) (string, error) {
	payload, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("encoding lead: %w", err)
	}

	id := uuid.New().String()
	query := `INSERT INTO outbox (id, payload, created_at) VALUES (?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, id, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("inserting spool entry: %w", err)
	}

	s.logger.Info("lead spooled for retry", "id", id, "email", l.Email)
	return id, nil
}

// Pending returns up to limit undelivered entries with fewer than maxAttempts
// delivery attempts, oldest first.
func (s *Store) Pending(ctx context.Context, limit, maxAttempts int) ([]*Entry, error) {
	query := `
		SELECT id, payload, created_at, attempts, last_error
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payload, createdAtStr string
		var lastError sql.NullString

		if err := rows.Scan(&entry.ID, &payload, &createdAtStr, &entry.Attempts, &lastError); err != nil {
			return nil, fmt.Errorf("scanning spool entry: %w", err)
		}

		if err := json.Unmarshal([]byte(payload), &entry.Lead); err != nil {
			return nil, fmt.Errorf("decoding spool payload %s: %w", entry.ID, err)
		}
		entry.LastError = lastError.String
		entry.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spool entries: %w", err)
	}

	return entries, nil
}

// PendingCount returns the number of undelivered entries.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox WHERE delivered_at IS NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending entries: %w", err)
	}
	return count, nil
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, "UPDATE outbox SET delivered_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("marking entry delivered: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("spool entry delivered", "id", id)
	return nil
}

// MarkFailed records a failed delivery attempt with its error message.
func (s *Store) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, errorMessage, id)
	if err != nil {
		return fmt.Errorf("marking entry failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneDelivered removes delivered entries older than the given age.
func (s *Store) PruneDelivered(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE delivered_at IS NOT NULL AND delivered_at <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning delivered entries: %w", err)
	}

	pruned, _ := result.RowsAffected()
	if pruned > 0 {
		s.logger.Debug("pruned delivered spool entries", "count", pruned)
	}
	return pruned, nil
}
