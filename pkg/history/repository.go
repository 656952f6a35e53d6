package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dropdeck/dropdeck/pkg/types"
)

// TransferEvent is one terminal upload outcome, recorded for auditing
type TransferEvent struct {
	ID         int64            `json:"id"`
	FileID     string           `json:"file_id"`
	SessionID  string           `json:"session_id"`
	FileName   string           `json:"file_name"`
	SizeBytes  int64            `json:"size_bytes"`
	Status     types.FileStatus `json:"status"`
	RemoteURL  string           `json:"remote_url,omitempty"`
	Error      string           `json:"error,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Repository is an append-only log of terminal transfer events backed by
// SQLite. The default DSN is in-memory, so the log lives and dies with
// the process like the rest of the system's state.
type Repository struct {
	db *sql.DB
}

// InMemoryDSN keeps the event log in process memory.
const InMemoryDSN = "file::memory:?cache=shared"

// NewRepository opens (or creates) the event log at the given DSN
func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		dsn = InMemoryDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS transfer_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		status TEXT NOT NULL,
		remote_url TEXT,
		error TEXT,
		occurred_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transfer_events_session ON transfer_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_transfer_events_occurred ON transfer_events(occurred_at);
	`

	_, err := r.db.Exec(query)
	return err
}

// Record appends one terminal event to the log
func (r *Repository) Record(event TransferEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	query := `
	INSERT INTO transfer_events (
		file_id, session_id, file_name, size_bytes, status, remote_url, error, occurred_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		event.FileID,
		event.SessionID,
		event.FileName,
		event.SizeBytes,
		string(event.Status),
		event.RemoteURL,
		event.Error,
		event.OccurredAt,
	)
	return err
}

// List returns the most recent events, newest first
func (r *Repository) List(limit int) ([]TransferEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, file_id, session_id, file_name, size_bytes, status, remote_url, error, occurred_at
	FROM transfer_events
	ORDER BY occurred_at DESC, id DESC
	LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListBySession returns all events recorded for one session, oldest first
func (r *Repository) ListBySession(sessionID string) ([]TransferEvent, error) {
	query := `
	SELECT id, file_id, session_id, file_name, size_bytes, status, remote_url, error, occurred_at
	FROM transfer_events
	WHERE session_id = ?
	ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]TransferEvent, error) {
	var events []TransferEvent
	for rows.Next() {
		var event TransferEvent
		var status string
		if err := rows.Scan(
			&event.ID,
			&event.FileID,
			&event.SessionID,
			&event.FileName,
			&event.SizeBytes,
			&status,
			&event.RemoteURL,
			&event.Error,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Status = types.FileStatus(status)
		events = append(events, event)
	}
	return events, rows.Err()
}
