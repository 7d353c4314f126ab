// Package store keeps the short-lived pending-submission buffer: the last
// playback-URL payload that has not yet been accepted by the server.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"beatpass-guard/internal/api/beatpass"
)

// PendingKey is the single well-known slot the buffer lives under
const PendingKey = "beatpass_pending_submission"

//go:embed schema.sql
var schema string

// PendingSubmission is a buffered save_playback_url payload
type PendingSubmission struct {
	ID        string                          `json:"id"`
	CreatedAt time.Time                       `json:"created_at"`
	Request   beatpass.SavePlaybackURLRequest `json:"request"`
}

// PendingStore is a sqlite-backed single-slot buffer
type PendingStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the buffer database at path
func Open(path string) (*PendingStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pending store: %w", err)
	}
	// sqlite allows one writer; a single connection keeps the slot consistent
	db.SetMaxOpenConns(1)
	if err := initDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise pending store: %w", err)
	}
	return &PendingStore{db: db}, nil
}

func initDatabase(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		return err
	}
	_, err := db.Exec(schema)
	return err
}

// Put replaces the buffered submission
func (s *PendingStore) Put(ctx context.Context, req beatpass.SavePlaybackURLRequest) (*PendingSubmission, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pending submission: %w", err)
	}
	entry := &PendingSubmission{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Request:   req,
	}

	query := `
	INSERT INTO pending_submissions (storage_key, id, track_id, payload, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(storage_key) DO UPDATE SET
		id = excluded.id,
		track_id = excluded.track_id,
		payload = excluded.payload,
		created_at = excluded.created_at;`

	if _, err := s.db.ExecContext(ctx, query, PendingKey, entry.ID, req.TrackID, string(payload), entry.CreatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to store pending submission: %w", err)
	}
	return entry, nil
}

// Get returns the buffered submission, or nil when the buffer is empty
func (s *PendingStore) Get(ctx context.Context) (*PendingSubmission, error) {
	var (
		id        string
		payload   string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, payload, created_at FROM pending_submissions WHERE storage_key = ?", PendingKey,
	).Scan(&id, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending submission: %w", err)
	}

	entry := &PendingSubmission{ID: id, CreatedAt: time.Unix(0, createdAt).UTC()}
	if err := json.Unmarshal([]byte(payload), &entry.Request); err != nil {
		return nil, fmt.Errorf("failed to decode pending submission: %w", err)
	}
	return entry, nil
}

// Clear empties the buffer
func (s *PendingStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_submissions WHERE storage_key = ?", PendingKey); err != nil {
		return fmt.Errorf("failed to clear pending submission: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *PendingStore) Close() error {
	return s.db.Close()
}
