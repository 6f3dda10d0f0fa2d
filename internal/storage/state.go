package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vidyasagar/tabtrail/internal/trail"
)

// TrailStore persists the activation trail in SQLite. The records and the
// cursor live in one row and are written by a single upsert, so a reader can
// never observe one updated without the other.
type TrailStore struct {
	db *DB
}

// NewTrailStore creates a trail store over the given database.
func NewTrailStore(db *DB) *TrailStore {
	return &TrailStore{db: db}
}

// Load fetches the persisted trail. On first run there is no row yet and the
// trail is empty with cursor -1.
func (s *TrailStore) Load(ctx context.Context) ([]trail.TabRecord, int, error) {
	var blob string
	var cursor int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT records, current_index FROM trail_state WHERE id = 1`,
	).Scan(&blob, &cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, -1, nil
	}
	if err != nil {
		return nil, -1, fmt.Errorf("reading trail state: %w", err)
	}

	var records []trail.TabRecord
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		return nil, -1, fmt.Errorf("decoding trail records: %w", err)
	}
	return records, cursor, nil
}

// Save writes the trail atomically.
func (s *TrailStore) Save(ctx context.Context, records []trail.TabRecord, currentIndex int) error {
	if records == nil {
		records = []trail.TabRecord{}
	}
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding trail records: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO trail_state (id, records, current_index, updated_at)
		VALUES (1, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			records = excluded.records,
			current_index = excluded.current_index,
			updated_at = excluded.updated_at`,
		string(blob), currentIndex,
	)
	if err != nil {
		return fmt.Errorf("writing trail state: %w", err)
	}
	return nil
}
