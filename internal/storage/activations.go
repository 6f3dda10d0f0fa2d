package storage

import (
	"fmt"
	"time"
)

// Activation is one row of the append-only activation log. Unlike the trail,
// the log is an audit list: it is never navigated and never rewritten.
type Activation struct {
	TabID       int
	Title       string
	ActivatedAt time.Time
}

// ActivationLog records every genuine tab activation.
type ActivationLog struct {
	db      *DB
	maxRows int
}

// NewActivationLog creates the log over the given database.
func NewActivationLog(db *DB) *ActivationLog {
	return &ActivationLog{db: db, maxRows: 5000}
}

// Append records an activation and prunes the oldest rows past the cap.
func (l *ActivationLog) Append(tabID int, title string) error {
	if _, err := l.db.conn.Exec(
		`INSERT INTO activations (tab_id, title) VALUES (?, ?)`, tabID, title,
	); err != nil {
		return fmt.Errorf("appending activation: %w", err)
	}
	_, err := l.db.conn.Exec(`
		DELETE FROM activations WHERE id NOT IN (
			SELECT id FROM activations ORDER BY id DESC LIMIT ?
		)`, l.maxRows)
	if err != nil {
		return fmt.Errorf("pruning activation log: %w", err)
	}
	return nil
}

// Recent returns the newest n activations, newest first.
func (l *ActivationLog) Recent(n int) ([]Activation, error) {
	rows, err := l.db.conn.Query(`
		SELECT tab_id, title, activated_at FROM activations
		ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying activations: %w", err)
	}
	defer rows.Close()

	var out []Activation
	for rows.Next() {
		var a Activation
		var at string
		if err := rows.Scan(&a.TabID, &a.Title, &at); err != nil {
			return nil, fmt.Errorf("scanning activation: %w", err)
		}
		a.ActivatedAt, _ = time.Parse("2006-01-02 15:04:05", at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Clear empties the log.
func (l *ActivationLog) Clear() error {
	_, err := l.db.conn.Exec(`DELETE FROM activations`)
	return err
}
