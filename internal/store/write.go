package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is one persisted assignment.
type Record struct {
	Seq       int64
	EventDate string
	Subject   string
	Created   time.Time
}

// Unit is a transactional unit of work. Obtain one through Store.WithUnit.
type Unit struct {
	tx *sql.Tx
}

// Occupied returns the disambiguated timestamps already assigned to subject
// within the given minute bucket.
//
// Matching is on the exact "<date>:" prefix so "10:1" never collides with "10:15".
// substr and length both count characters, so multibyte buckets match too.
func (u *Unit) Occupied(ctx context.Context, date, subject string) (map[string]bool, error) {
	prefix := date + ":"
	rows, err := u.tx.QueryContext(ctx, `
		SELECT event_date
		FROM assignments
		WHERE subject = ? AND substr(event_date, 1, length(?)) = ?
	`, subject, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("query occupied: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var eventDate string
		if err := rows.Scan(&eventDate); err != nil {
			return nil, fmt.Errorf("scan occupied: %w", err)
		}
		taken[eventDate] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occupied: %w", err)
	}

	return taken, nil
}

// Insert persists a new assignment and returns its seq.
// The UNIQUE(event_date, subject) constraint rejects duplicates with an error;
// unlike an idempotent log, a duplicate here means the caller picked a taken offset.
func (u *Unit) Insert(ctx context.Context, rec Record) (int64, error) {
	result, err := u.tx.ExecContext(ctx, `
		INSERT INTO assignments (event_date, subject, created_at)
		VALUES (?, ?, ?)
	`, rec.EventDate, rec.Subject, rec.Created.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert assignment: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert assignment: last insert id: %w", err)
	}
	return seq, nil
}

// Count returns the number of persisted assignments as seen by this unit.
func (u *Unit) Count(ctx context.Context) (int, error) {
	var n int
	if err := u.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM assignments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}

// Evict deletes every assignment except the keep most recently created ones.
// Ties on created_at are broken by seq, so the later insertion survives.
// Returns the number of deleted rows.
func (u *Unit) Evict(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := u.tx.ExecContext(ctx, `
		DELETE FROM assignments
		WHERE seq NOT IN (
			SELECT seq FROM assignments
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("evict assignments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("evict assignments: rows affected: %w", err)
	}
	return n, nil
}
