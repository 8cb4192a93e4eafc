package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Subject    string
	DatePrefix string
	Limit      int
}

// Count returns the number of persisted assignments.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assignments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}

// List returns persisted assignments oldest first (created_at, then seq).
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, f.Subject)
	}
	if f.DatePrefix != "" {
		where = append(where, "substr(event_date, 1, length(?)) = ?")
		args = append(args, f.DatePrefix, f.DatePrefix)
	}

	query := "SELECT seq, event_date, subject, created_at FROM assignments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec     Record
			created int64
		)
		if err := rows.Scan(&rec.Seq, &rec.EventDate, &rec.Subject, &created); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		rec.Created = time.Unix(0, created).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return records, nil
}
