package database

import (
	"context"
	"time"
)

// JournalEntry is one confirmed reservation as recorded locally.
type JournalEntry struct {
	ID        int64
	RecordID  string
	Email     string
	Pickup    string
	Items     string // "#12 Bohrmaschine, #40 Leiter"
	ItemCount int
	Comments  string
	CreatedAt time.Time
}

// RecordReservation appends a confirmed reservation to the journal.
// Recording the same record id twice is a no-op.
func (db *DB) RecordReservation(ctx context.Context, e *JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reservations (record_id, email, pickup, items, item_count, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RecordID, e.Email, e.Pickup, e.Items, e.ItemCount, e.Comments, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListReservations returns journal entries created in [from, to), newest first.
// Zero bounds are open.
func (db *DB) ListReservations(ctx context.Context, from, to time.Time) ([]JournalEntry, error) {
	query := `SELECT id, record_id, email, pickup, items, item_count, COALESCE(comments, ''), created_at
		FROM reservations WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND created_at < ?"
		args = append(args, to)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Email, &e.Pickup, &e.Items, &e.ItemCount, &e.Comments, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountReservations returns the number of journal entries.
func (db *DB) CountReservations(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations").Scan(&n)
	return n, err
}

// PurgeReservations deletes journal entries created before t.
func (db *DB) PurgeReservations(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE created_at < ?", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPickups returns the entries whose pickup falls on the calendar day of
// day, earliest pickup first.
func (db *DB) ListPickups(ctx context.Context, day time.Time) ([]JournalEntry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	const layout = "2006-01-02 15:04:05"
	rows, err := db.QueryContext(ctx,
		`SELECT id, record_id, email, pickup, items, item_count, COALESCE(comments, ''), created_at
		FROM reservations WHERE pickup >= ? AND pickup < ? ORDER BY pickup, id`,
		start.Format(layout), start.AddDate(0, 0, 1).Format(layout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Email, &e.Pickup, &e.Items, &e.ItemCount, &e.Comments, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
