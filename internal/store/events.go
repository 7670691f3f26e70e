package store

import (
	"encoding/json"
	"time"

	"github.com/setevik/sentinel/internal/event"
)

// EventFilter controls which events ListEvents returns.
type EventFilter struct {
	Category event.Category
	// Since, when set, restricts results to events created at or after it.
	Since  time.Time
	Limit  int
	Offset int
}

// InsertEvent appends a sample as an event and returns the identity the
// store assigned to it.
func (d *DB) InsertEvent(s event.Sample) (int64, error) {
	data, err := json.Marshal(s.Data)
	if err != nil {
		data = []byte("{}")
	}

	res, err := d.db.Exec(
		`INSERT INTO events (event_type, data, created_at) VALUES (?, ?, ?)`,
		string(s.Category),
		string(data),
		s.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storageErr("inserting event", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("reading event id", err)
	}
	return id, nil
}

// InsertEvents appends a batch of samples and returns how many were stored.
// The first storage failure aborts the batch.
func (d *DB) InsertEvents(samples []event.Sample) (int, error) {
	for i, s := range samples {
		if _, err := d.InsertEvent(s); err != nil {
			return i, err
		}
	}
	return len(samples), nil
}

// ListEvents returns events matching the filter, newest first. The limit
// is clamped to MaxListLimit.
func (d *DB) ListEvents(f EventFilter) ([]event.Event, error) {
	query := `SELECT id, event_type, data, created_at FROM events WHERE 1=1`
	var args []any

	if f.Category != "" {
		query += " AND event_type = ?"
		args = append(args, string(f.Category))
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("querying events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var category, data, tsStr string

		if err := rows.Scan(&ev.ID, &category, &data, &tsStr); err != nil {
			return nil, storageErr("scanning event row", err)
		}

		ev.Category = event.Category(category)
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)
		ev.Data = make(map[string]any)
		_ = json.Unmarshal([]byte(data), &ev.Data)

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading event rows", err)
	}
	return events, nil
}

// RecentByCategory returns up to n of the newest events in one category,
// for the raw-sample views. n is capped well above the list-page bound
// because a single collection pass can produce hundreds of samples.
func (d *DB) RecentByCategory(category event.Category, n int) ([]event.Event, error) {
	if n <= 0 || n > rawSampleCap {
		n = rawSampleCap
	}

	rows, err := d.db.Query(
		`SELECT id, event_type, data, created_at FROM events
		WHERE event_type = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(category), n,
	)
	if err != nil {
		return nil, storageErr("querying recent events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var cat, data, tsStr string
		if err := rows.Scan(&ev.ID, &cat, &data, &tsStr); err != nil {
			return nil, storageErr("scanning event row", err)
		}
		ev.Category = event.Category(cat)
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)
		ev.Data = make(map[string]any)
		_ = json.Unmarshal([]byte(data), &ev.Data)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading event rows", err)
	}
	return events, nil
}

// CountEvents returns the total number of stored events.
func (d *DB) CountEvents() (int64, error) {
	var count int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, storageErr("counting events", err)
	}
	return count, nil
}
