package store

import (
	"encoding/json"
	"time"

	"github.com/setevik/sentinel/internal/event"
)

// AlertFilter controls which alerts ListAlerts returns.
type AlertFilter struct {
	Severity event.Severity
	// ActiveWithin, when positive, restricts results to alerts created
	// within that trailing window.
	ActiveWithin time.Duration
	Limit        int
	Offset       int
}

// InsertAlert appends an alert and returns its store-assigned identity.
func (d *DB) InsertAlert(a event.Alert) (int64, error) {
	details, err := json.Marshal(a.Details)
	if err != nil {
		details = []byte("{}")
	}

	res, err := d.db.Exec(
		`INSERT INTO alerts (title, severity, details, acknowledged, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Title,
		string(a.Severity),
		string(details),
		a.Acknowledged,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storageErr("inserting alert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("reading alert id", err)
	}
	return id, nil
}

// ListAlerts returns alerts matching the filter, newest first. The limit
// is clamped to MaxListLimit.
func (d *DB) ListAlerts(f AlertFilter) ([]event.Alert, error) {
	query := `SELECT id, title, severity, details, acknowledged, created_at FROM alerts WHERE 1=1`
	var args []any

	if f.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(f.Severity))
	}
	if f.ActiveWithin > 0 {
		query += " AND created_at >= ?"
		args = append(args, time.Now().Add(-f.ActiveWithin).UTC().Format(time.RFC3339Nano))
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("querying alerts", err)
	}
	defer rows.Close()

	var alerts []event.Alert
	for rows.Next() {
		var a event.Alert
		var severity, details, tsStr string

		if err := rows.Scan(&a.ID, &a.Title, &severity, &details, &a.Acknowledged, &tsStr); err != nil {
			return nil, storageErr("scanning alert row", err)
		}

		a.Severity = event.Severity(severity)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)
		a.Details = make(map[string]any)
		_ = json.Unmarshal([]byte(details), &a.Details)

		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading alert rows", err)
	}
	return alerts, nil
}

// CountAlerts returns the total number of stored alerts.
func (d *DB) CountAlerts() (int64, error) {
	var count int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&count); err != nil {
		return 0, storageErr("counting alerts", err)
	}
	return count, nil
}
