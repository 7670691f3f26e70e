package store

import (
	"time"
)

// Stats summarizes stored records over a trailing time window, for
// dashboards and the /stats endpoint.
type Stats struct {
	Window           time.Duration  `json:"-"`
	TotalEvents      int            `json:"total_events"`
	TotalAlerts      int            `json:"total_alerts"`
	EventsByCategory map[string]int `json:"event_distribution"`
	AlertsBySeverity map[string]int `json:"alert_distribution"`
}

// Stats returns counts grouped by event category and alert severity over
// the trailing window. A window with no records yields zero counts and
// empty (non-nil) distributions.
func (d *DB) Stats(window time.Duration) (Stats, error) {
	cutoff := time.Now().Add(-window).UTC().Format(time.RFC3339Nano)

	stats := Stats{
		Window:           window,
		EventsByCategory: make(map[string]int),
		AlertsBySeverity: make(map[string]int),
	}

	rows, err := d.db.Query(
		`SELECT event_type, COUNT(*) FROM events WHERE created_at >= ? GROUP BY event_type`,
		cutoff,
	)
	if err != nil {
		return stats, storageErr("aggregating events", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return stats, storageErr("scanning event aggregate", err)
		}
		stats.EventsByCategory[category] = count
		stats.TotalEvents += count
	}
	if err := rows.Err(); err != nil {
		return stats, storageErr("reading event aggregates", err)
	}

	alertRows, err := d.db.Query(
		`SELECT severity, COUNT(*) FROM alerts WHERE created_at >= ? GROUP BY severity`,
		cutoff,
	)
	if err != nil {
		return stats, storageErr("aggregating alerts", err)
	}
	defer alertRows.Close()

	for alertRows.Next() {
		var severity string
		var count int
		if err := alertRows.Scan(&severity, &count); err != nil {
			return stats, storageErr("scanning alert aggregate", err)
		}
		stats.AlertsBySeverity[severity] = count
		stats.TotalAlerts += count
	}
	if err := alertRows.Err(); err != nil {
		return stats, storageErr("reading alert aggregates", err)
	}

	return stats, nil
}
