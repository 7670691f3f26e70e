package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/setevik/sentinel/internal/event"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeSample(category event.Category, ts time.Time, data map[string]any) event.Sample {
	s := event.NewSample(category, data)
	s.Timestamp = ts
	return s
}

func TestInsertEventAndList(t *testing.T) {
	db := testDB(t)

	s := makeSample(event.CategoryProcess, time.Now(), map[string]any{
		"pid": float64(42), "name": "firefox", "cpu_percent": 12.5,
	})

	id, err := db.InsertEvent(s)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if id <= 0 {
		t.Fatalf("assigned id = %d, want > 0", id)
	}

	events, err := db.ListEvents(EventFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.Category != event.CategoryProcess {
		t.Errorf("Category = %q", got.Category)
	}
	if got.Data["name"] != "firefox" {
		t.Errorf("Data[name] = %v", got.Data["name"])
	}
	if got.Data["cpu_percent"] != 12.5 {
		t.Errorf("Data[cpu_percent] = %v", got.Data["cpu_percent"])
	}
}

func TestEventIDsStrictlyIncreasing(t *testing.T) {
	db := testDB(t)

	var last int64
	for i := 0; i < 10; i++ {
		id, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{"i": i}))
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Fatalf("id %d not strictly greater than previous %d", id, last)
		}
		last = id
	}
}

func TestEventIDsUniqueUnderConcurrentWriters(t *testing.T) {
	db := testDB(t)

	const writers = 8
	const perWriter = 20

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id, err := db.InsertEvent(makeSample(event.CategoryNetwork, time.Now(), map[string]any{"w": w}))
				if err != nil {
					t.Errorf("concurrent insert: %v", err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("id %d assigned twice", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(seen) != writers*perWriter {
		t.Errorf("got %d unique ids, want %d", len(seen), writers*perWriter)
	}
}

func TestListEventsNewestFirst(t *testing.T) {
	db := testDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s := makeSample(event.CategoryProcess, base.Add(time.Duration(i)*time.Minute), map[string]any{"seq": float64(i)})
		if _, err := db.InsertEvent(s); err != nil {
			t.Fatal(err)
		}
	}

	events, err := db.ListEvents(EventFilter{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (limit)", len(events))
	}
	if events[0].Data["seq"] != float64(4) {
		t.Errorf("newest event seq = %v, want 4", events[0].Data["seq"])
	}
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.After(events[i-1].CreatedAt) {
			t.Error("events not ordered newest-first")
		}
	}

	// Offset pages past the newest records.
	paged, err := db.ListEvents(EventFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 2 {
		t.Fatalf("got %d paged events, want 2", len(paged))
	}
	if paged[0].Data["seq"] != float64(2) {
		t.Errorf("paged first seq = %v, want 2", paged[0].Data["seq"])
	}
}

func TestListEventsCategoryFilter(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{})); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertEvent(makeSample(event.CategoryNetwork, time.Now(), map[string]any{})); err != nil {
		t.Fatal(err)
	}

	events, err := db.ListEvents(EventFilter{Category: event.CategoryNetwork, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d network events, want 1", len(events))
	}
}

func TestListEventsSinceFilter(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now().Add(-2*time.Hour), map[string]any{})); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{})); err != nil {
		t.Fatal(err)
	}

	events, err := db.ListEvents(EventFilter{Since: time.Now().Add(-time.Hour), Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events in window, want 1", len(events))
	}
}

func TestListEventsLimitClamped(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{})); err != nil {
		t.Fatal(err)
	}

	// A hostile limit must not pass through to the query unclamped.
	if got := clampLimit(100000); got != MaxListLimit {
		t.Errorf("clampLimit(100000) = %d, want %d", got, MaxListLimit)
	}
	if got := clampLimit(0); got != defaultListLimit {
		t.Errorf("clampLimit(0) = %d, want %d", got, defaultListLimit)
	}
	if got := clampLimit(7); got != 7 {
		t.Errorf("clampLimit(7) = %d, want 7", got)
	}
}

func TestInsertAlertAndList(t *testing.T) {
	db := testDB(t)

	a := event.NewAlert("Blocklisted address detected: 192.168.1.100", event.SevMedium, map[string]any{
		"rule":            "blocklist",
		"matched_address": "192.168.1.100",
	})

	id, err := db.InsertAlert(a)
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("assigned id = %d, want > 0", id)
	}

	alerts, err := db.ListAlerts(AlertFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	got := alerts[0]
	if got.Severity != event.SevMedium {
		t.Errorf("Severity = %q", got.Severity)
	}
	if got.Details["rule"] != "blocklist" {
		t.Errorf("Details[rule] = %v", got.Details["rule"])
	}
	if got.Acknowledged {
		t.Error("new alert should not be acknowledged")
	}
}

func TestListAlertsSeverityFilter(t *testing.T) {
	db := testDB(t)

	for _, sev := range []event.Severity{event.SevLow, event.SevHigh, event.SevHigh, event.SevCritical} {
		if _, err := db.InsertAlert(event.NewAlert("a", sev, map[string]any{})); err != nil {
			t.Fatal(err)
		}
	}

	alerts, err := db.ListAlerts(AlertFilter{Severity: event.SevHigh, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d high alerts, want 2", len(alerts))
	}
}

func TestListAlertsActiveWindow(t *testing.T) {
	db := testDB(t)

	old := event.NewAlert("old", event.SevMedium, map[string]any{})
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	if _, err := db.InsertAlert(old); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertAlert(event.NewAlert("fresh", event.SevMedium, map[string]any{})); err != nil {
		t.Fatal(err)
	}

	alerts, err := db.ListAlerts(AlertFilter{ActiveWithin: 24 * time.Hour, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d active alerts, want 1", len(alerts))
	}
	if alerts[0].Title != "fresh" {
		t.Errorf("active alert = %q", alerts[0].Title)
	}
}

func TestRecentByCategory(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{"pid": float64(i)})); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertEvent(makeSample(event.CategoryNetwork, time.Now(), map[string]any{})); err != nil {
		t.Fatal(err)
	}

	events, err := db.RecentByCategory(event.CategoryProcess, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Category != event.CategoryProcess {
			t.Errorf("category = %q", ev.Category)
		}
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := db.InsertEvent(makeSample(event.CategoryProcess, now, map[string]any{})); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertEvent(makeSample(event.CategoryNetwork, now, map[string]any{})); err != nil {
		t.Fatal(err)
	}
	// Outside the window.
	if _, err := db.InsertEvent(makeSample(event.CategoryNetwork, now.Add(-2*time.Hour), map[string]any{})); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertAlert(event.NewAlert("a", event.SevHigh, map[string]any{})); err != nil {
		t.Fatal(err)
	}

	stats, err := db.Stats(time.Hour)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", stats.TotalEvents)
	}
	if stats.EventsByCategory["process"] != 3 {
		t.Errorf("process count = %d, want 3", stats.EventsByCategory["process"])
	}
	if stats.EventsByCategory["network"] != 1 {
		t.Errorf("network count = %d, want 1", stats.EventsByCategory["network"])
	}
	if stats.TotalAlerts != 1 || stats.AlertsBySeverity["high"] != 1 {
		t.Errorf("alert stats = %+v", stats.AlertsBySeverity)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	db := testDB(t)

	stats, err := db.Stats(24 * time.Hour)
	if err != nil {
		t.Fatalf("Stats over empty window should not fail: %v", err)
	}
	if stats.TotalEvents != 0 || stats.TotalAlerts != 0 {
		t.Errorf("empty window totals = %d/%d, want 0/0", stats.TotalEvents, stats.TotalAlerts)
	}
	if stats.EventsByCategory == nil || stats.AlertsBySeverity == nil {
		t.Error("distributions should be empty maps, not nil")
	}
}

func TestCounts(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 4; i++ {
		if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{})); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertAlert(event.NewAlert("a", event.SevLow, map[string]any{})); err != nil {
		t.Fatal(err)
	}

	if n, err := db.CountEvents(); err != nil || n != 4 {
		t.Errorf("CountEvents = %d, %v; want 4", n, err)
	}
	if n, err := db.CountAlerts(); err != nil || n != 1 {
		t.Errorf("CountAlerts = %d, %v; want 1", n, err)
	}
}

func TestPurge(t *testing.T) {
	db := testDB(t)

	old := makeSample(event.CategoryProcess, time.Now().Add(-100*24*time.Hour), map[string]any{})
	if _, err := db.InsertEvent(old); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertEvent(makeSample(event.CategoryProcess, time.Now(), map[string]any{})); err != nil {
		t.Fatal(err)
	}
	oldAlert := event.NewAlert("old", event.SevLow, map[string]any{})
	oldAlert.CreatedAt = time.Now().Add(-100 * 24 * time.Hour)
	if _, err := db.InsertAlert(oldAlert); err != nil {
		t.Fatal(err)
	}

	purged, err := db.Purge(90 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 2 {
		t.Errorf("purged %d records, want 2", purged)
	}

	if n, _ := db.CountEvents(); n != 1 {
		t.Errorf("%d events remain, want 1", n)
	}
	if n, _ := db.CountAlerts(); n != 0 {
		t.Errorf("%d alerts remain, want 0", n)
	}
}

func TestIDsIndependentPerRelation(t *testing.T) {
	db := testDB(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.InsertAlert(event.NewAlert(fmt.Sprintf("a%d", i), event.SevLow, map[string]any{}))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("alert ids not strictly increasing: %v", ids)
		}
	}
}
