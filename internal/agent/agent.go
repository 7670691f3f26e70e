// Package agent wires collection, rule evaluation, persistence, and
// notification into the single pass that both the scheduler and on-demand
// scans run.
package agent

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/setevik/sentinel/internal/collector"
	"github.com/setevik/sentinel/internal/event"
	"github.com/setevik/sentinel/internal/metrics"
	"github.com/setevik/sentinel/internal/notify"
	"github.com/setevik/sentinel/internal/rules"
	"github.com/setevik/sentinel/internal/store"
)

// Agent runs the collect → evaluate → persist pipeline.
type Agent struct {
	service  *collector.Service
	engine   *rules.Engine
	db       *store.DB
	notifier *notify.Notifier
}

// New assembles an agent. The notifier may be nil when push notifications
// are not configured.
func New(service *collector.Service, engine *rules.Engine, db *store.DB, notifier *notify.Notifier) *Agent {
	return &Agent{
		service:  service,
		engine:   engine,
		db:       db,
		notifier: notifier,
	}
}

// ScanResult summarizes one collect+evaluate+persist pass. ScanID
// correlates the pass across logs, alert details, and API responses.
type ScanResult struct {
	ScanID          string   `json:"scan_id"`
	EventsCollected int      `json:"events_collected"`
	EventsStored    int      `json:"events_stored"`
	AlertsGenerated int      `json:"alerts_generated"`
	AlertsStored    int      `json:"alerts_stored"`
	EventTypes      []string `json:"event_types"`
}

// RunOnce executes one full pass. Collector failures have already been
// absorbed by the collector service; only storage failures are returned,
// and then the result still reports whatever was persisted before the
// failure. trigger labels the pass for metrics ("scheduled" or "manual").
func (a *Agent) RunOnce(ctx context.Context, trigger string) (ScanResult, error) {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	result := ScanResult{ScanID: uuid.NewString()}

	samples := a.service.CollectAll(ctx)
	result.EventsCollected = len(samples)
	result.EventTypes = categories(samples)

	alerts := a.engine.Evaluate(samples)
	result.AlertsGenerated = len(alerts)

	stored, err := a.db.InsertEvents(samples)
	result.EventsStored = stored
	metrics.EventsStored.Add(float64(stored))
	if err != nil {
		return result, err
	}

	for _, alert := range alerts {
		alert.Details["scan_id"] = result.ScanID
		if _, err := a.db.InsertAlert(alert); err != nil {
			return result, err
		}
		result.AlertsStored++
		metrics.AlertsGenerated.WithLabelValues(string(alert.Severity)).Inc()

		if a.notifier != nil {
			if err := a.notifier.Notify(ctx, alert); err != nil {
				slog.Error("failed to send notification", "error", err, "title", alert.Title)
			}
		}
	}

	metrics.TicksTotal.WithLabelValues(trigger).Inc()
	slog.Info("scan complete",
		"scan_id", result.ScanID,
		"trigger", trigger,
		"events", result.EventsStored,
		"alerts", result.AlertsStored,
		"duration", time.Since(start).Truncate(time.Millisecond),
	)

	return result, nil
}

// Snapshot is a live view of current system state, produced without
// persisting anything. The /monitor stream and the status subcommand use
// it to re-sample outside the scheduler's cadence.
type Snapshot struct {
	Timestamp          time.Time                   `json:"timestamp"`
	EventsCount        int                         `json:"events_count"`
	AlertsCount        int                         `json:"alerts_count"`
	Collectors         map[string]collector.Status `json:"system_status"`
	TopProcesses       []map[string]any            `json:"top_processes"`
	NetworkConnections int                         `json:"network_connections"`
}

// Snapshot collects and evaluates once without writing to the store.
func (a *Agent) Snapshot(ctx context.Context) Snapshot {
	samples := a.service.CollectAll(ctx)
	alerts := a.engine.Evaluate(samples)

	snap := Snapshot{
		Timestamp:   time.Now().UTC(),
		EventsCount: len(samples),
		AlertsCount: len(alerts),
		Collectors:  a.service.Status(),
	}

	var procs []map[string]any
	for _, s := range samples {
		switch s.Category {
		case event.CategoryProcess:
			procs = append(procs, s.Data)
		case event.CategoryNetwork:
			snap.NetworkConnections++
		}
	}

	sort.SliceStable(procs, func(i, j int) bool {
		return asFloat(procs[i]["cpu_percent"]) > asFloat(procs[j]["cpu_percent"])
	})
	if len(procs) > 5 {
		procs = procs[:5]
	}
	snap.TopProcesses = procs

	return snap
}

// Service exposes the underlying collector service for status reporting.
func (a *Agent) Service() *collector.Service { return a.service }

// Engine exposes the rule engine for the /rules endpoints.
func (a *Agent) Engine() *rules.Engine { return a.engine }

// Store exposes the persistence layer for query endpoints.
func (a *Agent) Store() *store.DB { return a.db }

func categories(samples []event.Sample) []string {
	seen := make(map[string]bool)
	for _, s := range samples {
		seen[string(s.Category)] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
