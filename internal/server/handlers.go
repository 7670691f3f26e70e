package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/setevik/sentinel/internal/event"
	"github.com/setevik/sentinel/internal/store"
)

const activeAlertWindow = 24 * time.Hour

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sentinel",
		"version": s.version,
		"endpoints": map[string]string{
			"health":    "/health",
			"status":    "/status",
			"events":    "/events",
			"alerts":    "/alerts",
			"scan":      "/scan",
			"monitor":   "/monitor",
			"rules":     "/rules",
			"stats":     "/stats",
			"processes": "/processes",
			"network":   "/network",
			"metrics":   "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	dbStatus := "ok"
	if _, err := s.agent.Store().CountEvents(); err != nil {
		dbStatus = "error"
		status = "degraded"
	}

	collectors := make(map[string]string)
	for name, st := range s.agent.Service().Status() {
		switch {
		case st.Degraded:
			collectors[name] = "degraded"
		case st.Working:
			collectors[name] = "ok"
		default:
			collectors[name] = "error"
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]any{
			"database":   dbStatus,
			"collectors": collectors,
			"rules":      "ok",
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	events, err := s.agent.Store().CountEvents()
	if err != nil {
		fail(w, err)
		return
	}
	alerts, err := s.agent.Store().CountAlerts()
	if err != nil {
		fail(w, err)
		return
	}
	recent, err := s.agent.Store().Stats(24 * time.Hour)
	if err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        s.version,
		"uptime_seconds": int64(s.uptime().Seconds()),
		"scheduler":      s.schedulerState(),
		"collectors":     s.agent.Service().Status(),
		"rules":          s.agent.Engine().Summary(),
		"storage": map[string]int64{
			"events": events,
			"alerts": alerts,
		},
		"recent_24h": map[string]int{
			"events": recent.TotalEvents,
			"alerts": recent.TotalAlerts,
		},
		"configuration": map[string]any{
			"collection_interval": s.cfg.Monitor.Interval.String(),
			"stream_interval":     s.cfg.Monitor.StreamInterval.String(),
			"db_path":             s.cfg.DBPath(),
		},
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, store.MaxListLimit)
	if err != nil {
		fail(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		fail(w, err)
		return
	}

	category := event.Category(r.URL.Query().Get("event_type"))
	if category != "" && category != event.CategoryProcess && category != event.CategoryNetwork {
		fail(w, badParam("event_type", "must be process or network"))
		return
	}

	events, err := s.agent.Store().ListEvents(store.EventFilter{
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		fail(w, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"limit":  limit,
		"offset": offset,
		"events": events,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, store.MaxListLimit)
	if err != nil {
		fail(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		fail(w, err)
		return
	}
	active, err := boolParam(r, "active", true)
	if err != nil {
		fail(w, err)
		return
	}

	severity := event.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		fail(w, badParam("severity", "must be low, medium, high, or critical"))
		return
	}

	filter := store.AlertFilter{
		Severity: severity,
		Limit:    limit,
		Offset:   offset,
	}
	if active {
		filter.ActiveWithin = activeAlertWindow
	}

	alerts, err := s.agent.Store().ListAlerts(filter)
	if err != nil {
		fail(w, err)
		return
	}
	if alerts == nil {
		alerts = []event.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"active": active,
		"alerts": alerts,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.agent.RunOnce(r.Context(), "manual")
	if err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "completed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"results":   result,
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.Engine().Summary())
}

func (s *Server) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Engine().Reload(); err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"rules":     s.agent.Engine().Summary(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", 24, 1, 168)
	if err != nil {
		fail(w, err)
		return
	}

	stats, err := s.agent.Store().Stats(time.Duration(hours) * time.Hour)
	if err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period_hours": hours,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"statistics": map[string]any{
			"total_events":       stats.TotalEvents,
			"total_alerts":       stats.TotalAlerts,
			"event_distribution": stats.EventsByCategory,
			"alert_distribution": stats.AlertsBySeverity,
			"events_per_hour":    float64(stats.TotalEvents) / float64(hours),
			"alerts_per_hour":    float64(stats.TotalAlerts) / float64(hours),
		},
	})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, store.MaxListLimit)
	if err != nil {
		fail(w, err)
		return
	}

	sortBy := r.URL.Query().Get("sort_by")
	if sortBy == "" {
		sortBy = "cpu"
	}
	key, ok := processSortKeys[sortBy]
	if !ok {
		fail(w, badParam("sort_by", "must be cpu, memory, pid, or name"))
		return
	}

	// Pull the most recent pass worth of samples, then rank. A single pass
	// can hold more processes than one list page.
	events, err := s.agent.Store().RecentByCategory(event.CategoryProcess, 0)
	if err != nil {
		fail(w, err)
		return
	}

	procs := latestSamples(events)
	sortProcesses(procs, sortBy, key)
	if len(procs) > limit {
		procs = procs[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(procs),
		"sort_by":   sortBy,
		"processes": procs,
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, store.MaxListLimit)
	if err != nil {
		fail(w, err)
		return
	}

	events, err := s.agent.Store().RecentByCategory(event.CategoryNetwork, 0)
	if err != nil {
		fail(w, err)
		return
	}

	conns := latestSamples(events)
	if len(conns) > limit {
		conns = conns[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(conns),
		"connections": conns,
	})
}

// processSortKeys maps the sort_by parameter to the payload key it orders by.
var processSortKeys = map[string]string{
	"cpu":    "cpu_percent",
	"memory": "memory_percent",
	"pid":    "pid",
	"name":   "name",
}

// latestSamples keeps only the newest collection pass: events share a
// timestamp when they come from the same pass, so everything older than
// the first row is a previous pass.
func latestSamples(events []event.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	if len(events) == 0 {
		return out
	}

	newest := events[0].CreatedAt
	for _, ev := range events {
		if !ev.CreatedAt.Equal(newest) {
			break
		}
		out = append(out, ev.Data)
	}
	return out
}

// sortProcesses orders by the chosen key: usage metrics highest first,
// pid and name lowest first.
func sortProcesses(procs []map[string]any, sortBy, key string) {
	sort.SliceStable(procs, func(i, j int) bool {
		switch sortBy {
		case "name":
			a, _ := procs[i][key].(string)
			b, _ := procs[j][key].(string)
			return a < b
		case "pid":
			return numeric(procs[i][key]) < numeric(procs[j][key])
		default:
			return numeric(procs[i][key]) > numeric(procs[j][key])
		}
	})
}

func numeric(v any) float64 {
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
