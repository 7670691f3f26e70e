package rules

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/setevik/sentinel/internal/event"
)

// Engine evaluates samples against the active rule snapshot. Evaluation is
// deterministic: identical samples against an identical snapshot always
// produce the same alerts in the same order (sample order, then rule
// order: blocklist, suspicious port, CPU, memory).
type Engine struct {
	path     string
	snapshot atomic.Pointer[Document]
	loadedAt atomic.Pointer[time.Time]
}

// NewEngine loads the rule document at path (defaults if missing) and
// returns an engine using it as the active snapshot.
func NewEngine(path string) (*Engine, error) {
	e := &Engine{path: path}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the rule document from disk and atomically swaps it in.
// An evaluation already in progress keeps the snapshot it started with;
// evaluations started after Reload see the new one. On error the previous
// snapshot stays active.
func (e *Engine) Reload() error {
	doc, err := LoadDocument(e.path)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.snapshot.Store(doc)
	e.loadedAt.Store(&now)

	slog.Info("rule snapshot loaded",
		"path", e.path,
		"version", doc.Version,
		"blocklisted", len(doc.BlocklistedAddresses),
	)
	return nil
}

// Snapshot returns the active rule document.
func (e *Engine) Snapshot() *Document {
	return e.snapshot.Load()
}

// Summary describes the active snapshot for the /rules endpoint.
func (e *Engine) Summary() map[string]any {
	s := e.Snapshot().Summary()
	s["path"] = e.path
	if t := e.loadedAt.Load(); t != nil {
		s["loaded_at"] = t.Format(time.RFC3339)
	}
	return s
}

// Evaluate runs every sample through the active snapshot and returns the
// alerts it produces. Multiple rules matching one sample each yield an
// independent alert; unmatched samples yield nothing.
func (e *Engine) Evaluate(samples []event.Sample) []event.Alert {
	doc := e.Snapshot()

	var alerts []event.Alert
	for _, s := range samples {
		switch s.Category {
		case event.CategoryNetwork:
			alerts = append(alerts, evaluateNetwork(doc, s)...)
		case event.CategoryProcess:
			alerts = append(alerts, evaluateProcess(doc, s)...)
		}
	}
	return alerts
}

func evaluateNetwork(doc *Document, s event.Sample) []event.Alert {
	remote, _ := s.Data["remote_addr"].(string)
	if remote == "" {
		return nil
	}
	host, port := splitHostPort(remote)

	var alerts []event.Alert

	if doc.IsBlocklisted(host) {
		alerts = append(alerts, event.NewAlert(
			fmt.Sprintf("Blocklisted address detected: %s", host),
			doc.SeverityFor(RuleBlocklist),
			map[string]any{
				"rule":            RuleBlocklist,
				"matched_address": host,
				"remote_addr":     remote,
				"state":           s.Data["state"],
				"sample":          s.Data,
			},
		))
	}

	if port > 0 && doc.IsSuspiciousPort(port) {
		alerts = append(alerts, event.NewAlert(
			fmt.Sprintf("Connection to suspicious port %d", port),
			doc.SeverityFor(RuleSuspiciousPort),
			map[string]any{
				"rule":         RuleSuspiciousPort,
				"matched_port": port,
				"remote_addr":  remote,
				"sample":       s.Data,
			},
		))
	}

	return alerts
}

func evaluateProcess(doc *Document, s event.Sample) []event.Alert {
	name, _ := s.Data["name"].(string)

	var alerts []event.Alert

	if cpu, ok := toFloat(s.Data["cpu_percent"]); ok && doc.Thresholds.CPUPercent > 0 && cpu > doc.Thresholds.CPUPercent {
		alerts = append(alerts, event.NewAlert(
			fmt.Sprintf("High CPU usage: %s at %.1f%%", name, cpu),
			doc.SeverityFor(RuleCPUThreshold),
			map[string]any{
				"rule":        RuleCPUThreshold,
				"cpu_percent": cpu,
				"threshold":   doc.Thresholds.CPUPercent,
				"process":     name,
				"sample":      s.Data,
			},
		))
	}

	if mem, ok := toFloat(s.Data["memory_percent"]); ok && doc.Thresholds.MemoryPercent > 0 && mem > doc.Thresholds.MemoryPercent {
		alerts = append(alerts, event.NewAlert(
			fmt.Sprintf("High memory usage: %s at %.1f%%", name, mem),
			doc.SeverityFor(RuleMemoryThreshold),
			map[string]any{
				"rule":           RuleMemoryThreshold,
				"memory_percent": mem,
				"threshold":      doc.Thresholds.MemoryPercent,
				"process":        name,
				"sample":         s.Data,
			},
		))
	}

	return alerts
}

// splitHostPort splits "host:port" leniently: a bare host yields port 0,
// and an unparseable port yields just the host.
func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// toFloat normalizes the numeric types that survive a JSON round trip.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
