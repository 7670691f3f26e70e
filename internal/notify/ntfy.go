// Package notify pushes severe alerts to an ntfy server. Notification is
// optional and off unless a URL is configured; the HTTP API remains the
// primary way to consume alerts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/setevik/sentinel/internal/config"
	"github.com/setevik/sentinel/internal/event"
)

// Notifier sends alert notifications to an ntfy server.
type Notifier struct {
	cfg    config.NtfyConfig
	min    event.Severity
	client *http.Client
}

// New creates a Notifier from the ntfy configuration.
func New(cfg config.NtfyConfig) *Notifier {
	min := event.Severity(cfg.MinSeverity)
	if !min.Valid() {
		min = event.SevHigh
	}
	return &Notifier{
		cfg: cfg,
		min: min,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether a notification target is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.URL != ""
}

// Notify pushes one alert if its severity is at or above the configured
// minimum. A disabled notifier silently accepts everything.
func (n *Notifier) Notify(ctx context.Context, a event.Alert) error {
	if !n.Enabled() {
		return nil
	}
	if !a.Severity.AtLeast(n.min) {
		slog.Debug("alert below notification severity, skipping",
			"severity", a.Severity, "min", n.min)
		return nil
	}

	body := formatBody(a)
	priority := n.priority(a.Severity)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}

	req.Header.Set("Title", a.Title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", "rotating_light")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	slog.Info("notification sent", "title", a.Title, "severity", a.Severity, "priority", priority)
	return nil
}

func (n *Notifier) priority(sev event.Severity) string {
	if p, ok := n.cfg.PriorityMap[string(sev)]; ok {
		return p
	}
	return "default"
}

func formatBody(a event.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
	fmt.Fprintf(&b, "Time: %s\n", a.CreatedAt.Format(time.RFC3339))
	if rule, ok := a.Details["rule"].(string); ok {
		fmt.Fprintf(&b, "Rule: %s\n", rule)
	}
	if addr, ok := a.Details["remote_addr"].(string); ok && addr != "" {
		fmt.Fprintf(&b, "Remote: %s\n", addr)
	}
	if proc, ok := a.Details["process"].(string); ok && proc != "" {
		fmt.Fprintf(&b, "Process: %s\n", proc)
	}
	return b.String()
}
