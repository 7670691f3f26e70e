// sentinel monitors local processes and network connections, evaluates
// them against a configurable rule set, and serves events and alerts over
// an HTTP API with optional ntfy push notifications.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/setevik/sentinel/internal/agent"
	"github.com/setevik/sentinel/internal/collector"
	"github.com/setevik/sentinel/internal/config"
	"github.com/setevik/sentinel/internal/event"
	"github.com/setevik/sentinel/internal/format"
	"github.com/setevik/sentinel/internal/notify"
	"github.com/setevik/sentinel/internal/rules"
	"github.com/setevik/sentinel/internal/scheduler"
	"github.com/setevik/sentinel/internal/server"
	"github.com/setevik/sentinel/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "scan":
			runScan(os.Args[2:])
			return
		case "query":
			runQuery(os.Args[2:])
			return
		case "status":
			runStatus(os.Args[2:])
			return
		case "test-ntfy":
			runTestNtfy(os.Args[2:])
			return
		case "version":
			fmt.Println("sentinel", version)
			return
		}
	}

	// Default: run daemon.
	runDaemon(os.Args[1:])
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("sentinel", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Println("sentinel", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	slog.Info("sentinel starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"interval", cfg.Monitor.Interval.Duration,
	)

	if err := run(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening event database: %w", err)
	}
	defer db.Close()

	slog.Info("event database opened", "path", cfg.DBPath())

	// Run retention purge on startup.
	if cfg.DB.Retention.Duration > 0 {
		purged, err := db.Purge(cfg.DB.Retention.Duration)
		if err != nil {
			slog.Warn("failed to purge old records", "error", err)
		} else if purged > 0 {
			slog.Info("purged old records", "count", purged, "retention", cfg.DB.Retention.Duration)
		}
	}

	a, err := buildAgent(cfg, db)
	if err != nil {
		return err
	}

	sched := scheduler.New(a, cfg.Monitor.Interval.Duration)
	go sched.Run(ctx)

	srv := server.New(cfg, a, sched, version)
	srv.Start()

	// Notify systemd we are ready (sd_notify).
	sdNotify("READY=1")

	var watchdogCh <-chan time.Time
	if wdInterval := watchdogInterval(); wdInterval > 0 {
		ticker := time.NewTicker(wdInterval / 2)
		defer ticker.Stop()
		watchdogCh = ticker.C
		slog.Info("systemd watchdog enabled", "interval", wdInterval)
	}

	for {
		select {
		case <-watchdogCh:
			sdNotify("WATCHDOG=1")
		case <-ctx.Done():
			slog.Info("shutting down")
			sdNotify("STOPPING=1")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown incomplete", "error", err)
			}

			// The scheduler finishes its in-flight tick before stopping.
			select {
			case <-sched.Done():
			case <-shutdownCtx.Done():
				slog.Warn("scheduler did not stop in time")
			}
			return nil
		}
	}
}

// buildAgent assembles the collection pipeline from configuration.
func buildAgent(cfg *config.Config, db *store.DB) (*agent.Agent, error) {
	engine, err := rules.NewEngine(cfg.RulesPath())
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	var collectors []collector.Collector
	if cfg.Monitor.Process {
		collectors = append(collectors, collector.NewProcessCollector(cfg.Monitor.MaxProcesses))
	}
	if cfg.Monitor.Network {
		collectors = append(collectors, collector.NewNetworkCollector())
	}
	if len(collectors) == 0 {
		return nil, errors.New("no collectors enabled in [monitor]")
	}

	var notifier *notify.Notifier
	if cfg.Ntfy.URL != "" {
		notifier = notify.New(cfg.Ntfy)
		slog.Info("ntfy notifications enabled", "min_severity", cfg.Ntfy.MinSeverity)
	}

	return agent.New(collector.NewService(collectors...), engine, db, notifier), nil
}

// --- scan subcommand ---

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error") // quiet for CLI output

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	a, err := buildAgent(cfg, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := a.RunOnce(ctx, "manual")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scan:     %s\n", res.ScanID)
	fmt.Printf("Events:   %d collected, %d stored (%s)\n",
		res.EventsCollected, res.EventsStored, strings.Join(res.EventTypes, ", "))
	fmt.Printf("Alerts:   %d\n", res.AlertsStored)
}

// --- query subcommand ---

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	last := fs.String("last", "24h", "time window (e.g. 30m, 24h, 7d)")
	eventType := fs.String("type", "", "filter by event type (process, network)")
	alerts := fs.Bool("alerts", false, "show alerts instead of events")
	severity := fs.String("severity", "", "filter alerts by severity")
	limit := fs.Int("limit", 50, "max records to show")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error")

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	window, err := parseDuration(*last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -last value %q: %v\n", *last, err)
		os.Exit(1)
	}

	if *alerts {
		list, err := db.ListAlerts(store.AlertFilter{
			Severity:     event.Severity(*severity),
			ActiveWithin: window,
			Limit:        *limit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "query error: %v\n", err)
			os.Exit(1)
		}
		printAlerts(list)
		return
	}

	list, err := db.ListEvents(store.EventFilter{
		Category: event.Category(*eventType),
		Since:    time.Now().Add(-window),
		Limit:    *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		os.Exit(1)
	}
	printEvents(list)
}

func printEvents(events []event.Event) {
	if len(events) == 0 {
		fmt.Println("No events found.")
		return
	}

	for _, ev := range events {
		ts := ev.CreatedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("%s  #%-6d %-8s %s\n", ts, ev.ID, ev.Category, summarizeData(ev))
	}
	fmt.Printf("Total: %d event(s)\n", len(events))
}

func printAlerts(alerts []event.Alert) {
	if len(alerts) == 0 {
		fmt.Println("No alerts found.")
		return
	}

	for _, a := range alerts {
		ts := a.CreatedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("%s  #%-6d [%s] %s\n", ts, a.ID, strings.ToUpper(string(a.Severity)), a.Title)
		if rule, ok := a.Details["rule"].(string); ok {
			fmt.Printf("             Rule: %s\n", rule)
		}
	}
	fmt.Printf("Total: %d alert(s)\n", len(alerts))
}

// summarizeData renders the payload fields that identify a sample at a
// glance; process and network payloads each have a fixed shape.
func summarizeData(ev event.Event) string {
	switch ev.Category {
	case event.CategoryProcess:
		name, _ := ev.Data["name"].(string)
		cpu, _ := ev.Data["cpu_percent"].(float64)
		mem, _ := ev.Data["memory_mb"].(float64)
		if mem > 0 {
			return fmt.Sprintf("%s cpu=%.1f%% mem=%s", name, cpu, format.Megabytes(mem))
		}
		return fmt.Sprintf("%s cpu=%.1f%%", name, cpu)
	case event.CategoryNetwork:
		local, _ := ev.Data["local_addr"].(string)
		remote, _ := ev.Data["remote_addr"].(string)
		state, _ := ev.Data["state"].(string)
		return fmt.Sprintf("%s -> %s (%s)", local, remote, state)
	default:
		return ""
	}
}

// --- status subcommand ---

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error")

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Last event.
	last, err := db.ListEvents(store.EventFilter{Limit: 1})
	if err == nil && len(last) > 0 {
		ev := last[0]
		fmt.Printf("Last event:   #%d %s — %s ago\n",
			ev.ID, ev.Category, format.Ago(time.Since(ev.CreatedAt)))
	} else {
		fmt.Println("Last event:   none")
	}

	// Activity for the last 24h.
	stats, err := db.Stats(24 * time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Events (24h): %d %s\n", stats.TotalEvents, distribution(stats.EventsByCategory))
	fmt.Printf("Alerts (24h): %d %s\n", stats.TotalAlerts, distribution(stats.AlertsBySeverity))

	// Rule set.
	engine, err := rules.NewEngine(cfg.RulesPath())
	if err != nil {
		fmt.Printf("Rules:        error: %v\n", err)
	} else {
		doc := engine.Snapshot()
		fmt.Printf("Rules:        %d blocklisted, %d suspicious ports, cpu>%.0f%%, mem>%.0f%%\n",
			len(doc.BlocklistedAddresses), len(doc.SuspiciousPorts),
			doc.Thresholds.CPUPercent, doc.Thresholds.MemoryPercent)
	}

	// DB info.
	eventCount, _ := db.CountEvents()
	alertCount, _ := db.CountAlerts()
	fmt.Printf("DB records:   %d events, %d alerts\n", eventCount, alertCount)
	fmt.Printf("DB path:      %s\n", cfg.DBPath())
}

func distribution(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// --- test-ntfy subcommand ---

func runTestNtfy(args []string) {
	fs := flag.NewFlagSet("test-ntfy", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	if cfg.Ntfy.URL == "" {
		fmt.Fprintln(os.Stderr, "error: ntfy.url not configured")
		os.Exit(1)
	}

	n := notify.New(cfg.Ntfy)
	alert := event.NewAlert(
		"Test notification from sentinel",
		event.SevCritical,
		map[string]any{"rule": "test"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := n.Notify(ctx, alert); err != nil {
		fmt.Fprintf(os.Stderr, "error sending test notification: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Test notification sent successfully.")
}

// parseDuration extends time.ParseDuration with support for "d" (days) suffix.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		s = strings.TrimSuffix(s, "d")
		var days int
		if _, err := fmt.Sscanf(s, "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid days format: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// --- sd_notify support ---

// sdNotify sends a notification to systemd via the NOTIFY_SOCKET.
// This is a minimal implementation that doesn't require a C dependency.
func sdNotify(state string) {
	socketAddr := os.Getenv("NOTIFY_SOCKET")
	if socketAddr == "" {
		return
	}

	conn, err := net.Dial("unixgram", socketAddr)
	if err != nil {
		slog.Debug("sd_notify: failed to connect", "error", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(state)); err != nil {
		slog.Debug("sd_notify: failed to send", "error", err)
	}
}

// watchdogInterval reads WATCHDOG_USEC from the environment and returns the
// watchdog interval as a time.Duration. Returns 0 if not set.
func watchdogInterval() time.Duration {
	usecStr := os.Getenv("WATCHDOG_USEC")
	if usecStr == "" {
		return 0
	}
	var usec int64
	if _, err := fmt.Sscanf(usecStr, "%d", &usec); err != nil {
		return 0
	}
	return time.Duration(usec) * time.Microsecond
}

// --- utilities ---

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
