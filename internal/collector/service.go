package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/setevik/sentinel/internal/event"
	"github.com/setevik/sentinel/internal/metrics"
)

// Status describes one collector's most recent collection outcome.
type Status struct {
	Name        string    `json:"name"`
	Working     bool      `json:"working"`
	Degraded    bool      `json:"degraded"`
	SampleCount int       `json:"sample_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastRun     time.Time `json:"last_run"`
}

// Service orchestrates all registered collectors. One collector failing —
// or running without privileges — never stops collection from the others:
// CollectAll always returns whatever the healthy collectors produced.
type Service struct {
	collectors []Collector

	mu     sync.Mutex
	status map[string]Status
}

// NewService creates a collector service over the given collectors.
func NewService(collectors ...Collector) *Service {
	return &Service{
		collectors: collectors,
		status:     make(map[string]Status, len(collectors)),
	}
}

// CollectAll invokes every registered collector and concatenates the
// results, stamping each sample with the invocation timestamp. Collector
// failures are absorbed here: logged, counted, recorded in status, and
// excluded from the result. They never propagate to the caller.
func (s *Service) CollectAll(ctx context.Context) []event.Sample {
	now := time.Now().UTC()
	var all []event.Sample

	for _, c := range s.collectors {
		samples, err := c.Collect(ctx)

		st := Status{
			Name:        c.Name(),
			Working:     err == nil,
			SampleCount: len(samples),
			LastRun:     now,
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrPermissionDegraded):
			// Expected without privileges: empty result, not a failure.
			st.Working = true
			st.Degraded = true
			slog.Debug("collector degraded, no privileges", "collector", c.Name())
		default:
			st.LastError = err.Error()
			metrics.CollectorFailures.WithLabelValues(c.Name()).Inc()
			slog.Warn("collection failed, continuing with remaining collectors",
				"collector", c.Name(), "error", err)
		}

		s.mu.Lock()
		s.status[c.Name()] = st
		s.mu.Unlock()

		for i := range samples {
			samples[i].Timestamp = now
		}
		metrics.SamplesCollected.WithLabelValues(c.Name()).Add(float64(len(samples)))
		all = append(all, samples...)
	}

	return all
}

// Status returns the most recent per-collector outcomes, keyed by name.
func (s *Service) Status() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Status, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Names returns the registered collector names in registration order.
func (s *Service) Names() []string {
	names := make([]string, len(s.collectors))
	for i, c := range s.collectors {
		names[i] = c.Name()
	}
	return names
}
