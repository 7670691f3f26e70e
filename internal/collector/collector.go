// Package collector gathers point-in-time system facts (processes, network
// connections) and hands them to the pipeline as samples.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/setevik/sentinel/internal/event"
)

// Collector gathers one category of system fact at a single point in time.
// Implementations read OS state and nothing else. A legitimately empty
// system yields an empty slice, not an error.
type Collector interface {
	// Name identifies the collector in logs and status reports.
	Name() string
	// Collect returns the current samples. It may fail with a
	// *CollectionError, or with ErrPermissionDegraded when the process
	// lacks OS privileges for this category — an expected condition that
	// callers must treat as empty-not-failed.
	Collect(ctx context.Context) ([]event.Sample, error)
}

// ErrPermissionDegraded marks an expected lack of OS privilege. It is
// distinct from a genuine collection failure: the collector is healthy but
// the category is invisible to this process.
var ErrPermissionDegraded = errors.New("insufficient privileges for collection")

// CollectionError wraps a single collector's failure to gather samples.
type CollectionError struct {
	Collector string
	Err       error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collector %s: %v", e.Collector, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// isPermission reports whether err stems from missing OS privileges.
// gopsutil surfaces these inconsistently across platforms, so the check
// falls back to message matching.
func isPermission(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "operation not permitted")
}
