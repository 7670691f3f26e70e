package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/setevik/sentinel/internal/event"
)

// ProcessCollector enumerates running processes with per-process CPU and
// memory figures.
type ProcessCollector struct {
	// maxProcesses bounds the number of samples per collection; 0 means
	// unlimited.
	maxProcesses int
}

// NewProcessCollector creates a process collector. maxProcesses bounds the
// sample count per pass (0 = unlimited).
func NewProcessCollector(maxProcesses int) *ProcessCollector {
	return &ProcessCollector{maxProcesses: maxProcesses}
}

func (c *ProcessCollector) Name() string { return "process" }

// Collect samples every running process. Processes that vanish
// mid-enumeration are skipped; a per-process read error never fails the
// whole collect.
func (c *ProcessCollector) Collect(ctx context.Context) ([]event.Sample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		if isPermission(err) {
			return nil, ErrPermissionDegraded
		}
		return nil, &CollectionError{Collector: c.Name(), Err: err}
	}

	samples := make([]event.Sample, 0, len(procs))
	for _, p := range procs {
		if c.maxProcesses > 0 && len(samples) >= c.maxProcesses {
			break
		}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // process exited between enumeration and read
		}

		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}

		var memMB float64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			memMB = float64(mi.RSS) / (1024 * 1024)
		}

		status := ""
		if st, err := p.StatusWithContext(ctx); err == nil {
			status = strings.Join(st, ",")
		}

		samples = append(samples, event.NewSample(event.CategoryProcess, map[string]any{
			"pid":            p.Pid,
			"name":           name,
			"cpu_percent":    cpuPct,
			"memory_percent": float64(memPct),
			"memory_mb":      memMB,
			"status":         status,
		}))
	}

	return samples, nil
}
