package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/setevik/sentinel/internal/event"
)

// fakeCollector returns canned samples or a canned error.
type fakeCollector struct {
	name    string
	samples []event.Sample
	err     error
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Collect(ctx context.Context) ([]event.Sample, error) {
	return f.samples, f.err
}

func procSample(pid int) event.Sample {
	return event.NewSample(event.CategoryProcess, map[string]any{"pid": pid, "name": "test"})
}

func TestCollectAllMergesCollectors(t *testing.T) {
	svc := NewService(
		&fakeCollector{name: "process", samples: []event.Sample{procSample(1), procSample(2)}},
		&fakeCollector{name: "network", samples: []event.Sample{
			event.NewSample(event.CategoryNetwork, map[string]any{"remote_addr": "1.2.3.4:80"}),
		}},
	)

	samples := svc.CollectAll(context.Background())
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
}

func TestCollectAllStampsInvocationTimestamp(t *testing.T) {
	old := procSample(1)
	old.Timestamp = time.Now().Add(-time.Hour)

	svc := NewService(&fakeCollector{name: "process", samples: []event.Sample{old}})

	before := time.Now().Add(-time.Second)
	samples := svc.CollectAll(context.Background())
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].Timestamp.Before(before) {
		t.Errorf("sample timestamp %v not re-stamped at collection time", samples[0].Timestamp)
	}
}

func TestCollectAllPartialFailure(t *testing.T) {
	svc := NewService(
		&fakeCollector{name: "network", err: &CollectionError{Collector: "network", Err: errors.New("boom")}},
		&fakeCollector{name: "process", samples: []event.Sample{procSample(1)}},
	)

	samples := svc.CollectAll(context.Background())
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1 from the healthy collector", len(samples))
	}
	if samples[0].Category != event.CategoryProcess {
		t.Errorf("surviving sample category = %q", samples[0].Category)
	}

	st := svc.Status()
	if st["network"].Working {
		t.Error("failed collector should not report working")
	}
	if st["network"].LastError == "" {
		t.Error("failed collector should record its error")
	}
	if !st["process"].Working {
		t.Error("healthy collector should report working")
	}
}

func TestCollectAllPermissionDegraded(t *testing.T) {
	svc := NewService(
		&fakeCollector{name: "network", err: ErrPermissionDegraded},
		&fakeCollector{name: "process", samples: []event.Sample{procSample(1)}},
	)

	samples := svc.CollectAll(context.Background())
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}

	st := svc.Status()
	if !st["network"].Degraded {
		t.Error("permission-degraded collector should be flagged degraded")
	}
	if !st["network"].Working {
		t.Error("degraded is an expected condition, not a failure")
	}
	if st["network"].LastError != "" {
		t.Errorf("degraded collector should not record an error, got %q", st["network"].LastError)
	}
}

func TestCollectAllAllFailing(t *testing.T) {
	svc := NewService(
		&fakeCollector{name: "process", err: errors.New("no /proc")},
		&fakeCollector{name: "network", err: errors.New("no sockets")},
	)

	samples := svc.CollectAll(context.Background())
	if len(samples) != 0 {
		t.Fatalf("got %d samples, want 0", len(samples))
	}
}

func TestIsPermission(t *testing.T) {
	if !isPermission(errors.New("open /proc/net/tcp: permission denied")) {
		t.Error("message match should detect permission errors")
	}
	if isPermission(errors.New("connection reset")) {
		t.Error("unrelated error flagged as permission")
	}
}

func TestNames(t *testing.T) {
	svc := NewService(
		&fakeCollector{name: "process"},
		&fakeCollector{name: "network"},
	)
	names := svc.Names()
	if len(names) != 2 || names[0] != "process" || names[1] != "network" {
		t.Errorf("Names() = %v", names)
	}
}
