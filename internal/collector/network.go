package collector

import (
	"context"
	"fmt"
	"syscall"

	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/setevik/sentinel/internal/event"
)

// NetworkCollector enumerates active network connections (TCP and UDP).
type NetworkCollector struct{}

// NewNetworkCollector creates a network connection collector.
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{}
}

func (c *NetworkCollector) Name() string { return "network" }

// Collect samples every inet connection visible to this process. Running
// unprivileged commonly restricts visibility on some platforms; that
// surfaces as ErrPermissionDegraded, not a collection failure.
func (c *NetworkCollector) Collect(ctx context.Context) ([]event.Sample, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		if isPermission(err) {
			return nil, ErrPermissionDegraded
		}
		return nil, &CollectionError{Collector: c.Name(), Err: err}
	}

	samples := make([]event.Sample, 0, len(conns))
	for _, conn := range conns {
		samples = append(samples, event.NewSample(event.CategoryNetwork, map[string]any{
			"local_addr":  formatAddr(conn.Laddr),
			"remote_addr": formatAddr(conn.Raddr),
			"state":       conn.Status,
			"pid":         conn.Pid,
			"protocol":    protocolName(conn.Type),
		}))
	}

	return samples, nil
}

func formatAddr(a gnet.Addr) string {
	if a.IP == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

func protocolName(sockType uint32) string {
	switch sockType {
	case syscall.SOCK_STREAM:
		return "tcp"
	case syscall.SOCK_DGRAM:
		return "udp"
	default:
		return "unknown"
	}
}
