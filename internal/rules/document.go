// Package rules loads the threat-detection rule document and evaluates
// samples against it.
package rules

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/setevik/sentinel/internal/event"
)

// Rule labels. Every alert's details name the label of the rule that
// produced it.
const (
	RuleBlocklist       = "blocklist"
	RuleSuspiciousPort  = "suspicious_port"
	RuleCPUThreshold    = "cpu_threshold"
	RuleMemoryThreshold = "memory_threshold"
)

// Document is one versioned, immutable rule configuration snapshot. It is
// never mutated after loading; reloads build a fresh Document and swap it
// in atomically.
type Document struct {
	Version int `toml:"version"`

	// BlocklistedAddresses are remote hosts that trigger an alert on any
	// connection, matched exactly against the host part of remote_addr.
	BlocklistedAddresses []string `toml:"blocklisted_addresses"`

	// SuspiciousPorts are destination ports worth flagging (remote
	// administration, tunnels).
	SuspiciousPorts []int `toml:"suspicious_ports"`

	// Severities maps rule labels to alert severities. Missing labels
	// default to medium.
	Severities map[string]event.Severity `toml:"severities"`

	Thresholds Thresholds `toml:"thresholds"`
}

// Thresholds holds resource cutoffs for process samples.
type Thresholds struct {
	CPUPercent    float64 `toml:"cpu_percent"`
	MemoryPercent float64 `toml:"memory_percent"`
}

// Default returns the rule document used when no file is configured:
// empty blocklist, common remote-access ports, 80%/75% resource cutoffs.
func Default() *Document {
	return &Document{
		Version:         1,
		SuspiciousPorts: []int{22, 23, 3389, 5900, 8080, 8443},
		Severities:      map[string]event.Severity{},
		Thresholds: Thresholds{
			CPUPercent:    80,
			MemoryPercent: 75,
		},
	}
}

// LoadDocument reads and validates a rule document from path. A missing
// file yields the default document; a malformed one is an error.
func LoadDocument(path string) (*Document, error) {
	doc := Default()

	if path == "" {
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("reading rule document: %w", err)
	}

	if err := toml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing rule document %s: %w", path, err)
	}

	for label, sev := range doc.Severities {
		if !sev.Valid() {
			return nil, fmt.Errorf("rule document %s: invalid severity %q for rule %q", path, sev, label)
		}
	}

	return doc, nil
}

// SeverityFor returns the configured severity for a rule label, defaulting
// to medium.
func (d *Document) SeverityFor(label string) event.Severity {
	if sev, ok := d.Severities[label]; ok {
		return sev
	}
	return event.SevMedium
}

// IsBlocklisted reports whether host is on the blocklist.
func (d *Document) IsBlocklisted(host string) bool {
	for _, a := range d.BlocklistedAddresses {
		if a == host {
			return true
		}
	}
	return false
}

// IsSuspiciousPort reports whether port is on the suspicious-port list.
func (d *Document) IsSuspiciousPort(port int) bool {
	for _, p := range d.SuspiciousPorts {
		if p == port {
			return true
		}
	}
	return false
}

// Summary describes the document for the /rules endpoint and status output.
func (d *Document) Summary() map[string]any {
	sevs := make(map[string]string, len(d.Severities))
	for label, sev := range d.Severities {
		sevs[label] = string(sev)
	}
	return map[string]any{
		"version":                  d.Version,
		"blocklisted_addresses":    len(d.BlocklistedAddresses),
		"suspicious_ports":         len(d.SuspiciousPorts),
		"severities":               sevs,
		"cpu_percent_threshold":    d.Thresholds.CPUPercent,
		"memory_percent_threshold": d.Thresholds.MemoryPercent,
	}
}
