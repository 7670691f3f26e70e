// Package event defines the core data model: samples gathered by
// collectors, persisted events, and alerts raised by the rule engine.
package event

import (
	"time"
)

// Category tags the kind of system fact a sample describes. The category
// determines the shape of the sample's payload: process samples always
// carry pid/name/cpu_percent/memory_percent/status, network samples always
// carry local_addr/remote_addr/state.
type Category string

const (
	CategoryProcess Category = "process"
	CategoryNetwork Category = "network"
)

// Severity is the ordered alert severity scale. Only these four values
// are valid.
type Severity string

const (
	SevLow      Severity = "low"
	SevMedium   Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// Rank returns the position of the severity on the ordered scale,
// low=0 .. critical=3. Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SevLow:
		return 0
	case SevMedium:
		return 1
	case SevHigh:
		return 2
	case SevCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Sample is one point-in-time fact gathered by a collector. Samples are
// immutable once built; collectors hand them off and never touch them again.
type Sample struct {
	Category  Category       `json:"event_type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewSample builds a sample for the given category and payload.
func NewSample(category Category, data map[string]any) Sample {
	return Sample{
		Category:  category,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Event is a persisted sample. The ID is assigned by the store at insert
// time and is unique and strictly increasing in insertion order.
type Event struct {
	ID        int64          `json:"id"`
	Category  Category       `json:"event_type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Alert is a persisted rule-engine finding. Details always name the rule
// that fired and the values that triggered it, so every alert is traceable
// back to its condition.
type Alert struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Severity     Severity       `json:"severity"`
	Details      map[string]any `json:"details"`
	Acknowledged bool           `json:"acknowledged"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewAlert builds an unpersisted alert with the current timestamp.
func NewAlert(title string, severity Severity, details map[string]any) Alert {
	return Alert{
		Title:     title,
		Severity:  severity,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}
