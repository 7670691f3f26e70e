// Package format provides shared formatting utilities for CLI output.
package format

import (
	"fmt"
	"time"
)

const (
	KB = 1024
	MB = KB * 1024
	GB = MB * 1024
)

// Bytes formats a byte count as a human-readable string (e.g., "3.0 GB", "512.0 MB").
func Bytes(b int64) string {
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// Megabytes formats a float MB figure (as carried in process sample
// payloads) as a byte string.
func Megabytes(mb float64) string {
	return Bytes(int64(mb * MB))
}

// Ago formats a duration in short human-readable form ("45s", "3m",
// "2h 10m", "4d 6h").
func Ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
