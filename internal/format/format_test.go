package format

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{2048, "2.0 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{int64(1.5 * 1024 * 1024 * 1024), "1.5 GB"},
	}
	for _, tt := range tests {
		got := Bytes(tt.input)
		if got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMegabytes(t *testing.T) {
	if got := Megabytes(512); got != "512.0 MB" {
		t.Errorf("Megabytes(512) = %q", got)
	}
	if got := Megabytes(2048); got != "2.0 GB" {
		t.Errorf("Megabytes(2048) = %q", got)
	}
}

func TestAgo(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{45 * time.Second, "45s"},
		{3 * time.Minute, "3m"},
		{2*time.Hour + 10*time.Minute, "2h 10m"},
		{4*24*time.Hour + 6*time.Hour, "4d 6h"},
	}
	for _, tt := range tests {
		if got := Ago(tt.input); got != tt.want {
			t.Errorf("Ago(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
