package main

import (
	"testing"
	"time"
)

func TestBuildProgressBar(t *testing.T) {
	tests := []struct {
		current, total, width int
		want                  string
	}{
		{0, 10, 10, ">         "},
		{5, 10, 10, "=====>    "},
		{10, 10, 10, "=========="},
		{3, 0, 4, "    "},
	}

	for _, tt := range tests {
		if got := buildProgressBar(tt.current, tt.total, tt.width); got != tt.want {
			t.Errorf("buildProgressBar(%d, %d, %d) = %q, want %q", tt.current, tt.total, tt.width, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("formatDuration(1.5s) = %q", got)
	}
	if got := formatDuration(125 * time.Second); got != "2m 5s" {
		t.Errorf("formatDuration(125s) = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString() = %q, want unchanged", got)
	}
	if got := truncateString("a rather long query", 10); got != "a rathe..." {
		t.Errorf("truncateString() = %q, want %q", got, "a rathe...")
	}
}
