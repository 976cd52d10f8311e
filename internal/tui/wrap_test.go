package tui

import (
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapLinesBreaksOnWords(t *testing.T) {
	lines := wrapLines([]string{"the quick brown fox", "jumps"}, 10)
	want := []string{"the quick", "brown fox", "jumps    "}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestWrapLinesBreaksLongWords(t *testing.T) {
	lines := wrapLines([]string{"see https://example.com/a/b"}, 8)
	want := []string{"see     ", "https://", "example.", "com/a/b "}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
	for _, line := range lines {
		if runewidth.StringWidth(line) != 8 {
			t.Fatalf("expected width 8, got %q", line)
		}
	}
}

func TestWrapLinesCountsWideRunes(t *testing.T) {
	lines := wrapLines([]string{"日本語", "ab"}, 10)
	if lines[1] != "ab    " {
		t.Fatalf("expected padding to wide line width, got %q", lines[1])
	}
}
