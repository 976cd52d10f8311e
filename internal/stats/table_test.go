package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Interval", "Cards", "Share"}
	rows := [][]string{
		{"1", "12", "60.0%"},
		{"12", "3", "15.0%"},
	}
	rightAlign := map[int]bool{0: true, 1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Interval Cards Share" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "       1    12 60.0%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "      12     3 15.0%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableCountsWideRunes(t *testing.T) {
	lines := formatTable([]string{"Word", "N"}, [][]string{{"日本", "1"}, {"ab", "2"}}, nil)
	if lines[1] != "日本 1" || lines[2] != "ab   2" {
		t.Fatalf("unexpected wide rune padding: %q / %q", lines[1], lines[2])
	}
}
