package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// wrapLines word-wraps each line to width. Words longer than width are broken
// across lines and every line is padded so the block aligns when centered.
func wrapLines(lines []string, width int) []string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, line := range lines {
		wrapped := wrap.String(wordwrap.String(line, width), width)
		for _, part := range strings.Split(wrapped, "\n") {
			out = append(out, strings.TrimRight(part, " "))
		}
	}
	return padBlock(out)
}

func padBlock(lines []string) []string {
	widest := 0
	for _, line := range lines {
		if w := runewidth.StringWidth(line); w > widest {
			widest = w
		}
	}
	padded := make([]string, len(lines))
	for i, line := range lines {
		padded[i] = runewidth.FillRight(line, widest)
	}
	return padded
}
