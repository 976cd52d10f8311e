// Package stats renders box reports.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/cardbox/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// HistogramSparkline renders interval counts as a sparkline.
func HistogramSparkline(hist [model.NumIntervals]int) string {
	values := make([]float64, len(hist))
	for i, n := range hist {
		values[i] = float64(n)
	}
	return Sparkline(values)
}

// FormatStudyTime renders a study duration the way people say it.
func FormatStudyTime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// FormatLastStudied renders a last-studied time relative to now.
func FormatLastStudied(t, now time.Time) string {
	if t.IsZero() || t.Year() < 2 {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// RenderSummary prints the headline numbers of a box.
func RenderSummary(w io.Writer, s model.BoxStats, now time.Time) error {
	lines := []string{
		fmt.Sprintf("Box %d: %s", s.BoxID, s.Title),
		fmt.Sprintf("Cards: %s", humanize.Comma(int64(s.Cards))),
		fmt.Sprintf("Learned: %s (%.1f%%)", humanize.Comma(int64(s.Learned)), s.PercentLearned),
		fmt.Sprintf("Time studied: %s", FormatStudyTime(s.TimeStudied)),
		fmt.Sprintf("Last studied: %s", FormatLastStudied(s.LastStudied, now)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderIntervals prints how many cards sit in each interval.
func RenderIntervals(w io.Writer, hist [model.NumIntervals]int) error {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		_, err := fmt.Fprintln(w, "No cards in this box.")
		return err
	}
	rows := make([][]string, 0, len(hist))
	for i, n := range hist {
		share := float64(n) / float64(total) * 100
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", n),
			fmt.Sprintf("%.1f%%", share),
			strings.Repeat("#", int(math.Round(share/5))),
		})
	}
	if _, err := fmt.Fprintln(w, "Intervals"); err != nil {
		return err
	}
	for _, line := range formatTable([]string{"Interval", "Cards", "Share", ""}, rows, map[int]bool{0: true, 1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderBoxes prints one line per box with its learning state.
func RenderBoxes(w io.Writer, boxes []model.BoxStats, hists map[int64][model.NumIntervals]int, now time.Time) error {
	if len(boxes) == 0 {
		_, err := fmt.Fprintln(w, "No boxes found.")
		return err
	}
	rows := make([][]string, 0, len(boxes))
	for _, b := range boxes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", b.BoxID),
			b.Title,
			humanize.Comma(int64(b.Cards)),
			fmt.Sprintf("%.1f%%", b.PercentLearned),
			FormatLastStudied(b.LastStudied, now),
			"[" + HistogramSparkline(hists[b.BoxID]) + "]",
		})
	}
	headers := []string{"ID", "Title", "Cards", "Learned", "Last studied", "Intervals"}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
