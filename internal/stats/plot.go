package stats

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/cardbox/internal/model"
)

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 7
	axisSeparator       = " │"
	terminalWidthBackup = 80
	correctGlyph        = '█'
	wrongGlyph          = '░'
	colorCorrect        = "\x1b[32m"
	colorWrong          = "\x1b[31m"
	colorReset          = "\x1b[0m"
)

// PlotActivity renders daily answers as vertical bars, one column per day.
// The solid part of a bar is correct answers, the shaded part wrong ones.
// When there are more days than columns, only the most recent days are shown.
func PlotActivity(w io.Writer, days []model.DailyActivity, width, height int, forceColor bool) error {
	if len(days) == 0 {
		_, err := fmt.Fprintln(w, "No answers recorded.")
		return err
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if len(days) > width {
		days = days[len(days)-width:]
	}

	peak := 0
	for _, d := range days {
		if d.Answers > peak {
			peak = d.Answers
		}
	}
	if peak == 0 {
		_, err := fmt.Fprintln(w, "No answers recorded.")
		return err
	}
	label := fmt.Sprintf("%d", peak)
	axisWidth := runewidth.StringWidth(label)
	useColor := shouldUseColor(w, forceColor)

	if _, err := fmt.Fprintln(w, "Daily answers"); err != nil {
		return err
	}
	for row := height; row >= 1; row-- {
		prefix := ""
		switch row {
		case height:
			prefix = label
		case 1:
			prefix = "0"
		}
		var line strings.Builder
		line.WriteString(runewidth.FillLeft(prefix, axisWidth))
		line.WriteString(axisSeparator)
		for _, d := range days {
			line.WriteString(barCell(d, peak, height, row, useColor))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	first := days[0].Day.Format("Jan 02")
	last := days[len(days)-1].Day.Format("Jan 02")
	footer := runewidth.FillRight(first, len(days)-runewidth.StringWidth(last)) + last
	if len(days) < runewidth.StringWidth(first)+runewidth.StringWidth(last)+1 {
		footer = first + " - " + last
	}
	_, err := fmt.Fprintf(w, "%s  %s\n%s  %c correct  %c wrong\n\n",
		strings.Repeat(" ", axisWidth), footer,
		strings.Repeat(" ", axisWidth), correctGlyph, wrongGlyph)
	return err
}

// barCell returns the glyph of a day's bar at row, counted from the bottom.
func barCell(d model.DailyActivity, peak, height, row int, useColor bool) string {
	total := scaleRows(d.Answers, peak, height)
	correct := scaleRows(d.Correct, peak, height)
	switch {
	case row <= correct:
		return paint(string(correctGlyph), colorCorrect, useColor)
	case row <= total:
		return paint(string(wrongGlyph), colorWrong, useColor)
	default:
		return " "
	}
}

// scaleRows maps a count onto bar rows; any non-zero count shows at least one row.
func scaleRows(count, peak, height int) int {
	if count <= 0 {
		return 0
	}
	rows := (count*height + peak - 1) / peak
	if rows > height {
		rows = height
	}
	return rows
}

func paint(s, color string, useColor bool) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

// PlotWidthFor returns how many day columns fit in the total width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - len("9999") - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
