package stats

import (
	"context"
	"io"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

// Source is the storage a report is built from.
type Source interface {
	BoxStats(ctx context.Context, boxID int64, now time.Time) (model.BoxStats, error)
	IntervalHistogram(ctx context.Context, boxID int64) ([model.NumIntervals]int, error)
	DailyActivity(ctx context.Context, boxID int64, since time.Time) ([]model.DailyActivity, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Now       time.Time
	Stats     model.BoxStats
	Intervals [model.NumIntervals]int
	// Activity has one entry per day of the window, including days without answers.
	Activity []model.DailyActivity
}

// BuildReport loads the stats of a box over the last days days.
func BuildReport(ctx context.Context, src Source, boxID int64, days int, now time.Time) (Report, error) {
	stats, err := src.BoxStats(ctx, boxID, now)
	if err != nil {
		return Report{}, err
	}
	hist, err := src.IntervalHistogram(ctx, boxID)
	if err != nil {
		return Report{}, err
	}
	if days <= 0 {
		days = 1
	}
	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	activity, err := src.DailyActivity(ctx, boxID, since)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Now:       now,
		Stats:     stats,
		Intervals: hist,
		Activity:  fillDays(activity, since, days),
	}, nil
}

// Render writes the full report.
func (r Report) Render(w io.Writer, width, height int, forceColor bool) error {
	if err := RenderSummary(w, r.Stats, r.Now); err != nil {
		return err
	}
	if err := RenderIntervals(w, r.Intervals); err != nil {
		return err
	}
	return PlotActivity(w, r.Activity, width, height, forceColor)
}

func fillDays(activity []model.DailyActivity, since time.Time, days int) []model.DailyActivity {
	byDay := make(map[string]model.DailyActivity, len(activity))
	for _, a := range activity {
		byDay[a.Day.Format("2006-01-02")] = a
	}
	out := make([]model.DailyActivity, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i)
		a, ok := byDay[day.Format("2006-01-02")]
		if !ok {
			a = model.DailyActivity{Day: day}
		}
		out = append(out, a)
	}
	return out
}
