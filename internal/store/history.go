package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/cardbox/internal/model"
)

// AppendHistory records the state of a card after an answer.
func (s *Store) AppendHistory(ctx context.Context, entry model.HistoryEntry) error {
	entry.AnsweredAt = entry.AnsweredAt.UTC()
	entry.LearnedUntil = entry.LearnedUntil.UTC()
	line, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history line: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO card_history (box_id, card_key, answered_at, correct, line) VALUES (?, ?, ?, ?, ?)`,
		entry.BoxID, entry.CardKey, formatTime(entry.AnsweredAt), boolInt(entry.Correct), strings.TrimSpace(string(line)),
	)
	return err
}

// CardHistory returns the answer history of a card, oldest first.
func (s *Store) CardHistory(ctx context.Context, boxID int64, key string) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line FROM card_history WHERE box_id = ? AND card_key = ? ORDER BY id ASC`, boxID, key)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var entries []model.HistoryEntry
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		var entry model.HistoryEntry
		if err := yaml.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode history line: %w", err)
		}
		entry.BoxID = boxID
		entry.CardKey = key
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// BoxStats summarizes a box at now. A card counts as learned while its
// learned_until lies in the future.
func (s *Store) BoxStats(ctx context.Context, boxID int64, now time.Time) (model.BoxStats, error) {
	box, err := s.GetBox(ctx, boxID)
	if err != nil {
		return model.BoxStats{}, err
	}
	stats := model.BoxStats{
		BoxID:       box.ID,
		Title:       box.Title,
		TimeStudied: box.TimeStudied,
		LastStudied: box.LastStudied,
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN learned_until > ? THEN 1 ELSE 0 END), 0)
		 FROM cards WHERE box_id = ? AND enabled = 1`,
		formatTime(now), boxID,
	).Scan(&stats.Cards, &stats.Learned)
	if err != nil {
		return model.BoxStats{}, err
	}
	if stats.Cards > 0 {
		stats.PercentLearned = float64(stats.Learned) / float64(stats.Cards) * 100
	}
	return stats, nil
}

// IntervalHistogram counts enabled cards per interval; index 0 is interval 1.
func (s *Store) IntervalHistogram(ctx context.Context, boxID int64) ([model.NumIntervals]int, error) {
	var hist [model.NumIntervals]int
	rows, err := s.db.QueryContext(ctx,
		`SELECT interval, COUNT(*) FROM cards WHERE box_id = ? AND enabled = 1 GROUP BY interval`, boxID)
	if err != nil {
		return hist, err
	}
	defer closeRows(rows)

	for rows.Next() {
		var interval, count int
		if err := rows.Scan(&interval, &count); err != nil {
			return hist, err
		}
		if interval < 1 {
			interval = 1
		}
		if interval > model.NumIntervals {
			interval = model.NumIntervals
		}
		hist[interval-1] += count
	}
	return hist, rows.Err()
}

// DailyActivity aggregates answers per UTC day since the given time, oldest first.
func (s *Store) DailyActivity(ctx context.Context, boxID int64, since time.Time) ([]model.DailyActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(answered_at) AS day, COUNT(*), SUM(correct)
		 FROM card_history
		 WHERE box_id = ? AND answered_at >= ?
		 GROUP BY day
		 ORDER BY day ASC`,
		boxID, formatTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var days []model.DailyActivity
	for rows.Next() {
		var (
			day string
			agg model.DailyActivity
		)
		if err := rows.Scan(&day, &agg.Answers, &agg.Correct); err != nil {
			return nil, err
		}
		parsed, err := time.ParseInLocation("2006-01-02", day, time.UTC)
		if err != nil {
			return nil, err
		}
		agg.Day = parsed
		days = append(days, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}
