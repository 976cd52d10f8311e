package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

const cardColumns = `box_id, key, fields, enabled, in_study_set, last_correct, last_studied, learned_until, interval, n_correct, n_wrong, modified`

// UpsertCards inserts new cards and refreshes the fields of existing ones.
// Existing cards keep their scheduling state and are re-enabled.
func (s *Store) UpsertCards(ctx context.Context, boxID int64, cards []model.Card, now time.Time) (added, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	stamp := formatTime(now)
	for _, card := range cards {
		fields, err := json.Marshal(card.Fields)
		if err != nil {
			return 0, 0, err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE cards SET fields = ?, enabled = 1, modified = ? WHERE box_id = ? AND key = ?`,
			string(fields), stamp, boxID, card.Key,
		)
		if err != nil {
			return 0, 0, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return 0, 0, err
		} else if n > 0 {
			updated++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, 1, 0, ?, ?, ?, 1, 0, 0, ?)`,
			boxID, card.Key, string(fields),
			formatTime(time.Time{}), formatTime(time.Time{}), stamp, stamp,
		); err != nil {
			return 0, 0, fmt.Errorf("failed to insert card %q: %w", card.Key, err)
		}
		added++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// DisableMissing disables every card of the box whose key is not in keep and
// removes it from the study set. It returns the number of disabled cards.
func (s *Store) DisableMissing(ctx context.Context, boxID int64, keep []string) (int, error) {
	query := `UPDATE cards SET enabled = 0, in_study_set = 0 WHERE box_id = ? AND enabled = 1`
	args := []any{boxID}
	if len(keep) > 0 {
		placeholders := make([]string, len(keep))
		for i, key := range keep {
			placeholders[i] = "?"
			args = append(args, key)
		}
		query += fmt.Sprintf(` AND key NOT IN (%s)`, strings.Join(placeholders, ","))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// StudySet returns the enabled cards currently in the study set.
func (s *Store) StudySet(ctx context.Context, boxID int64, limit int) ([]model.Card, error) {
	return s.queryCards(ctx,
		`WHERE box_id = ? AND enabled = 1 AND in_study_set = 1 ORDER BY last_studied ASC LIMIT ?`,
		boxID, limit)
}

// RefillCandidates returns enabled cards outside the study set that are due at now.
func (s *Store) RefillCandidates(ctx context.Context, boxID int64, now time.Time, limit int) ([]model.Card, error) {
	return s.queryCards(ctx,
		`WHERE box_id = ? AND enabled = 1 AND in_study_set = 0 AND learned_until <= ? ORDER BY learned_until ASC LIMIT ?`,
		boxID, formatTime(now), limit)
}

// EarliestDue returns the enabled cards that become due first.
func (s *Store) EarliestDue(ctx context.Context, boxID int64, limit int) ([]model.Card, error) {
	return s.queryCards(ctx,
		`WHERE box_id = ? AND enabled = 1 ORDER BY learned_until ASC LIMIT ?`,
		boxID, limit)
}

// GetCard returns a card by box and key.
func (s *Store) GetCard(ctx context.Context, boxID int64, key string) (model.Card, error) {
	cards, err := s.queryCards(ctx, `WHERE box_id = ? AND key = ?`, boxID, key)
	if err != nil {
		return model.Card{}, err
	}
	if len(cards) == 0 {
		return model.Card{}, fmt.Errorf("card %q in box %d: %w", key, boxID, ErrNotFound)
	}
	return cards[0], nil
}

// SaveCard stores the scheduling state of a card.
func (s *Store) SaveCard(ctx context.Context, card model.Card) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET in_study_set = ?, last_correct = ?, last_studied = ?, learned_until = ?,
			interval = ?, n_correct = ?, n_wrong = ?
		 WHERE box_id = ? AND key = ?`,
		boolInt(card.InStudySet),
		formatTime(card.LastCorrect),
		formatTime(card.LastStudied),
		formatTime(card.LearnedUntil),
		card.Interval,
		card.Correct,
		card.Wrong,
		card.BoxID,
		card.Key,
	)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("card %q in box %d: %w", card.Key, card.BoxID, err)
	}
	return nil
}

func (s *Store) queryCards(ctx context.Context, where string, args ...any) ([]model.Card, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards `+where, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var cards []model.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func scanCard(row scanner) (model.Card, error) {
	var (
		card                   model.Card
		fields                 string
		enabled, inStudySet    int
		lastCorrect, modified  string
		lastStudied, learnedAt string
	)
	err := row.Scan(&card.BoxID, &card.Key, &fields, &enabled, &inStudySet,
		&lastCorrect, &lastStudied, &learnedAt, &card.Interval, &card.Correct, &card.Wrong, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Card{}, ErrNotFound
	}
	if err != nil {
		return model.Card{}, err
	}
	if err := json.Unmarshal([]byte(fields), &card.Fields); err != nil {
		return model.Card{}, fmt.Errorf("failed to decode card %q fields: %w", card.Key, err)
	}
	card.Enabled = enabled == 1
	card.InStudySet = inStudySet == 1
	for _, ts := range []struct {
		raw string
		dst *time.Time
	}{
		{lastCorrect, &card.LastCorrect},
		{lastStudied, &card.LastStudied},
		{learnedAt, &card.LearnedUntil},
		{modified, &card.Modified},
	} {
		parsed, err := parseTime(ts.raw)
		if err != nil {
			return model.Card{}, err
		}
		*ts.dst = parsed
	}
	return card, nil
}
