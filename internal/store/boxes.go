package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

const boxColumns = `id, title, columns, front, back, modified, last_studied, time_studied_ms`

// CreateBox inserts a new box and returns its id.
func (s *Store) CreateBox(ctx context.Context, box model.Box) (int64, error) {
	columns, front, back, err := encodeMapping(box)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO boxes (title, columns, front, back, modified, last_studied, time_studied_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		box.Title, columns, front, back,
		formatTime(box.Modified), formatTime(box.LastStudied), box.TimeStudied.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create box %q: %w", box.Title, err)
	}
	return res.LastInsertId()
}

// UpdateBox replaces the title and column mapping of an existing box.
func (s *Store) UpdateBox(ctx context.Context, box model.Box) error {
	columns, front, back, err := encodeMapping(box)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE boxes SET title = ?, columns = ?, front = ?, back = ?, modified = ? WHERE id = ?`,
		box.Title, columns, front, back, formatTime(box.Modified), box.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// TouchBoxStudy stores the study time bookkeeping of a box.
func (s *Store) TouchBoxStudy(ctx context.Context, box model.Box) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE boxes SET last_studied = ?, time_studied_ms = ? WHERE id = ?`,
		formatTime(box.LastStudied), box.TimeStudied.Milliseconds(), box.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// GetBox returns a box by id.
func (s *Store) GetBox(ctx context.Context, id int64) (model.Box, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+boxColumns+` FROM boxes WHERE id = ?`, id)
	box, err := scanBox(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Box{}, fmt.Errorf("box %d: %w", id, ErrNotFound)
	}
	return box, err
}

// ListBoxes returns all boxes ordered by title.
func (s *Store) ListBoxes(ctx context.Context) ([]model.Box, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+boxColumns+` FROM boxes ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var boxes []model.Box
	for rows.Next() {
		box, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boxes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBox(row scanner) (model.Box, error) {
	var (
		box                   model.Box
		columns, front, back  string
		modified, lastStudied string
		timeStudiedMs         int64
	)
	if err := row.Scan(&box.ID, &box.Title, &columns, &front, &back, &modified, &lastStudied, &timeStudiedMs); err != nil {
		return model.Box{}, err
	}
	for _, part := range []struct {
		raw string
		dst *[]string
	}{{columns, &box.Columns}, {front, &box.Front}, {back, &box.Back}} {
		if err := json.Unmarshal([]byte(part.raw), part.dst); err != nil {
			return model.Box{}, fmt.Errorf("failed to decode box %d mapping: %w", box.ID, err)
		}
	}
	var err error
	if box.Modified, err = parseTime(modified); err != nil {
		return model.Box{}, err
	}
	if box.LastStudied, err = parseTime(lastStudied); err != nil {
		return model.Box{}, err
	}
	box.TimeStudied = time.Duration(timeStudiedMs) * time.Millisecond
	return box, nil
}

func encodeMapping(box model.Box) (columns, front, back string, err error) {
	out := make([]string, 3)
	for i, list := range [][]string{box.Columns, box.Front, box.Back} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return "", "", "", err
		}
		out[i] = string(data)
	}
	return out[0], out[1], out[2], nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
