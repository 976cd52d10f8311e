package factsheet

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

// Target is the storage a factsheet is imported into.
type Target interface {
	CreateBox(ctx context.Context, box model.Box) (int64, error)
	GetBox(ctx context.Context, id int64) (model.Box, error)
	UpdateBox(ctx context.Context, box model.Box) error
	UpsertCards(ctx context.Context, boxID int64, cards []model.Card, now time.Time) (added, updated int, err error)
	DisableMissing(ctx context.Context, boxID int64, keep []string) (int, error)
}

// ImportResult reports what an import changed.
type ImportResult struct {
	BoxID    int64
	Created  bool
	Added    int
	Updated  int
	Disabled int
}

// Import writes the factsheet into box boxID, or into a new box when boxID is 0.
// Cards whose rows disappeared are disabled, not deleted.
func Import(ctx context.Context, dst Target, fs *Factsheet, boxID int64, now time.Time) (ImportResult, error) {
	rows, err := fs.Parsed()
	if err != nil {
		return ImportResult{}, err
	}
	box := model.Box{
		ID:       boxID,
		Title:    fs.Title,
		Columns:  fs.Columns,
		Front:    fs.Front,
		Back:     fs.BackColumns(),
		Modified: now,
	}
	res := ImportResult{BoxID: boxID}
	if boxID == 0 {
		id, err := dst.CreateBox(ctx, box)
		if err != nil {
			return ImportResult{}, err
		}
		res.BoxID = id
		res.Created = true
	} else {
		if _, err := dst.GetBox(ctx, boxID); err != nil {
			return ImportResult{}, err
		}
		if err := dst.UpdateBox(ctx, box); err != nil {
			return ImportResult{}, fmt.Errorf("failed to update box %d: %w", boxID, err)
		}
	}

	cards := make([]model.Card, 0, len(rows))
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, model.Card{BoxID: res.BoxID, Key: row.Key, Fields: row.Fields})
		keys = append(keys, row.Key)
	}
	res.Added, res.Updated, err = dst.UpsertCards(ctx, res.BoxID, cards, now)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to store cards: %w", err)
	}
	res.Disabled, err = dst.DisableMissing(ctx, res.BoxID, keys)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to disable removed cards: %w", err)
	}
	return res, nil
}
