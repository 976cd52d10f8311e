// Package scheduler picks the next card to study and reschedules answered cards.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

const (
	// StudySetSize is the number of cards focused on at once.
	StudySetSize = 10
	// FallbackPool is how many earliest-due cards are considered when the
	// study set is empty.
	FallbackPool = 20
	// IntervalDays is the number of days added per interval step.
	IntervalDays = 4
	// StudyGap is the longest pause between answers still counted as study time.
	StudyGap = 5 * time.Minute
)

// ErrEmptyBox is returned when a box has no enabled cards.
var ErrEmptyBox = errors.New("box has no cards")

// CardSource is the storage the scheduler reads and updates.
type CardSource interface {
	StudySet(ctx context.Context, boxID int64, limit int) ([]model.Card, error)
	RefillCandidates(ctx context.Context, boxID int64, now time.Time, limit int) ([]model.Card, error)
	EarliestDue(ctx context.Context, boxID int64, limit int) ([]model.Card, error)
	SaveCard(ctx context.Context, card model.Card) error
}

// Scheduler chooses cards with a seeded random source.
type Scheduler struct {
	rnd *rand.Rand
	now func() time.Time
}

// New returns a Scheduler seeded with the current time.
func New() *Scheduler {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), time.Now)
}

// NewWithSource returns a Scheduler using the given random source and clock.
func NewWithSource(src rand.Source, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{rnd: rand.New(src), now: now}
}

// Now returns the scheduler clock truncated to seconds.
func (s *Scheduler) Now() time.Time {
	return s.now().Truncate(time.Second)
}

// Next picks the card to study next and marks it as studied.
func (s *Scheduler) Next(ctx context.Context, src CardSource, boxID int64) (model.Card, error) {
	now := s.Now()
	set, err := src.StudySet(ctx, boxID, StudySetSize)
	if err != nil {
		return model.Card{}, err
	}
	if len(set) < StudySetSize/2 {
		candidates, err := src.RefillCandidates(ctx, boxID, now, StudySetSize*10)
		if err != nil {
			return model.Card{}, err
		}
		for _, card := range s.Sample(candidates, StudySetSize) {
			card.InStudySet = true
			if err := src.SaveCard(ctx, card); err != nil {
				return model.Card{}, err
			}
			set = append(set, card)
		}
	}

	var next model.Card
	if len(set) == 0 {
		due, err := src.EarliestDue(ctx, boxID, FallbackPool)
		if err != nil {
			return model.Card{}, err
		}
		if len(due) == 0 {
			return model.Card{}, ErrEmptyBox
		}
		next = due[s.rnd.Intn(len(due))]
	} else {
		next = s.Choose(set)
	}
	next.LastStudied = now
	if err := src.SaveCard(ctx, next); err != nil {
		return model.Card{}, err
	}
	return next, nil
}

// Sample returns up to n cards chosen at random without replacement.
func (s *Scheduler) Sample(cards []model.Card, n int) []model.Card {
	if n > len(cards) {
		n = len(cards)
	}
	idx := s.rnd.Perm(len(cards))[:n]
	out := make([]model.Card, 0, n)
	for _, i := range idx {
		out = append(out, cards[i])
	}
	return out
}

// Choose picks among the least recently studied half of the set.
func (s *Scheduler) Choose(set []model.Card) model.Card {
	sorted := make([]model.Card, len(set))
	copy(sorted, set)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastStudied.Before(sorted[j].LastStudied)
	})
	pool := len(sorted)/2 + 1
	return sorted[s.rnd.Intn(pool)]
}

// Answer applies a correct or wrong answer to card and returns the history
// entry describing its new state.
func (s *Scheduler) Answer(card *model.Card, correct bool) model.HistoryEntry {
	now := s.Now()
	card.LastStudied = now
	if correct {
		card.LastCorrect = now
		card.Correct++
		card.Interval++
		card.InStudySet = false
	} else {
		card.Wrong++
		card.Interval--
	}
	card.Interval = clampInterval(card.Interval)
	card.LearnedUntil = Reschedule(*card)
	return model.HistoryEntry{
		BoxID:        card.BoxID,
		CardKey:      card.Key,
		AnsweredAt:   now,
		Correct:      correct,
		NCorrect:     card.Correct,
		NWrong:       card.Wrong,
		Interval:     card.Interval,
		LearnedUntil: card.LearnedUntil,
	}
}

// Reschedule returns when card stops being due.
func Reschedule(card model.Card) time.Time {
	soonest := card.LastStudied.Add(time.Minute)
	learned := card.LastCorrect.AddDate(0, 0, (card.Interval-1)*IntervalDays)
	if learned.After(soonest) {
		return learned.Truncate(time.Second)
	}
	return soonest.Truncate(time.Second)
}

// TrackStudyTime adds the pause since the last answer to the box study time
// when it is short enough to count as continuous study.
func (s *Scheduler) TrackStudyTime(box *model.Box) {
	now := s.Now()
	if gap := now.Sub(box.LastStudied); gap >= 0 && gap < StudyGap {
		box.TimeStudied += gap
	}
	box.LastStudied = now
}

func clampInterval(interval int) int {
	if interval < 1 {
		return 1
	}
	if interval > model.NumIntervals {
		return model.NumIntervals
	}
	return interval
}
