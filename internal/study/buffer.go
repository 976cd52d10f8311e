// Package study implements the card study session controller.
package study

import "github.com/verte-zerg/cardbox/internal/model"

// Discipline selects which buffered card is shown next.
type Discipline int

const (
	// FIFO shows the oldest fetched card first.
	FIFO Discipline = iota
	// LIFO shows the most recently fetched card first.
	LIFO
)

func (d Discipline) String() string {
	if d == LIFO {
		return "lifo"
	}
	return "fifo"
}

// Buffer holds fetched cards that have not been shown yet.
type Buffer struct {
	cards      []model.CardPayload
	discipline Discipline
}

// NewBuffer returns an empty buffer using the given discipline.
func NewBuffer(d Discipline) *Buffer {
	return &Buffer{discipline: d}
}

// Enqueue appends a card.
func (b *Buffer) Enqueue(card model.CardPayload) {
	b.cards = append(b.cards, card)
}

// Dequeue removes and returns the next card. It reports false when empty.
func (b *Buffer) Dequeue() (model.CardPayload, bool) {
	if len(b.cards) == 0 {
		return model.CardPayload{}, false
	}
	var card model.CardPayload
	if b.discipline == LIFO {
		last := len(b.cards) - 1
		card = b.cards[last]
		b.cards[last] = model.CardPayload{}
		b.cards = b.cards[:last]
		return card, true
	}
	card = b.cards[0]
	b.cards[0] = model.CardPayload{}
	b.cards = b.cards[1:]
	return card, true
}

// Len returns the number of buffered cards.
func (b *Buffer) Len() int {
	return len(b.cards)
}

// Drain drops every buffered card.
func (b *Buffer) Drain() {
	b.cards = nil
}
