// Package model defines shared data structures.
package model

import "time"

// NumIntervals is the number of scheduling intervals a card moves through.
const NumIntervals = 12

// StudyConfig defines study session settings.
type StudyConfig struct {
	Server       string
	BoxID        int64
	StackSize    int
	MaxInFlight  int
	LIFO         bool
	ShowStack    bool
	FlipKeys     []string
	CorrectKeys  []string
	WrongKeys    []string
	GradeRetries int
	Timeout      time.Duration
}

// ServerConfig defines card server settings.
type ServerConfig struct {
	Addr   string
	DBPath string
}

// CardPayload is a card as delivered to a study session.
type CardPayload struct {
	ID       string   `json:"card_id"`
	BoxID    int64    `json:"box_id"`
	Front    []string `json:"front"`
	Back     []string `json:"back"`
	Info     CardInfo `json:"card_info"`
	Box      BoxInfo  `json:"box_info"`
	GradeURL string   `json:"grade_url"`
}

// CardInfo is per-card metadata shown next to a card.
type CardInfo struct {
	Interval     int       `json:"interval"`
	Correct      int       `json:"n_correct"`
	Wrong        int       `json:"n_wrong"`
	LearnedUntil time.Time `json:"learned_until"`
	LastStudied  time.Time `json:"last_studied"`
}

// BoxInfo is box metadata shown next to a card.
type BoxInfo struct {
	Title          string  `json:"title"`
	Cards          int     `json:"n_cards"`
	Learned        int     `json:"n_learned"`
	PercentLearned float64 `json:"percent_learned"`
}

// Box is a collection of cards studied together.
type Box struct {
	ID          int64
	Title       string
	Columns     []string
	Front       []string
	Back        []string
	Modified    time.Time
	LastStudied time.Time
	TimeStudied time.Duration
}

// Card is the stored scheduling state of one row of a box.
type Card struct {
	BoxID        int64
	Key          string
	Fields       map[string]string
	Enabled      bool
	InStudySet   bool
	LastCorrect  time.Time
	LastStudied  time.Time
	LearnedUntil time.Time
	Interval     int
	Correct      int
	Wrong        int
	Modified     time.Time
}

// HistoryEntry records the state of a card after an answer.
type HistoryEntry struct {
	BoxID        int64     `yaml:"-"`
	CardKey      string    `yaml:"-"`
	AnsweredAt   time.Time `yaml:"answered_at"`
	Correct      bool      `yaml:"correct"`
	NCorrect     int       `yaml:"n_correct"`
	NWrong       int       `yaml:"n_wrong"`
	Interval     int       `yaml:"interval"`
	LearnedUntil time.Time `yaml:"learned_until"`
}

// BoxStats summarizes the learning state of a box.
type BoxStats struct {
	BoxID          int64         `json:"box_id"`
	Title          string        `json:"title"`
	Cards          int           `json:"n_cards"`
	Learned        int           `json:"n_learned"`
	PercentLearned float64       `json:"percent_learned"`
	TimeStudied    time.Duration `json:"time_studied"`
	LastStudied    time.Time     `json:"last_studied"`
}

// DailyActivity aggregates answers given on one day.
type DailyActivity struct {
	Day     time.Time
	Answers int
	Correct int
}
