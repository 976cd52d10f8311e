package study

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

// State is the display state of a study session.
type State int

const (
	// Idle means no card is displayed.
	Idle State = iota
	// ShowingFront means the front of the current card is displayed.
	ShowingFront
	// ShowingBack means the back of the current card is displayed.
	ShowingBack
)

func (s State) String() string {
	switch s {
	case ShowingFront:
		return "front"
	case ShowingBack:
		return "back"
	default:
		return "idle"
	}
}

// Side selects which face of a card to render.
type Side int

const (
	// Front is the question side.
	Front Side = iota
	// Back is the answer side.
	Back
)

// ErrGradeUnfinished reports grade submissions still pending when the session
// was closed.
var ErrGradeUnfinished = errors.New("grade submission did not finish")

// Action names used for key bindings.
const (
	ActionFlip    = "flip"
	ActionCorrect = "correct"
	ActionWrong   = "wrong"
)

// Ticket identifies one asynchronous request issued by a controller.
type Ticket struct {
	Session string
	Seq     uint64
	Delay   time.Duration
}

// Fetcher starts asynchronous "next card" requests. Results are reported back
// through Controller.Fetched on the controller's loop.
type Fetcher interface {
	RequestNext(t Ticket)
}

// Grader starts asynchronous grade submissions. Results are reported back
// through Controller.Graded on the controller's loop.
type Grader interface {
	Submit(t Ticket, card model.CardPayload, correct bool)
}

// Renderer displays the current card.
type Renderer interface {
	Render(card model.CardPayload, side Side)
	Clear()
}

// Config holds controller settings.
type Config struct {
	Target      int
	MaxInFlight int
	Discipline  Discipline
	FlipKeys    []string
	CorrectKeys []string
	WrongKeys   []string
	RetryBase   time.Duration
	RetryMax    time.Duration
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Target:      5,
		MaxInFlight: 1,
		Discipline:  FIFO,
		FlipKeys:    []string{"space", "enter"},
		CorrectKeys: []string{"enter"},
		WrongKeys:   []string{"space"},
		RetryBase:   250 * time.Millisecond,
		RetryMax:    10 * time.Second,
	}
}

// Stats counts controller events.
type Stats struct {
	Fetched       int
	FetchFailures int
	Graded        int
	GradeFailures int
	Stale         int
	Invalid       int
}

// Controller drives a study session. It is not safe for concurrent use; all
// calls must happen on one loop.
type Controller struct {
	cfg      Config
	session  string
	alive    bool
	stopping bool
	buffer   *Buffer
	binder   *Binder
	fetcher  Fetcher
	grader   Grader
	renderer Renderer

	state   State
	current *model.CardPayload

	seq          uint64
	inFlight     map[uint64]struct{}
	grading      map[uint64]struct{}
	failures     int
	lastFetchErr error
	lastGradeErr error
	gradeFailure error
	stats        Stats
}

// NewController builds a controller for one session. Call Update to start it.
func NewController(session string, cfg Config, fetcher Fetcher, grader Grader, renderer Renderer) *Controller {
	def := DefaultConfig()
	if cfg.Target <= 0 {
		cfg.Target = def.Target
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if len(cfg.FlipKeys) == 0 {
		cfg.FlipKeys = def.FlipKeys
	}
	if len(cfg.CorrectKeys) == 0 {
		cfg.CorrectKeys = def.CorrectKeys
	}
	if len(cfg.WrongKeys) == 0 {
		cfg.WrongKeys = def.WrongKeys
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = cfg.RetryBase
	}
	return &Controller{
		cfg:      cfg,
		session:  session,
		alive:    true,
		buffer:   NewBuffer(cfg.Discipline),
		binder:   NewBinder(),
		fetcher:  fetcher,
		grader:   grader,
		renderer: renderer,
		inFlight: map[uint64]struct{}{},
		grading:  map[uint64]struct{}{},
	}
}

// Update shows a buffered card when idle and tops up outstanding fetches.
// Calling it again without new events changes nothing.
func (c *Controller) Update() {
	if !c.alive || c.stopping {
		return
	}
	if c.state == Idle {
		c.popBuffer()
	}
	c.topUp()
}

// Fetched applies the result of a fetch started with RequestNext.
func (c *Controller) Fetched(t Ticket, card model.CardPayload, err error) {
	if !c.owns(t, c.inFlight) {
		c.stats.Stale++
		return
	}
	delete(c.inFlight, t.Seq)
	if c.stopping {
		c.stats.Stale++
		return
	}
	if err != nil {
		c.failures++
		c.lastFetchErr = err
		c.stats.FetchFailures++
	} else {
		c.failures = 0
		c.lastFetchErr = nil
		c.buffer.Enqueue(card)
		c.stats.Fetched++
	}
	c.Update()
}

// Graded applies the result of a grade submission.
func (c *Controller) Graded(t Ticket, err error) {
	if !c.owns(t, c.grading) {
		c.stats.Stale++
		return
	}
	delete(c.grading, t.Seq)
	if err != nil {
		c.lastGradeErr = err
		c.gradeFailure = err
		c.stats.GradeFailures++
		return
	}
	c.lastGradeErr = nil
	c.stats.Graded++
}

// Flip reveals the back of the current card.
func (c *Controller) Flip() {
	if !c.alive || c.state != ShowingFront {
		c.stats.Invalid++
		return
	}
	c.state = ShowingBack
	c.renderer.Render(*c.current, Back)
	for _, k := range c.cfg.FlipKeys {
		c.binder.Unbind(k)
	}
	c.bindAll(ActionCorrect, c.cfg.CorrectKeys, "answered correctly", func() { c.Grade(true) })
	c.bindAll(ActionWrong, c.cfg.WrongKeys, "answered wrong", func() { c.Grade(false) })
}

// Grade submits the answer for the current card and moves to the next one.
func (c *Controller) Grade(correct bool) {
	if !c.alive || c.state != ShowingBack {
		c.stats.Invalid++
		return
	}
	card := *c.current
	t := c.nextTicket(0)
	c.grading[t.Seq] = struct{}{}
	c.grader.Submit(t, card, correct)

	c.current = nil
	c.state = Idle
	c.binder.Reset()
	c.renderer.Clear()
	c.Update()
}

// Stop takes the session away from the user while grade submissions settle:
// bindings and the display are cleared and no more cards are fetched or shown.
// Graded still applies; Close finishes the teardown.
func (c *Controller) Stop() {
	if !c.alive || c.stopping {
		return
	}
	c.stopping = true
	c.binder.Reset()
	c.buffer.Drain()
	if c.current != nil {
		c.renderer.Clear()
	}
	c.current = nil
	c.state = Idle
}

// Close tears the session down. Later completions are discarded and grades
// still pending are counted as failures with ErrGradeUnfinished.
func (c *Controller) Close() {
	if !c.alive {
		return
	}
	c.alive = false
	if n := len(c.grading); n > 0 {
		c.stats.GradeFailures += n
		c.lastGradeErr = fmt.Errorf("%w: %d pending", ErrGradeUnfinished, n)
		c.gradeFailure = c.lastGradeErr
		c.grading = map[uint64]struct{}{}
	}
	c.binder.Reset()
	c.buffer.Drain()
	if c.current != nil {
		c.renderer.Clear()
	}
	c.current = nil
	c.state = Idle
}

// Keys returns the session's shortcut binder.
func (c *Controller) Keys() *Binder {
	return c.binder
}

// State returns the current display state.
func (c *Controller) State() State {
	return c.state
}

// Current returns the displayed card.
func (c *Controller) Current() (model.CardPayload, bool) {
	if c.current == nil {
		return model.CardPayload{}, false
	}
	return *c.current, true
}

// Buffered returns the number of cards waiting to be shown.
func (c *Controller) Buffered() int {
	return c.buffer.Len()
}

// InFlight returns the number of outstanding fetches.
func (c *Controller) InFlight() int {
	return len(c.inFlight)
}

// Target returns the buffer target fill.
func (c *Controller) Target() int {
	return c.cfg.Target
}

// Alive reports whether the session has not been closed.
func (c *Controller) Alive() bool {
	return c.alive
}

// Stopping reports whether Stop was called.
func (c *Controller) Stopping() bool {
	return c.stopping
}

// PendingGrades returns the number of grade submissions without a result.
func (c *Controller) PendingGrades() int {
	return len(c.grading)
}

// Session returns the session identifier stamped on tickets.
func (c *Controller) Session() string {
	return c.session
}

// Stats returns event counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// LastFetchError returns the error of the latest failed fetch, cleared by a
// successful one.
func (c *Controller) LastFetchError() error {
	return c.lastFetchErr
}

// LastGradeError returns the error of the latest failed grade submission,
// cleared by a successful one.
func (c *Controller) LastGradeError() error {
	return c.lastGradeErr
}

// LastGradeFailure returns the latest grade failure of the session. Unlike
// LastGradeError it is never cleared.
func (c *Controller) LastGradeFailure() error {
	return c.gradeFailure
}

func (c *Controller) popBuffer() {
	card, ok := c.buffer.Dequeue()
	if !ok {
		return
	}
	c.current = &card
	c.state = ShowingFront
	c.renderer.Render(card, Front)
	c.bindAll(ActionFlip, c.cfg.FlipKeys, "flip the current card", c.Flip)
}

func (c *Controller) topUp() {
	need := c.cfg.Target - c.buffer.Len() - len(c.inFlight)
	slots := c.cfg.MaxInFlight - len(c.inFlight)
	if slots < need {
		need = slots
	}
	for i := 0; i < need; i++ {
		t := c.nextTicket(c.retryDelay())
		c.inFlight[t.Seq] = struct{}{}
		c.fetcher.RequestNext(t)
	}
}

func (c *Controller) retryDelay() time.Duration {
	if c.failures == 0 {
		return 0
	}
	delay := c.cfg.RetryBase
	for i := 1; i < c.failures; i++ {
		delay *= 2
		if delay >= c.cfg.RetryMax {
			return c.cfg.RetryMax
		}
	}
	return delay
}

func (c *Controller) nextTicket(delay time.Duration) Ticket {
	c.seq++
	return Ticket{Session: c.session, Seq: c.seq, Delay: delay}
}

func (c *Controller) owns(t Ticket, pending map[uint64]struct{}) bool {
	if !c.alive || t.Session != c.session {
		return false
	}
	_, ok := pending[t.Seq]
	return ok
}

func (c *Controller) bindAll(action string, keys []string, description string, handler func()) {
	for _, k := range keys {
		c.binder.Bind(action, Shortcut{Keys: k, Description: description, Handler: handler})
	}
}
