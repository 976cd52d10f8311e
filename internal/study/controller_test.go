package study

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/verte-zerg/cardbox/internal/model"
)

type fakeFetcher struct {
	tickets []Ticket
}

func (f *fakeFetcher) RequestNext(t Ticket) {
	f.tickets = append(f.tickets, t)
}

func (f *fakeFetcher) take(t *testing.T) Ticket {
	t.Helper()
	if len(f.tickets) == 0 {
		t.Fatalf("expected an outstanding fetch")
	}
	tk := f.tickets[0]
	f.tickets = f.tickets[1:]
	return tk
}

type submission struct {
	ticket  Ticket
	card    model.CardPayload
	correct bool
}

type fakeGrader struct {
	submissions []submission
}

func (g *fakeGrader) Submit(t Ticket, card model.CardPayload, correct bool) {
	g.submissions = append(g.submissions, submission{ticket: t, card: card, correct: correct})
}

type fakeRenderer struct {
	card     *model.CardPayload
	side     Side
	renders  int
	clears   int
	rendered bool
}

func (r *fakeRenderer) Render(card model.CardPayload, side Side) {
	r.card = &card
	r.side = side
	r.renders++
	r.rendered = true
}

func (r *fakeRenderer) Clear() {
	r.card = nil
	r.clears++
	r.rendered = false
}

type harness struct {
	c *Controller
	f *fakeFetcher
	g *fakeGrader
	r *fakeRenderer
}

func newHarness(cfg Config) harness {
	f := &fakeFetcher{}
	g := &fakeGrader{}
	r := &fakeRenderer{}
	return harness{c: NewController("session-1", cfg, f, g, r), f: f, g: g, r: r}
}

func testCard(id string) model.CardPayload {
	return model.CardPayload{
		ID:       id,
		BoxID:    1,
		Front:    []string{"front " + id},
		Back:     []string{"back " + id},
		GradeURL: "/box/1/update_card",
	}
}

func checkIdleInvariant(t *testing.T, h harness) {
	t.Helper()
	idle := h.c.State() == Idle
	if idle == h.r.rendered {
		t.Fatalf("state %s but rendered=%v", h.c.State(), h.r.rendered)
	}
	if _, ok := h.c.Current(); ok == idle {
		t.Fatalf("state %s but current card present=%v", h.c.State(), ok)
	}
}

func TestUpdateIssuesSingleFetchByDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = 4
	h := newHarness(cfg)

	h.c.Update()
	if len(h.f.tickets) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(h.f.tickets))
	}
	if h.c.State() != Idle {
		t.Fatalf("expected idle, got %s", h.c.State())
	}
	checkIdleInvariant(t, h)
}

func TestUpdateIssuesConcurrentFetchesUpToTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = 4
	cfg.MaxInFlight = 4
	h := newHarness(cfg)

	h.c.Update()
	if len(h.f.tickets) != 4 {
		t.Fatalf("expected 4 fetches, got %d", len(h.f.tickets))
	}
	h.c.Fetched(h.f.take(t), testCard("a"), nil)
	// The card is shown, so the buffer is empty again with 3 outstanding.
	if h.c.InFlight() > cfg.Target-h.c.Buffered() {
		t.Fatalf("in flight %d exceeds target-size %d", h.c.InFlight(), cfg.Target-h.c.Buffered())
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.Update()
	h.c.Update()
	h.c.Update()
	if len(h.f.tickets) != 1 {
		t.Fatalf("expected 1 fetch after repeated updates, got %d", len(h.f.tickets))
	}
	h.c.Fetched(h.f.take(t), testCard("a"), nil)
	renders := h.r.renders
	issued := len(h.f.tickets)
	h.c.Update()
	h.c.Update()
	if h.r.renders != renders {
		t.Fatalf("repeated update re-rendered card")
	}
	if len(h.f.tickets) != issued {
		t.Fatalf("repeated update issued %d extra fetches", len(h.f.tickets)-issued)
	}
}

func TestIdleWithBufferedCardShowsFront(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))

	h.c.Update()
	if h.c.State() != ShowingFront {
		t.Fatalf("expected front, got %s", h.c.State())
	}
	card, ok := h.c.Current()
	if !ok || card.ID != "card1" {
		t.Fatalf("expected card1 displayed, got %+v", card)
	}
	if h.c.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", h.c.Buffered())
	}
	if h.r.side != Front {
		t.Fatalf("expected front side rendered")
	}
	for _, k := range []string{"space", "enter"} {
		if action, ok := h.c.Keys().Bound(k); !ok || action != ActionFlip {
			t.Fatalf("expected %s bound to flip, got %q", k, action)
		}
	}
	checkIdleInvariant(t, h)
}

func TestFlipRebindsKeysToGrades(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()

	if !h.c.Keys().Dispatch("space") {
		t.Fatalf("expected space to be bound")
	}
	if h.c.State() != ShowingBack {
		t.Fatalf("expected back, got %s", h.c.State())
	}
	if h.r.side != Back {
		t.Fatalf("expected back side rendered")
	}
	if action, _ := h.c.Keys().Bound("enter"); action != ActionCorrect {
		t.Fatalf("expected enter bound to correct, got %q", action)
	}
	if action, _ := h.c.Keys().Bound("space"); action != ActionWrong {
		t.Fatalf("expected space bound to wrong, got %q", action)
	}
	if len(h.g.submissions) != 0 {
		t.Fatalf("flip must not submit a grade")
	}
}

func TestGradeWrongSubmitsAndShowsNextCard(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.buffer.Enqueue(testCard("card2"))
	h.c.Update()
	h.c.Keys().Dispatch("enter")

	h.c.Keys().Dispatch("space")
	if len(h.g.submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(h.g.submissions))
	}
	sub := h.g.submissions[0]
	if sub.correct || sub.card.ID != "card1" || sub.card.GradeURL != "/box/1/update_card" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if h.c.State() != ShowingFront {
		t.Fatalf("expected next card shown in the same tick, got %s", h.c.State())
	}
	if card, _ := h.c.Current(); card.ID != "card2" {
		t.Fatalf("expected card2, got %s", card.ID)
	}
	if h.r.clears != 1 {
		t.Fatalf("expected display cleared once, got %d", h.r.clears)
	}
	checkIdleInvariant(t, h)
}

func TestGradeCorrectReturnsToIdleWhenBufferEmpty(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()
	h.c.Flip()
	h.c.Grade(true)

	if !h.g.submissions[0].correct {
		t.Fatalf("expected correct=true submission")
	}
	if h.c.State() != Idle {
		t.Fatalf("expected idle, got %s", h.c.State())
	}
	if h.c.Keys().Len() != 0 {
		t.Fatalf("expected no live bindings while idle, got %d", h.c.Keys().Len())
	}
	checkIdleInvariant(t, h)
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.Flip()
	h.c.Grade(true)
	if h.c.State() != Idle || len(h.g.submissions) != 0 {
		t.Fatalf("flip/grade while idle must be no-ops")
	}
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()
	h.c.Grade(false)
	if h.c.State() != ShowingFront || len(h.g.submissions) != 0 {
		t.Fatalf("grade before flip must be a no-op")
	}
	h.c.Flip()
	h.c.Flip()
	if h.c.State() != ShowingBack {
		t.Fatalf("second flip must be a no-op")
	}
	if got := h.c.Stats().Invalid; got != 4 {
		t.Fatalf("expected 4 invalid transitions, got %d", got)
	}
}

func TestFetchCompletionsInAnyOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = 6
	cfg.MaxInFlight = 6
	h := newHarness(cfg)
	// Hold a card on screen so completions accumulate in the buffer.
	h.c.buffer.Enqueue(testCard("shown"))
	h.c.Update()

	tickets := append([]Ticket(nil), h.f.tickets...)
	h.f.tickets = nil
	if len(tickets) != 6 {
		t.Fatalf("expected 6 fetches, got %d", len(tickets))
	}
	order := []int{3, 0, 5, 1}
	for _, idx := range order {
		h.c.Fetched(tickets[idx], testCard(fmt.Sprintf("c%d", idx)), nil)
	}
	h.c.Fetched(tickets[2], model.CardPayload{}, errors.New("boom"))
	if h.c.Buffered() != len(order) {
		t.Fatalf("expected %d buffered, got %d", len(order), h.c.Buffered())
	}
	dequeues := 0
	for h.c.Buffered() > 0 {
		h.c.Flip()
		h.c.Grade(true)
		dequeues++
		if h.c.Buffered() < 0 {
			t.Fatalf("negative buffer size")
		}
	}
	if dequeues != len(order) {
		t.Fatalf("expected %d dequeues, got %d", len(order), dequeues)
	}
	if h.c.InFlight() > cfg.Target-h.c.Buffered() {
		t.Fatalf("in flight %d exceeds %d", h.c.InFlight(), cfg.Target-h.c.Buffered())
	}
}

func TestLateCompletionMayOverflowTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = 2
	cfg.MaxInFlight = 2
	h := newHarness(cfg)
	h.c.buffer.Enqueue(testCard("shown"))
	h.c.Update()
	first, second := h.f.take(t), h.f.take(t)
	h.c.buffer.Enqueue(testCard("extra"))
	h.c.buffer.Enqueue(testCard("extra2"))

	h.c.Fetched(first, testCard("late1"), nil)
	h.c.Fetched(second, testCard("late2"), nil)
	if h.c.Buffered() != 4 {
		t.Fatalf("expected momentary overflow to 4, got %d", h.c.Buffered())
	}
	if len(h.f.tickets) != 0 {
		t.Fatalf("no fetch expected above target, got %d", len(h.f.tickets))
	}
}

func TestCompletionAfterCloseIsDiscarded(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.Update()
	tk := h.f.take(t)

	h.c.Close()
	h.c.Fetched(tk, testCard("late"), nil)
	if h.c.Buffered() != 0 {
		t.Fatalf("stale completion mutated buffer")
	}
	if h.c.State() != Idle || h.r.renders != 0 {
		t.Fatalf("stale completion mutated state")
	}
	if h.c.Stats().Stale != 1 {
		t.Fatalf("expected 1 stale completion, got %d", h.c.Stats().Stale)
	}
	h.c.Update()
	if len(h.f.tickets) != 0 {
		t.Fatalf("closed session must not fetch")
	}
}

func TestForeignAndDuplicateTicketsAreDiscarded(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.Update()
	tk := h.f.take(t)

	foreign := tk
	foreign.Session = "other"
	h.c.Fetched(foreign, testCard("x"), nil)
	h.c.Fetched(tk, testCard("a"), nil)
	h.c.Fetched(tk, testCard("b"), nil)
	if got := h.c.Stats(); got.Fetched != 1 || got.Stale != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestFetchFailureRetriesWithBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryBase = 100 * time.Millisecond
	cfg.RetryMax = 300 * time.Millisecond
	h := newHarness(cfg)
	h.c.Update()

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, delay := range want {
		h.c.Fetched(h.f.take(t), model.CardPayload{}, errors.New("offline"))
		next := h.f.tickets[0]
		if next.Delay != delay {
			t.Fatalf("retry %d: expected delay %s, got %s", i, delay, next.Delay)
		}
	}
	if h.c.LastFetchError() == nil {
		t.Fatalf("expected last fetch error")
	}
	h.c.Fetched(h.f.take(t), testCard("ok"), nil)
	if h.c.LastFetchError() != nil {
		t.Fatalf("expected fetch error cleared")
	}
	if h.f.tickets[0].Delay != 0 {
		t.Fatalf("expected backoff reset, got %s", h.f.tickets[0].Delay)
	}
	if h.c.State() != ShowingFront {
		t.Fatalf("expected card shown after recovery")
	}
}

func TestGradeFailureIsSurfacedWithoutBlocking(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.buffer.Enqueue(testCard("card2"))
	h.c.Update()
	h.c.Flip()
	h.c.Grade(true)

	h.c.Graded(h.g.submissions[0].ticket, errors.New("server down"))
	if h.c.LastGradeError() == nil {
		t.Fatalf("expected grade error to be kept")
	}
	if h.c.State() != ShowingFront {
		t.Fatalf("grade failure must not block the next card")
	}
	h.c.Flip()
	h.c.Grade(false)
	h.c.Graded(h.g.submissions[1].ticket, nil)
	if h.c.LastGradeError() != nil {
		t.Fatalf("expected grade error cleared")
	}
	if h.c.LastGradeFailure() == nil {
		t.Fatalf("expected session to remember the failed grade")
	}
	if got := h.c.Stats(); got.Graded != 1 || got.GradeFailures != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestLIFOShowsNewestCard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discipline = LIFO
	h := newHarness(cfg)
	h.c.buffer.Enqueue(testCard("old"))
	h.c.buffer.Enqueue(testCard("new"))
	h.c.Update()
	if card, _ := h.c.Current(); card.ID != "new" {
		t.Fatalf("expected newest card, got %s", card.ID)
	}
}

func TestCloseClearsDisplayAndBindings(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()
	h.c.Close()
	if h.r.rendered || h.c.Keys().Len() != 0 || h.c.Alive() {
		t.Fatalf("close must clear display and bindings")
	}
	if h.c.Keys().Dispatch("space") {
		t.Fatalf("no handler may fire after close")
	}
}

func TestFlipDropsKeysOnlyBoundToFlip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlipKeys = []string{"f", "enter"}
	h := newHarness(cfg)
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()
	h.c.Flip()

	if _, ok := h.c.Keys().Bound("f"); ok {
		t.Fatalf("expected f unbound on the back side")
	}
	for _, help := range h.c.Keys().Describe() {
		if help.Action == ActionFlip {
			t.Fatalf("flip still listed in help: %+v", help)
		}
	}
	if action, _ := h.c.Keys().Bound("enter"); action != ActionCorrect {
		t.Fatalf("expected enter bound to correct, got %q", action)
	}
}

func TestStopDiscardsFetchesButAppliesGrades(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.Update()
	fetch := h.f.take(t)
	h.c.Flip()
	h.c.Grade(true)
	h.f.tickets = nil

	h.c.Stop()
	if !h.c.Alive() || !h.c.Stopping() || h.c.PendingGrades() != 1 {
		t.Fatalf("unexpected state after stop: alive=%v stopping=%v pending=%d", h.c.Alive(), h.c.Stopping(), h.c.PendingGrades())
	}
	if h.r.rendered || h.c.Keys().Len() != 0 {
		t.Fatalf("stop must clear display and bindings")
	}
	h.c.Fetched(fetch, testCard("late"), nil)
	h.c.Update()
	if h.c.Buffered() != 0 || h.r.renders != 2 || len(h.f.tickets) != 0 {
		t.Fatalf("stopped session must not buffer, show or fetch cards")
	}

	h.c.Graded(h.g.submissions[0].ticket, errors.New("server down"))
	if h.c.PendingGrades() != 0 || h.c.LastGradeError() == nil || h.c.Stats().GradeFailures != 1 {
		t.Fatalf("expected grade failure applied while stopping, stats=%+v", h.c.Stats())
	}
	h.c.Close()
	if h.c.Stats().GradeFailures != 1 {
		t.Fatalf("settled grades must not be counted again")
	}
}

func TestCloseCountsUnfinishedGrades(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.c.buffer.Enqueue(testCard("card1"))
	h.c.buffer.Enqueue(testCard("card2"))
	h.c.Update()
	h.c.Flip()
	h.c.Grade(true)
	h.c.Flip()
	h.c.Grade(false)

	h.c.Close()
	if !errors.Is(h.c.LastGradeError(), ErrGradeUnfinished) || !errors.Is(h.c.LastGradeFailure(), ErrGradeUnfinished) {
		t.Fatalf("expected unfinished grade error, got %v", h.c.LastGradeError())
	}
	if got := h.c.Stats(); got.GradeFailures != 2 || h.c.PendingGrades() != 0 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	h.c.Graded(h.g.submissions[0].ticket, nil)
	if h.c.Stats().Graded != 0 || h.c.Stats().Stale != 1 {
		t.Fatalf("late grade after close must be stale")
	}
}
