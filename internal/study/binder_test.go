package study

import (
	"testing"

	"github.com/verte-zerg/cardbox/internal/model"
)

func TestBindReplacesHandlerForSameKeys(t *testing.T) {
	b := NewBinder()
	var first, second int
	b.Bind("flip", Shortcut{Keys: "space", Description: "one", Handler: func() { first++ }})
	b.Bind("flip", Shortcut{Keys: "space", Description: "two", Handler: func() { second++ }})

	if !b.Dispatch("space") {
		t.Fatalf("expected space to be bound")
	}
	if first != 0 || second != 1 {
		t.Fatalf("expected only the new handler once, got first=%d second=%d", first, second)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 binding, got %d", b.Len())
	}
}

func TestDispatchUnboundKey(t *testing.T) {
	b := NewBinder()
	if b.Dispatch("x") {
		t.Fatalf("expected no handler for x")
	}
}

func TestHandlerMayRebindItsOwnKey(t *testing.T) {
	b := NewBinder()
	var calls []string
	b.Bind("flip", Shortcut{Keys: "space", Handler: func() {
		calls = append(calls, "flip")
		b.Bind("wrong", Shortcut{Keys: "space", Handler: func() { calls = append(calls, "wrong") }})
	}})
	b.Dispatch("space")
	b.Dispatch("space")
	if len(calls) != 2 || calls[0] != "flip" || calls[1] != "wrong" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestDescribeFollowsBindOrder(t *testing.T) {
	b := NewBinder()
	noop := func() {}
	b.Bind("flip", Shortcut{Keys: "space", Description: "flip", Handler: noop})
	b.Bind("flip", Shortcut{Keys: "enter", Description: "flip", Handler: noop})
	b.Bind("correct", Shortcut{Keys: "space", Description: "answered wrong", Handler: noop})

	help := b.Describe()
	if len(help) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(help))
	}
	if help[0].Keys != "enter" || help[1].Keys != "space" || help[1].Description != "answered wrong" {
		t.Fatalf("unexpected help order: %+v", help)
	}
}

func TestBindIgnoresIncompleteShortcut(t *testing.T) {
	b := NewBinder()
	b.Bind("flip", Shortcut{Keys: "", Handler: func() {}})
	b.Bind("flip", Shortcut{Keys: "space"})
	if b.Len() != 0 {
		t.Fatalf("expected incomplete shortcuts to be ignored")
	}
}

func TestBufferFIFOAndEmpty(t *testing.T) {
	buf := NewBuffer(FIFO)
	if _, ok := buf.Dequeue(); ok {
		t.Fatalf("expected empty buffer")
	}
	buf.Enqueue(model.CardPayload{ID: "a"})
	buf.Enqueue(model.CardPayload{ID: "b"})
	first, _ := buf.Dequeue()
	second, _ := buf.Dequeue()
	if first.ID != "a" || second.ID != "b" {
		t.Fatalf("expected fifo order, got %s %s", first.ID, second.ID)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", buf.Len())
	}
}
