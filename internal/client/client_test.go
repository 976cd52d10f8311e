package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/verte-zerg/cardbox/internal/model"
)

func TestNextCardSendsNoCacheRequest(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/box/7/next_card" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("_") == "" {
			t.Errorf("expected cache-busting query parameter")
		}
		if r.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("expected no-cache header")
		}
		gotSession = r.Header.Get(sessionHeader)
		_ = json.NewEncoder(w).Encode(model.CardPayload{
			ID:       "k1",
			BoxID:    7,
			Front:    []string{"hola"},
			Back:     []string{"hello"},
			GradeURL: "/box/7/update_card",
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{Session: "s-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	card, err := c.NextCard(context.Background(), 7)
	if err != nil {
		t.Fatalf("next card: %v", err)
	}
	if card.ID != "k1" || card.GradeURL != "/box/7/update_card" {
		t.Fatalf("unexpected card: %+v", card)
	}
	if gotSession != "s-1" {
		t.Fatalf("expected session header, got %q", gotSession)
	}
}

func TestNextCardEmptyBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.NextCard(context.Background(), 1); !errors.Is(err, ErrNoCard) {
		t.Fatalf("expected ErrNoCard, got %v", err)
	}
	if c.Session() == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestSubmitGradePostsToCardURL(t *testing.T) {
	var gotCard, gotCorrect string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/box/3/update_card" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotCard = r.PostForm.Get("card_id")
		gotCorrect = r.PostForm.Get("correct")
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.SubmitGrade(context.Background(), "/box/3/update_card", "row-1", false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if gotCard != "row-1" || gotCorrect != "false" {
		t.Fatalf("unexpected form card=%q correct=%q", gotCard, gotCorrect)
	}
}

func TestSubmitGradeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{GradeRetries: 2})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.SubmitGrade(context.Background(), "/box/1/update_card", "a", true); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestSubmitGradeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{GradeRetries: 3})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.SubmitGrade(context.Background(), "/box/1/update_card", "a", true)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestNewRejectsBadScheme(t *testing.T) {
	if _, err := New("ftp://example.com", Options{}); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}
