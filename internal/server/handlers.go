package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/cardbox/internal/factsheet"
	"github.com/verte-zerg/cardbox/internal/model"
	"github.com/verte-zerg/cardbox/internal/scheduler"
	"github.com/verte-zerg/cardbox/internal/store"
)

// GradeURL returns the path a grade for a card of box id is posted to.
func GradeURL(id int64) string {
	return fmt.Sprintf("/box/%d/update_card", id)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if _, err := fmt.Fprintln(w, "OK"); err != nil {
		log.Printf("[http] health write failed: %v", err)
	}
}

func (s *Server) listBoxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := s.store.ListBoxes(r.Context())
	if err != nil {
		s.fail(w, "list boxes", err)
		return
	}
	now := s.sched.Now()
	out := make([]model.BoxStats, 0, len(boxes))
	for _, box := range boxes {
		stats, err := s.store.BoxStats(r.Context(), box.ID, now)
		if err != nil {
			s.fail(w, "box stats", err)
			return
		}
		out = append(out, stats)
	}
	writeJSON(w, out)
}

func (s *Server) boxStats(w http.ResponseWriter, r *http.Request) {
	id, ok := boxID(w, r)
	if !ok {
		return
	}
	stats, err := s.store.BoxStats(r.Context(), id, s.sched.Now())
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "box not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "box stats", err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) nextCard(w http.ResponseWriter, r *http.Request) {
	id, ok := boxID(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	box, err := s.store.GetBox(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "box not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "get box", err)
		return
	}
	card, err := s.sched.Next(ctx, s.store, id)
	if errors.Is(err, scheduler.ErrEmptyBox) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.fail(w, "next card", err)
		return
	}
	stats, err := s.store.BoxStats(ctx, id, s.sched.Now())
	if err != nil {
		s.fail(w, "box stats", err)
		return
	}
	front, back := factsheet.Sides(box.Front, box.Back, card.Fields)
	writeJSON(w, model.CardPayload{
		ID:    card.Key,
		BoxID: id,
		Front: front,
		Back:  back,
		Info: model.CardInfo{
			Interval:     card.Interval,
			Correct:      card.Correct,
			Wrong:        card.Wrong,
			LearnedUntil: card.LearnedUntil,
			LastStudied:  card.LastStudied,
		},
		Box: model.BoxInfo{
			Title:          stats.Title,
			Cards:          stats.Cards,
			Learned:        stats.Learned,
			PercentLearned: stats.PercentLearned,
		},
		GradeURL: GradeURL(id),
	})
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := boxID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	key := r.PostForm.Get("card_id")
	if key == "" {
		http.Error(w, "missing card_id", http.StatusBadRequest)
		return
	}
	correct, err := strconv.ParseBool(r.PostForm.Get("correct"))
	if err != nil {
		http.Error(w, "correct must be true or false", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	box, err := s.store.GetBox(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "box not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "get box", err)
		return
	}
	card, err := s.store.GetCard(ctx, id, key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "card not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "get card", err)
		return
	}

	entry := s.sched.Answer(&card, correct)
	if err := s.store.SaveCard(ctx, card); err != nil {
		s.fail(w, "save card", err)
		return
	}
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		s.fail(w, "append history", err)
		return
	}
	s.sched.TrackStudyTime(&box)
	if err := s.store.TouchBoxStudy(ctx, box); err != nil {
		s.fail(w, "touch box", err)
		return
	}
	if _, err := fmt.Fprint(w, "success"); err != nil {
		log.Printf("[http] update_card write failed: %v", err)
	}
}

func boxID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid box id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	log.Printf("[http] %s: %v", op, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}
