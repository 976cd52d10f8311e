// Package server serves cards to study sessions over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/cardbox/internal/scheduler"
	"github.com/verte-zerg/cardbox/internal/store"
)

// Server answers next-card and grade requests for all boxes.
type Server struct {
	store *store.Store
	sched *scheduler.Scheduler
	// mu serializes read-modify-write cycles on card state.
	mu sync.Mutex
}

// New returns a Server backed by st.
func New(st *store.Store, sched *scheduler.Scheduler) *Server {
	if sched == nil {
		sched = scheduler.New()
	}
	return &Server{store: st, sched: sched}
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/boxes", s.listBoxes).Methods("GET")
	r.HandleFunc("/box/{id:[0-9]+}/next_card", s.nextCard).Methods("GET")
	r.HandleFunc("/box/{id:[0-9]+}/update_card", s.updateCard).Methods("POST")
	r.HandleFunc("/box/{id:[0-9]+}/stats", s.boxStats).Methods("GET")
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("[server] stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
