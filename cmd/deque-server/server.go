package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rzpsarthak13/redis-deque/pkg/blockingdeque"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
)

const maxBodyBytes = 1 << 20

// server exposes named queues over HTTP. Elements are stored as the raw
// request body.
type server struct {
	client *blockingdeque.Client
	router chi.Router

	// workerRunning reports the export worker state for /health. Nil when
	// no worker is configured.
	workerRunning func() bool
}

func newServer(client *blockingdeque.Client, workerRunning func() bool) *server {
	s := &server{
		client:        client,
		router:        chi.NewRouter(),
		workerRunning: workerRunning,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.health)
	s.router.Handle("/metrics", client.MetricsHandler())

	s.router.Route("/queues/{name}", func(r chi.Router) {
		r.Get("/", s.size)
		r.Post("/drain", s.drain)
		r.Post("/move", s.move)
		r.Post("/{end}", s.push)
		r.Get("/{end}", s.poll)
	})
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type elementResponse struct {
	Queue string `json:"queue"`
	Value string `json:"value"`
}

type drainResponse struct {
	Queue  string   `json:"queue"`
	Count  int      `json:"count"`
	Values []string `json:"values"`
}

type sizeResponse struct {
	Queue string `json:"queue"`
	Size  int64  `json:"size"`
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.workerRunning != nil {
		status["worker"] = map[string]interface{}{"running": s.workerRunning()}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) push(w http.ResponseWriter, r *http.Request) {
	q, ok := s.open(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Element body is required", http.StatusBadRequest)
		return
	}

	switch chi.URLParam(r, "end") {
	case "first":
		err = q.PutFirst(r.Context(), body)
	case "last":
		err = q.PutLast(r.Context(), body)
	default:
		http.Error(w, "End must be first or last", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, q.Name(), "push", err)
		return
	}
	writeJSON(w, http.StatusCreated, elementResponse{Queue: q.Name(), Value: string(body)})
}

func (s *server) poll(w http.ResponseWriter, r *http.Request) {
	q, ok := s.open(w, r)
	if !ok {
		return
	}
	timeout, ok := durationParam(w, r, "timeout")
	if !ok {
		return
	}

	var (
		v     []byte
		found bool
		err   error
	)
	switch chi.URLParam(r, "end") {
	case "first":
		v, found, err = q.PollFirst(r.Context(), timeout)
	case "last":
		v, found, err = q.PollLast(r.Context(), timeout)
	default:
		http.Error(w, "End must be first or last", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, q.Name(), "poll", err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, elementResponse{Queue: q.Name(), Value: string(v)})
}

func (s *server) drain(w http.ResponseWriter, r *http.Request) {
	q, ok := s.open(w, r)
	if !ok {
		return
	}

	var (
		dst [][]byte
		n   int
		err error
	)
	if raw := r.URL.Query().Get("max"); raw != "" {
		limit, perr := strconv.Atoi(raw)
		if perr != nil {
			http.Error(w, fmt.Sprintf("Invalid max: %v", perr), http.StatusBadRequest)
			return
		}
		n, err = q.DrainToMax(r.Context(), &dst, limit)
	} else {
		n, err = q.DrainTo(r.Context(), &dst)
	}
	if err != nil {
		s.fail(w, q.Name(), "drain", err)
		return
	}

	values := make([]string, 0, len(dst))
	for _, v := range dst {
		values = append(values, string(v))
	}
	writeJSON(w, http.StatusOK, drainResponse{Queue: q.Name(), Count: n, Values: values})
}

func (s *server) move(w http.ResponseWriter, r *http.Request) {
	q, ok := s.open(w, r)
	if !ok {
		return
	}
	dest := r.URL.Query().Get("to")
	if dest == "" {
		http.Error(w, "Destination queue (to) is required", http.StatusBadRequest)
		return
	}
	timeout, ok := durationParam(w, r, "timeout")
	if !ok {
		return
	}

	v, found, err := q.PollLastAndOfferFirstTo(r.Context(), dest, timeout)
	if err != nil {
		s.fail(w, q.Name(), "move", err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, elementResponse{Queue: dest, Value: string(v)})
}

func (s *server) size(w http.ResponseWriter, r *http.Request) {
	q, ok := s.open(w, r)
	if !ok {
		return
	}
	n, err := q.Size(r.Context())
	if err != nil {
		s.fail(w, q.Name(), "size", err)
		return
	}
	writeJSON(w, http.StatusOK, sizeResponse{Queue: q.Name(), Size: n})
}

func (s *server) open(w http.ResponseWriter, r *http.Request) (*blockingdeque.Deque[[]byte], bool) {
	q, err := blockingdeque.Open(s.client, chi.URLParam(r, "name"), codec.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return q, true
}

func (s *server) fail(w http.ResponseWriter, queue, op string, err error) {
	log.Printf("[SERVER] %s on %s failed: %v", op, queue, err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, blockingdeque.ErrInterrupted):
		// The client went away; the command may still complete remotely.
		status = http.StatusRequestTimeout
	case errors.Is(err, blockingdeque.ErrExecutorClosed):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, fmt.Sprintf("Failed to %s: %v", op, err), status)
}

func durationParam(w http.ResponseWriter, r *http.Request, name string) (time.Duration, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid %s: %v", name, err), http.StatusBadRequest)
		return 0, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
