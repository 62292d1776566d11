package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/calebrw/taskgate/internal/auth"
	"github.com/calebrw/taskgate/internal/config"
)

// fake-queue stands in for the push queue's admin API in local development.
// It serves DELETE /v2/projects/.../tasks/{task} and can simulate transient
// failures (first N calls return 500) and missing tasks (configured names
// return 404), which is enough to exercise the receiver's retry and
// acknowledgment paths end to end.

type server struct {
	mu         sync.Mutex
	reqCount   int
	failFirstN int
	notFound   map[string]bool
	deleted    map[string]int
	tokens     *auth.TokenSource
}

func newServer(cfg config.Config) *server {
	s := &server{
		failFirstN: cfg.FakeQueue.FailFirstN,
		notFound:   make(map[string]bool),
		deleted:    make(map[string]int),
	}
	for _, name := range strings.Split(cfg.FakeQueue.NotFoundTasks, ",") {
		if name = strings.TrimSpace(name); name != "" {
			s.notFound[name] = true
		}
	}
	if cfg.Queue.Auth.SigningKey != "" {
		tokens, err := auth.NewTokenSource(cfg.Queue.Auth.SigningKey, cfg.Queue.Auth.Issuer,
			cfg.Queue.Auth.Audience, cfg.Queue.Auth.TokenTTL)
		if err != nil {
			log.Fatalf("token source: %v", err)
		}
		s.tokens = tokens
	}
	return s
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.tokens != nil {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || s.tokens.Validate(token) != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}

	// Path shape: /v2/projects/{p}/locations/{l}/queues/{q}/tasks/{task}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v2/"), "/")
	if len(parts) != 8 || parts[0] != "projects" || parts[6] != "tasks" {
		http.Error(w, `{"error":"malformed task path"}`, http.StatusBadRequest)
		return
	}
	taskName := parts[7]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqCount++

	if s.reqCount <= s.failFirstN {
		log.Printf("FAILING (%d/%d) delete of %s", s.reqCount, s.failFirstN, taskName)
		http.Error(w, `{"error":"temporary failure"}`, http.StatusInternalServerError)
		return
	}
	if s.notFound[taskName] || s.deleted[taskName] > 0 {
		log.Printf("fake-queue 404 for task %s", taskName)
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}

	s.deleted[taskName]++
	log.Printf("fake-queue deleted task %s", taskName)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"deleted": taskName})
}

func main() {
	cfg := config.FromEnv()
	s := newServer(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("DELETE /v2/", s.handleDelete)

	srv := &http.Server{
		Addr:         cfg.FakeQueue.Port,
		Handler:      mux,
		ReadTimeout:  cfg.FakeQueue.ReadTimeout,
		WriteTimeout: cfg.FakeQueue.WriteTimeout,
		IdleTimeout:  cfg.FakeQueue.IdleTimeout,
	}
	log.Printf("fake-queue listening on %s", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}
