// File: internal/infra/web/server.go
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"llm-chat-gateway/internal/domain/ports/adapter"
	"llm-chat-gateway/internal/domain/ports/repository"
	"llm-chat-gateway/internal/infra/queue"
	"llm-chat-gateway/internal/infra/resource"
	"llm-chat-gateway/internal/infra/stream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wires the HTTP surface: chat submission, the SSE relay, the model
// listing pass-through and chat history CRUD.
type Server struct {
	queue   *queue.Queue
	streams *stream.Registry
	store   repository.ChatStore
	ai      adapter.AIServiceAdapter
	drivers *resource.Registry

	defaultModel  string
	streamTimeout time.Duration
	keepalive     time.Duration
	log           *zerolog.Logger
}

type Options struct {
	DefaultModel  string
	StreamTimeout time.Duration // relay stall cutoff
	Keepalive     time.Duration // SSE comment interval
}

func NewServer(
	q *queue.Queue,
	streams *stream.Registry,
	store repository.ChatStore,
	ai adapter.AIServiceAdapter,
	drivers *resource.Registry,
	opts Options,
	log *zerolog.Logger,
) *Server {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 5 * time.Minute
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 15 * time.Second
	}
	return &Server{
		queue:         q,
		streams:       streams,
		store:         store,
		ai:            ai,
		drivers:       drivers,
		defaultModel:  opts.DefaultModel,
		streamTimeout: opts.StreamTimeout,
		keepalive:     opts.Keepalive,
		log:           log,
	}
}

// Router builds the chi mux with all routes registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsAllowAll)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", s.handleSubmit)
	r.Get("/stream/{jobID}", s.handleStream)
	r.Get("/models", s.handleModels)

	r.Route("/api/chats", func(r chi.Router) {
		r.Get("/", s.handleChatList)
		r.Post("/", s.handleChatCreate)
		r.Get("/{chatID}", s.handleChatGet)
		r.Put("/{chatID}", s.handleChatUpdate)
		r.Delete("/{chatID}", s.handleChatDelete)
	})

	return r
}

// corsAllowAll mirrors the permissive policy the browser client expects:
// the gateway has no auth surface, so a wildcard origin is acceptable here.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
