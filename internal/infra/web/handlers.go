// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/infra/logging"
	"llm-chat-gateway/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// submitRequest is the POST /chat body.
type submitRequest struct {
	Messages          []model.Message                 `json:"messages"`
	Model             string                          `json:"model"`
	Temperature       *float64                        `json:"temperature"`
	DeployedResources map[string]model.ResourceConfig `json:"deployed_resources"`
}

// handleSubmit validates the payload, registers the job's output channel and
// enqueues. Always returns in bounded time: the upstream call happens in the
// worker, never here.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrEmptyMessages.Error())
		return
	}
	for _, m := range req.Messages {
		if m.Role == "" {
			writeError(w, http.StatusBadRequest, "message role must not be empty")
			return
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}
	temperature := 1.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	jobID := ulid.Make().String()
	job := model.NewJob(jobID, modelName, temperature, req.Messages, req.DeployedResources)

	if err := s.streams.Open(jobID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not register job")
		return
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.streams.Remove(jobID)
		if errors.Is(err, domain.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue full, try again later")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not enqueue job")
		return
	}

	metrics.IncSubmitted()
	log := logging.With(logging.WithJobID(r.Context(), jobID), s.log)
	log.Info().Str("model", modelName).Int("messages", len(req.Messages)).Msg("job submitted")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "submitted",
	})
}

// handleModels passes the upstream model catalog through.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.ai.ListModels(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("model listing failed")
		writeError(w, http.StatusBadGateway, "could not list models")
		return
	}
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// --- chat history CRUD ---

// chatCreateRequest mirrors the browser client: it generates the id and
// createdAt itself and expects them echoed back. Both fall back server-side
// when omitted.
type chatCreateRequest struct {
	ID                string                          `json:"id"`
	Title             string                          `json:"title"`
	CreatedAt         time.Time                       `json:"createdAt"`
	DeployedResources map[string]model.ResourceConfig `json:"deployed_resources"`
}

func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("chat list failed")
		writeError(w, http.StatusInternalServerError, "could not list chats")
		return
	}
	if sessions == nil {
		sessions = []*model.ChatSession{}
	}
	writeJSON(w, http.StatusOK, map[string][]*model.ChatSession{"chats": sessions})
}

func (s *Server) handleChatCreate(w http.ResponseWriter, r *http.Request) {
	var req chatCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	title := req.Title
	if title == "" {
		title = "New Chat"
	}

	sess := model.NewChatSession(id, title, req.CreatedAt)
	if len(req.DeployedResources) > 0 {
		if err := s.drivers.Attach(r.Context(), req.DeployedResources); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.DeployedResources = req.DeployedResources
	}

	if err := s.store.Create(r.Context(), sess); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "Chat already exists")
			return
		}
		s.log.Error().Err(err).Msg("chat create failed")
		writeError(w, http.StatusInternalServerError, "could not create chat")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "chat": sess})
}

func (s *Server) handleChatGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		s.log.Error().Err(err).Str("chat_id", id).Msg("chat get failed")
		writeError(w, http.StatusInternalServerError, "could not load chat")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// chatUpdateRequest carries the fields a PUT may change. Each is optional:
// absent fields keep their stored value, so a messages-only update cannot
// blank the title or detach resources.
type chatUpdateRequest struct {
	Title             *string                          `json:"title"`
	Messages          *[]model.Message                 `json:"messages"`
	DeployedResources *map[string]model.ResourceConfig `json:"deployed_resources"`
}

// handleChatUpdate merges the provided fields into the stored session.
// Resource changes are diffed against the previous state so drivers see
// attach/detach exactly once per resource.
func (s *Server) handleChatUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")
	ctx := logging.WithChatID(r.Context(), id)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load chat")
		return
	}

	var req chatUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.Messages != nil {
		sess.Messages = *req.Messages
	}
	if req.DeployedResources != nil {
		next := *req.DeployedResources
		added := make(map[string]model.ResourceConfig)
		for rid, cfg := range next {
			if _, ok := sess.DeployedResources[rid]; !ok {
				added[rid] = cfg
			}
		}
		removed := make(map[string]model.ResourceConfig)
		for rid, cfg := range sess.DeployedResources {
			if _, ok := next[rid]; !ok {
				removed[rid] = cfg
			}
		}
		if len(added) > 0 {
			if err := s.drivers.Attach(ctx, added); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		s.drivers.Detach(ctx, removed)
		sess.DeployedResources = next
	}

	if err := s.store.Update(ctx, sess); err != nil {
		s.log.Error().Err(err).Str("chat_id", id).Msg("chat update failed")
		writeError(w, http.StatusInternalServerError, "could not update chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "chat": sess})
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")
	ctx := logging.WithChatID(r.Context(), id)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load chat")
		return
	}
	s.drivers.Detach(ctx, sess.DeployedResources)

	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("chat_id", id).Msg("chat delete failed")
		writeError(w, http.StatusInternalServerError, "could not delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
