package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/calbers/twinchat/internal/llm"
	"github.com/calbers/twinchat/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxMessageLength   = 8_000
	defaultPageSize    = 50
	maxPageSize        = 200
)

// ChatAgent handles one conversation turn. Implemented by agent.Agent.
type ChatAgent interface {
	HandleTurn(ctx context.Context, history []llm.Message, userMessage string) ([]llm.Message, string, error)
}

// NewHandler returns the HTTP surface: the public chat endpoint plus an
// admin section for reviewing captured leads and questions. Admin routes
// are mounted only when adminToken is non-empty; store may be nil, in
// which case admin routes report the absence.
func NewHandler(agent ChatAgent, store *storage.Store, adminToken string) http.Handler {
	s := &apiServer{
		agent:    agent,
		store:    store,
		sessions: newSessionStore(),
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Post("/chat", s.handleChat)

	if adminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(adminToken))
			r.Get("/leads", s.handleListLeads)
			r.Delete("/leads/{id}", s.handleDeleteLead)
			r.Get("/questions", s.handleListQuestions)
			r.Delete("/questions/{id}", s.handleDeleteQuestion)
		})
	}

	return r
}

type apiServer struct {
	agent    ChatAgent
	store    *storage.Store
	sessions *sessionStore
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required and must not be empty")
		return
	}
	if len(req.Message) > maxMessageLength {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "message exceeds %d characters", maxMessageLength)
		return
	}

	sessionID := req.SessionID
	var history []llm.Message
	if sessionID != "" {
		history, _ = s.sessions.Get(sessionID)
	} else {
		sessionID = s.sessions.NewID()
	}

	updated, reply, err := s.agent.HandleTurn(r.Context(), history, req.Message)
	if err != nil {
		httpError(w, http.StatusBadGateway, "api_error", "turn failed: %v", err)
		return
	}
	s.sessions.Commit(sessionID, updated)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{SessionID: sessionID, Reply: reply})
}

func (s *apiServer) handleListLeads(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "persistence is disabled")
		return
	}
	limit, offset := pageParams(r)
	leads, err := s.store.ListLeads(limit, offset)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list leads: %v", err)
		return
	}
	if leads == nil {
		leads = []storage.Lead{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"leads": leads})
}

func (s *apiServer) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "persistence is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteLead(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "lead %s not found", id)
			return
		}
		httpError(w, http.StatusInternalServerError, "api_error", "failed to delete lead: %v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "persistence is disabled")
		return
	}
	limit, offset := pageParams(r)
	questions, err := s.store.ListQuestions(limit, offset)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list questions: %v", err)
		return
	}
	if questions == nil {
		questions = []storage.Question{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"questions": questions})
}

func (s *apiServer) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "persistence is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteQuestion(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "question %s not found", id)
			return
		}
		httpError(w, http.StatusInternalServerError, "api_error", "failed to delete question: %v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
