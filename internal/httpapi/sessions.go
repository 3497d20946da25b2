package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/argofloat/gateway/internal/apperrors"
	"github.com/argofloat/gateway/internal/domain"
)

type createSessionRequest struct {
	UserPreferences map[string]any `json:"user_preferences,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

type sessionView struct {
	SessionID    string               `json:"session_id"`
	CreatedAt    string               `json:"created_at"`
	LastActivity string               `json:"last_activity"`
	MessageCount int                  `json:"message_count"`
	Preferences  map[string]any       `json:"preferences"`
	Context      domain.SessionContext `json:"context"`
}

type historyResponse struct {
	SessionID string                       `json:"session_id"`
	Messages  []domain.ConversationMessage `json:"messages"`
}

type contextResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

type updatePreferencesRequest struct {
	Preferences map[string]any `json:"preferences"`
}

func (s *Server) registerSessionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions/create", s.handleSessionCreate)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", s.handleSessionHistory)
	mux.HandleFunc("GET /api/v1/sessions/{id}/context", s.handleSessionContext)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/preferences", s.handleSessionPreferences)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("GET /api/v1/sessions/", s.handleSessionStats)
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.New(domain.ErrInvalidInput, "sessions.create", "malformed request body", nil))
			return
		}
	}
	sess, err := s.sessions.Create(r.Context(), req.UserPreferences)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		Status:    "active",
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{
		SessionID:    sess.ID,
		CreatedAt:    sess.CreatedAt.UTC().Format(time.RFC3339),
		LastActivity: sess.LastActivity.UTC().Format(time.RFC3339),
		MessageCount: len(sess.Messages),
		Preferences:  sess.Preferences,
		Context:      sess.Context,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, err := parseLimitParam(r, 50)
	if err != nil {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "sessions.history", err.Error(), nil))
		return
	}
	messages, err := s.sessions.History(r.Context(), id, limit)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Messages: messages})
}

func (s *Server) handleSessionContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := s.sessions.ContextSummary(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{SessionID: id, Summary: summary})
}

func (s *Server) handleSessionPreferences(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "sessions.preferences", "malformed request body", nil))
		return
	}
	if err := s.sessions.UpdatePreferences(r.Context(), id, req.Preferences); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "updated"})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "deleted"})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sessions.Stats(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
