package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/argofloat/gateway/internal/apperrors"
	"github.com/argofloat/gateway/internal/domain"
)

const (
	minQueryChars   = 1
	maxQueryChars   = 2000
	minTimeoutSecs  = 30
	maxTimeoutSecs  = 600
	minHistoryLimit = 1
	maxHistoryLimit = 100
)

// chatRequest is the wire shape of POST /api/v1/chat and .../chat/stream.
type chatRequest struct {
	Query           string         `json:"query"`
	SessionID       string         `json:"session_id,omitempty"`
	Timeout         int            `json:"timeout,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	UserPreferences map[string]any `json:"user_preferences,omitempty"`
}

type chatMetadata struct {
	QueryID          string  `json:"query_id"`
	Timestamp        string  `json:"timestamp"`
	ResponseTimeSec  float64 `json:"response_time"`
	HasContext       bool    `json:"has_context"`
	MaxCycles        int     `json:"max_cycles"`
	QualityThreshold float64 `json:"quality_threshold"`
	Cycles           int     `json:"cycles"`
	AgentsUsed       []string `json:"agents_used"`
}

type chatResponse struct {
	Response            string       `json:"response"`
	SessionID            string       `json:"session_id"`
	Metadata             chatMetadata `json:"metadata"`
	Status                string       `json:"status"`
	ConversationContext   string       `json:"conversation_context,omitempty"`
}

func (s *Server) registerChatRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
}

// prepareTurn validates the request, resolves or creates the session, and
// appends the user's message, shared by both the synchronous and streaming
// endpoints. It returns the resolved session ID, recorded history (oldest
// first, including the just-appended turn), and the per-request timeout.
func (s *Server) prepareTurn(ctx context.Context, w http.ResponseWriter, req chatRequest) (sessionID string, history []domain.ConversationMessage, timeout time.Duration, ok bool) {
	if !s.ready.Load() {
		writeError(w, apperrors.New(domain.ErrCoreNotReady, "chat", "gateway is not ready to serve requests", nil))
		return "", nil, 0, false
	}

	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryChars {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "chat", "query must not be empty", nil))
		return "", nil, 0, false
	}
	if len(query) > maxQueryChars {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "chat", fmt.Sprintf("query exceeds maximum length of %d characters", maxQueryChars), nil))
		return "", nil, 0, false
	}

	timeoutSecs := s.cfg.AgentTimeoutSec
	if req.Timeout != 0 {
		if req.Timeout < minTimeoutSecs || req.Timeout > maxTimeoutSecs {
			writeError(w, apperrors.New(domain.ErrInvalidInput, "chat", fmt.Sprintf("timeout must be between %d and %d seconds", minTimeoutSecs, maxTimeoutSecs), nil))
			return "", nil, 0, false
		}
		timeoutSecs = req.Timeout
	}

	sessionID = req.SessionID
	if sessionID == "" {
		sess, err := s.sessions.Create(ctx, req.UserPreferences)
		if err != nil {
			writeError(w, apperrors.Wrap(domain.ErrInternal, "chat", err, nil))
			return "", nil, 0, false
		}
		sessionID = sess.ID
	} else if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		writeSessionError(w, err)
		return "", nil, 0, false
	} else if len(req.UserPreferences) > 0 {
		_ = s.sessions.UpdatePreferences(ctx, sessionID, req.UserPreferences)
	}

	msgMeta := req.Context
	if _, err := s.sessions.AddMessage(ctx, sessionID, domain.RoleUser, query, msgMeta); err != nil {
		writeSessionError(w, err)
		return "", nil, 0, false
	}

	history, err := s.sessions.History(ctx, sessionID, 0)
	if err != nil {
		writeSessionError(w, err)
		return "", nil, 0, false
	}
	return sessionID, history, time.Duration(timeoutSecs) * time.Second, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "chat", "malformed request body", nil))
		return
	}

	start := time.Now()
	sessionID, history, timeout, ok := s.prepareTurn(r.Context(), w, req)
	if !ok {
		s.metrics.recordError()
		return
	}
	hasContext := len(history) > 1

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	query := strings.TrimSpace(req.Query)
	resp, err := s.router.Route(ctx, query, history[:len(history)-1], nil)
	if err != nil {
		s.metrics.recordError()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeError(w, apperrors.New(domain.ErrAgentTimeout, "chat", "agent did not respond within the configured timeout", nil))
			return
		}
		writeRouteError(w, err)
		return
	}

	narrative := renderWithVisualizations(resp)
	if _, err := s.sessions.AddMessage(ctx, sessionID, domain.RoleAssistant, narrative, nil); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to record assistant turn", map[string]interface{}{"error": err.Error()})
	}
	contextSummary, _ := s.sessions.ContextSummary(ctx, sessionID)

	s.metrics.recordQuery(time.Since(start))

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  narrative,
		SessionID: sessionID,
		Metadata: chatMetadata{
			QueryID:          uuid.NewString(),
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			ResponseTimeSec:  time.Since(start).Seconds(),
			HasContext:       hasContext,
			MaxCycles:        s.cfg.MaxCycles,
			QualityThreshold: s.cfg.QualityThreshold,
			Cycles:           resp.CycleCount,
			AgentsUsed:       agentNames(resp.AgentsUsed),
		},
		Status:              "ok",
		ConversationContext: contextSummary,
	})
}

// handleChatStream streams progress frames tied to real orchestrator state
// transitions, then a final "completed" frame and a terminal [DONE] marker,
// matching ui/transports/sse/sse.go's event-per-line framing.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(domain.ErrInvalidInput, "chat", "malformed request body", nil))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(domain.ErrInternal, "chat", "streaming unsupported by this connection", nil))
		return
	}

	start := time.Now()
	sessionID, history, timeout, prepOK := s.prepareTurn(r.Context(), w, req)
	if !prepOK {
		s.metrics.recordError()
		return
	}
	hasContext := len(history) > 1

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sendFrame := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	onEvent := func(ev domain.ProgressEvent) {
		sendFrame(map[string]any{
			"status":   "progress",
			"message":  progressMessage(ev.State),
			"progress": ev,
		})
	}

	query := strings.TrimSpace(req.Query)
	resp, err := s.router.Route(ctx, query, history[:len(history)-1], onEvent)
	if err != nil {
		s.metrics.recordError()
		sendFrame(map[string]any{"status": "error", "message": err.Error()})
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	narrative := renderWithVisualizations(resp)
	if _, err := s.sessions.AddMessage(ctx, sessionID, domain.RoleAssistant, narrative, nil); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to record assistant turn", map[string]interface{}{"error": err.Error()})
	}

	s.metrics.recordQuery(time.Since(start))

	sendFrame(map[string]any{
		"status": "completed",
		"response": narrative,
		"metadata": chatMetadata{
			QueryID:          uuid.NewString(),
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			ResponseTimeSec:  time.Since(start).Seconds(),
			HasContext:       hasContext,
			MaxCycles:        s.cfg.MaxCycles,
			QualityThreshold: s.cfg.QualityThreshold,
			Cycles:           resp.CycleCount,
			AgentsUsed:       agentNames(resp.AgentsUsed),
		},
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// progressMessage renders a human-readable line for an SSE progress frame,
// matching the state names the Orchestrator actually emits (§13 Open
// Question 3) rather than a fabricated stage list.
func progressMessage(state domain.OrchestratorState) string {
	switch state {
	case domain.StateParseIntent:
		return "Parsing your question"
	case domain.StateExecuteAgents:
		return "Querying oceanographic data sources"
	case domain.StateAnalyze:
		return "Analyzing result quality"
	case domain.StateRefine:
		return "Refining the query"
	case domain.StateSynthesize:
		return "Composing the response"
	default:
		return string(state)
	}
}

func agentNames(kinds []domain.AgentKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}

// renderWithVisualizations appends the Coordinator's visualization specs as
// a fenced "viz" block, matching the embedded-visualization-payload shape
// SPEC_FULL.md §6 requires alongside the narrative text.
func renderWithVisualizations(resp domain.CoordinatorResponse) string {
	if len(resp.Visualizations) == 0 {
		return resp.Narrative
	}
	payload := vizPayload{Visualizations: make([]vizSpec, 0, len(resp.Visualizations))}
	for _, v := range resp.Visualizations {
		payload.Visualizations = append(payload.Visualizations, vizSpec{
			Type:     string(v.Type),
			Title:    v.Title,
			Subtitle: v.Subtitle,
			Data: vizData{
				Fields: v.Data.Fields,
				Rows:   v.Data.Rows,
			},
			Encodings: v.Encodings,
			Options:   v.Options,
			Styling:   v.Styling,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return resp.Narrative
	}
	return resp.Narrative + "\n\n```viz\n" + string(body) + "\n```"
}

type vizPayload struct {
	Visualizations []vizSpec `json:"visualizations"`
}

type vizSpec struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Subtitle  string            `json:"subtitle,omitempty"`
	Data      vizData           `json:"data"`
	Encodings map[string]string `json:"encodings,omitempty"`
	Options   map[string]any    `json:"options,omitempty"`
	Styling   map[string]any    `json:"styling,omitempty"`
}

type vizData struct {
	Fields []string         `json:"fields"`
	Rows   []map[string]any `json:"rows"`
}

// writeRouteError maps a Router/Orchestrator error to its §7 taxonomy
// status, falling back to 500 INTERNAL for errors the backend never tagged.
// AgentError is returned both as a value (coordinator's mostSevereIfAllErrored)
// and as a pointer (session's notFound), so both forms are checked.
func writeRouteError(w http.ResponseWriter, err error) {
	var ge *apperrors.GatewayError
	if errors.As(err, &ge) {
		writeError(w, ge)
		return
	}
	if kind, msg, ok := asAgentErrorKind(err); ok {
		writeError(w, apperrors.New(kind, "chat", msg, nil))
		return
	}
	writeError(w, apperrors.Wrap(domain.ErrInternal, "chat", err, nil))
}

func writeSessionError(w http.ResponseWriter, err error) {
	if kind, msg, ok := asAgentErrorKind(err); ok {
		writeError(w, apperrors.New(kind, "session", msg, nil))
		return
	}
	writeError(w, apperrors.Wrap(domain.ErrInternal, "session", err, nil))
}

func asAgentErrorKind(err error) (domain.ErrorKind, string, bool) {
	var aePtr *domain.AgentError
	if errors.As(err, &aePtr) {
		return aePtr.Kind, aePtr.Message, true
	}
	var aeVal domain.AgentError
	if errors.As(err, &aeVal) {
		return aeVal.Kind, aeVal.Message, true
	}
	return "", "", false
}

func writeError(w http.ResponseWriter, ge *apperrors.GatewayError) {
	writeJSON(w, apperrors.HTTPStatus(ge.Kind), apperrors.ToEnvelope(ge))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseLimitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minHistoryLimit || n > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be between %d and %d", minHistoryLimit, maxHistoryLimit)
	}
	return n, nil
}
