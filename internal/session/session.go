// Package session implements the server-side conversation store of
// SPEC_FULL.md §4.8, grounded on API/core/session_manager.py's
// SessionManager (TTL-based expiry, bounded message history, regex-driven
// context extraction, query-type classification) and on
// internal/conversation's sync.RWMutex-guarded in-memory map pattern.
package session

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/vocabulary"
)

// voc is the closed vocabulary for context extraction (SPEC_FULL.md §12),
// loaded from vocabulary's embedded YAML rather than hand-written Go slices.
var voc = vocabulary.Default()

var floatIDPattern = regexp.MustCompile(`float (\d+)`)

const maxQueryContentChars = 100

// Store is the Session Store's capability surface.
type Store interface {
	Create(ctx context.Context, preferences map[string]any) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	AddMessage(ctx context.Context, id, role, content string, metadata map[string]any) (*domain.ConversationMessage, error)
	History(ctx context.Context, id string, limit int) ([]domain.ConversationMessage, error)
	ContextSummary(ctx context.Context, id string) (string, error)
	UpdatePreferences(ctx context.Context, id string, preferences map[string]any) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (domain.SessionStats, error)
}

// InMemoryStore is the default Session Store: everything lives in a
// process-local map, guarded by a single RWMutex, with a background
// goroutine evicting sessions past their idle timeout.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*domain.Session
	timeout     time.Duration
	maxMessages int

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New builds an InMemoryStore with the given idle timeout, per-session
// message cap, and cleanup interval, and starts its background eviction
// loop. Call Close to stop the loop.
func New(timeout time.Duration, maxMessages int, cleanupInterval time.Duration) *InMemoryStore {
	s := &InMemoryStore{
		sessions:    make(map[string]*domain.Session),
		timeout:     timeout,
		maxMessages: maxMessages,
		stopCleanup: make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

// Close stops the background cleanup loop.
func (s *InMemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *InMemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *InMemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.timeout {
			delete(s.sessions, id)
		}
	}
}

// Create starts a new session with a fresh UUIDv4 ID.
func (s *InMemoryStore) Create(_ context.Context, preferences map[string]any) (*domain.Session, error) {
	now := time.Now()
	sess := &domain.Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActivity: now,
		Preferences:  preferences,
		MaxMessages:  s.maxMessages,
	}
	if sess.Preferences == nil {
		sess.Preferences = make(map[string]any)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the session for id, touching its LastActivity timestamp, or
// a SESSION_NOT_FOUND error when absent or expired.
func (s *InMemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	if time.Since(sess.LastActivity) > s.timeout {
		delete(s.sessions, id)
		return nil, notFound(id)
	}
	sess.LastActivity = time.Now()
	return sess, nil
}

// AddMessage appends a message to id's history, updates the session's
// extracted context, and enforces the bounded-history invariant.
func (s *InMemoryStore) AddMessage(_ context.Context, id, role, content string, metadata map[string]any) (*domain.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || time.Since(sess.LastActivity) > s.timeout {
		delete(s.sessions, id)
		return nil, notFound(id)
	}

	msg := domain.ConversationMessage{
		ID:        uuid.NewString(),
		SessionID: id,
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	sess.AppendMessage(msg)
	sess.LastActivity = msg.Timestamp
	updateContext(&sess.Context, msg)
	return &msg, nil
}

// History returns up to limit most recent messages for id (0 means all).
func (s *InMemoryStore) History(_ context.Context, id string, limit int) ([]domain.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return sess.RecentMessages(limit), nil
}

// ContextSummary renders id's accumulated context as a single line for
// prompt injection, matching generate_context_summary.
func (s *InMemoryStore) ContextSummary(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return "", notFound(id)
	}
	return sess.Context.Summary(), nil
}

// UpdatePreferences merges preferences into id's stored preference map.
func (s *InMemoryStore) UpdatePreferences(_ context.Context, id string, preferences map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return notFound(id)
	}
	if sess.Preferences == nil {
		sess.Preferences = make(map[string]any)
	}
	for k, v := range preferences {
		sess.Preferences[k] = v
	}
	sess.LastActivity = time.Now()
	return nil
}

// Delete removes a session; deleting an absent session is not an error.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Stats returns the aggregate §4.8 statistics payload.
func (s *InMemoryStore) Stats(_ context.Context) (domain.SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := domain.SessionStats{TotalSessions: len(s.sessions)}
	for _, sess := range s.sessions {
		if now.Sub(sess.LastActivity) <= s.timeout {
			stats.ActiveSessions++
			stats.TotalMessages += len(sess.Messages)
		}
	}
	if stats.ActiveSessions > 0 {
		stats.AvgMessagesPerSession = float64(stats.TotalMessages) / float64(stats.ActiveSessions)
	}
	return stats, nil
}

func notFound(id string) error {
	return &domain.AgentError{Kind: domain.ErrSessionNotFound, Message: "session not found: " + id}
}

// updateContext folds one message into the session's accumulated context:
// regions/floats/parameters mentioned, and (for user turns) a classified
// query-type history entry, matching _update_session_context.
func updateContext(ctx *domain.SessionContext, msg domain.ConversationMessage) {
	lower := strings.ToLower(msg.Content)

	for _, region := range voc.SessionRegions {
		if strings.Contains(lower, region) {
			ctx.AddRegion(region)
		}
	}
	for _, m := range floatIDPattern.FindAllStringSubmatch(lower, -1) {
		ctx.AddFloat(m[1])
	}
	for _, param := range voc.Parameters {
		if strings.Contains(lower, param) {
			ctx.AddParameter(param)
		}
	}

	if msg.Role != domain.RoleUser {
		return
	}
	content := msg.Content
	if len(content) > maxQueryContentChars {
		content = content[:maxQueryContentChars]
	}
	ctx.AddQueryRecord(domain.QueryRecord{
		Type:      classifyQuery(lower),
		Timestamp: msg.Timestamp,
		Content:   content,
	})
}

func classifyQuery(lower string) string {
	switch {
	case containsAny(lower, "compare", "comparison", "versus", "vs"):
		return "comparative"
	case containsAny(lower, "pattern", "similar", "anomal", "unusual"):
		return "pattern_analysis"
	case containsAny(lower, "metadata", "instrument", "deployment"):
		return "metadata"
	case containsAny(lower, "measurement", "data", "temperature", "salinity"):
		return "measurement"
	default:
		return "unknown"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
