package router

import (
	"context"
	"testing"
	"time"

	"github.com/argofloat/gateway/internal/cache"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
)

type stubOrchestrator struct {
	calls int
	query string
	resp  domain.CoordinatorResponse
	err   error
}

func (s *stubOrchestrator) Run(_ context.Context, query string, _ domain.ProgressFunc) (domain.CoordinatorResponse, error) {
	s.calls++
	s.query = query
	return s.resp, s.err
}

func TestRouteAnswersGreetingsWithoutCallingLLMOrOrchestrator(t *testing.T) {
	stubLLM := &llm.Stub{}
	orch := &stubOrchestrator{}
	r := New(stubLLM, orch, nil)

	resp, err := r.Route(context.Background(), "Hello there", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Narrative == "" {
		t.Error("expected a greeting reply")
	}
	if len(stubLLM.Captured) != 0 {
		t.Error("expected greeting to bypass the LLM gate")
	}
	if orch.calls != 0 {
		t.Error("expected greeting to bypass the orchestrator")
	}
}

func TestRouteAnswersThanksDeterministically(t *testing.T) {
	stubLLM := &llm.Stub{}
	orch := &stubOrchestrator{}
	r := New(stubLLM, orch, nil)

	resp, err := r.Route(context.Background(), "Thanks so much!", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Narrative == "" || len(stubLLM.Captured) != 0 {
		t.Errorf("expected deterministic thanks reply without an LLM call, got %+v captured=%d", resp, len(stubLLM.Captured))
	}
}

func TestRouteAnswersPreviousQuestionFromHistoryWithoutLLM(t *testing.T) {
	stubLLM := &llm.Stub{}
	orch := &stubOrchestrator{}
	r := New(stubLLM, orch, nil)

	history := []domain.ConversationMessage{
		{Role: domain.RoleUser, Content: "what is the salinity near float 1901442"},
		{Role: domain.RoleAssistant, Content: "here is the data"},
	}
	resp, err := r.Route(context.Background(), "what was my previous question?", history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubLLM.Captured) != 0 {
		t.Error("expected previous-question recall to bypass the LLM gate")
	}
	if resp.Narrative != `Your previous question was: "what is the salinity near float 1901442"` {
		t.Errorf("unexpected recall answer: %q", resp.Narrative)
	}
}

func TestRouteUsesLLMGateForAmbiguousQueriesAndRoutesOnMarker(t *testing.T) {
	stubLLM := &llm.Stub{Responses: []string{"ROUTE_TO_OCEANOGRAPHIC_AGENT: asks for measurement data"}}
	orch := &stubOrchestrator{resp: domain.CoordinatorResponse{Narrative: "oceanographic answer"}}
	r := New(stubLLM, orch, nil)

	resp, err := r.Route(context.Background(), "What is salinity?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.calls != 1 {
		t.Fatalf("expected orchestrator invoked once, got %d", orch.calls)
	}
	if resp.Narrative != "oceanographic answer" {
		t.Errorf("expected orchestrator's response to be returned, got %q", resp.Narrative)
	}
}

func TestRouteReturnsLLMGateConversationalReplyDirectly(t *testing.T) {
	stubLLM := &llm.Stub{Responses: []string{"I'm doing great, thanks for asking!"}}
	orch := &stubOrchestrator{}
	r := New(stubLLM, orch, nil)

	resp, err := r.Route(context.Background(), "How's it going?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.calls != 0 {
		t.Error("expected conversational LLM reply to bypass the orchestrator")
	}
	if resp.Narrative != "I'm doing great, thanks for asking!" {
		t.Errorf("unexpected conversational reply: %q", resp.Narrative)
	}
}

func TestRouteFallsBackToOceanographicWhenGateErrors(t *testing.T) {
	stubLLM := &llm.Stub{Err: errGateDown}
	orch := &stubOrchestrator{resp: domain.CoordinatorResponse{Narrative: "fallback answer"}}
	r := New(stubLLM, orch, nil)

	resp, err := r.Route(context.Background(), "Tell me about Argo floats", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.calls != 1 {
		t.Errorf("expected fallback to the orchestrator on gate error, got %d calls", orch.calls)
	}
	if resp.Narrative != "fallback answer" {
		t.Errorf("unexpected fallback response: %q", resp.Narrative)
	}
}

func TestRouteTrimsHistoryToWindow(t *testing.T) {
	stubLLM := &llm.Stub{Responses: []string{"ROUTE_TO_OCEANOGRAPHIC_AGENT: data request"}}
	orch := &stubOrchestrator{resp: domain.CoordinatorResponse{}}
	r := New(stubLLM, orch, nil)

	history := make([]domain.ConversationMessage, 0, 20)
	for i := 0; i < 20; i++ {
		history = append(history, domain.ConversationMessage{Role: domain.RoleUser, Content: "turn"})
	}

	_, err := r.Route(context.Background(), "what is temperature", history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubLLM.Captured) != 1 {
		t.Fatalf("expected exactly one gate call, got %d", len(stubLLM.Captured))
	}
	if len(stubLLM.Captured[0].Messages) != historyWindow+1 {
		t.Errorf("expected %d messages (window + current query), got %d", historyWindow+1, len(stubLLM.Captured[0].Messages))
	}
}

func TestRouteUsesCachedConversationalReplyWithoutCallingLLM(t *testing.T) {
	stubLLM := &llm.Stub{Responses: []string{"I'm doing great, thanks for asking!"}}
	orch := &stubOrchestrator{}
	c := cache.New(time.Hour, 10, time.Hour)
	defer c.Close()
	r := New(stubLLM, orch, c)

	first, err := r.Route(context.Background(), "How's it going?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Route(context.Background(), "How's it going?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubLLM.Captured) != 1 {
		t.Errorf("expected exactly one gate call, got %d", len(stubLLM.Captured))
	}
	if second.Narrative != first.Narrative {
		t.Errorf("expected cached reply to match original, got %q vs %q", second.Narrative, first.Narrative)
	}
}

func TestRouteSkipsGateButStillInvokesOrchestratorOnCachedRoutedDecision(t *testing.T) {
	stubLLM := &llm.Stub{Responses: []string{"ROUTE_TO_OCEANOGRAPHIC_AGENT: asks for measurement data"}}
	orch := &stubOrchestrator{resp: domain.CoordinatorResponse{Narrative: "fresh oceanographic answer"}}
	c := cache.New(time.Hour, 10, time.Hour)
	defer c.Close()
	r := New(stubLLM, orch, c)

	r.Route(context.Background(), "What is salinity?", nil, nil)
	resp, err := r.Route(context.Background(), "What is salinity?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubLLM.Captured) != 1 {
		t.Errorf("expected exactly one gate call, got %d", len(stubLLM.Captured))
	}
	if orch.calls != 2 {
		t.Errorf("expected the orchestrator to run on every routed query, got %d calls", orch.calls)
	}
	if resp.Narrative != "fresh oceanographic answer" {
		t.Errorf("expected the orchestrator's live response, got %q", resp.Narrative)
	}
}

var errGateDown = &domain.AgentError{Kind: domain.ErrLLMUnavailable, Message: "gate unavailable"}
