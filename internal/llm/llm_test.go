package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientCompleteSendsExpectedPayload(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected Authorization header, got %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "hello there"}}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient("test-key", server.URL, "gpt-4", 5, time.Minute)
	out, err := client.Complete(context.Background(), "be terse", []Message{{Role: "user", Content: "hi"}}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello there" {
		t.Errorf("expected %q, got %q", "hello there", out)
	}
	if captured.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("expected system message prepended, got %+v", captured.Messages)
	}
}

func TestHTTPClientTripsBreakerOnRepeatedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient("k", server.URL, "m", 1, time.Hour)
	_, err := client.Complete(context.Background(), "", nil, 0)
	if err == nil {
		t.Fatal("expected error from failing provider")
	}

	_, err = client.Complete(context.Background(), "", nil, 0)
	if err == nil {
		t.Fatal("expected breaker to reject the second call")
	}
}

func TestStubCapturesCallsAndCyclesResponses(t *testing.T) {
	stub := &Stub{Responses: []string{"first", "second"}}
	out1, _ := stub.Complete(context.Background(), "sys", []Message{{Role: "user", Content: "q1"}}, 0.1)
	out2, _ := stub.Complete(context.Background(), "sys", nil, 0.1)
	if out1 != "first" || out2 != "second" {
		t.Errorf("expected first/second, got %q/%q", out1, out2)
	}
	if len(stub.Captured) != 2 {
		t.Errorf("expected 2 captured calls, got %d", len(stub.Captured))
	}
}
