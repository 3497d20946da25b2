// Package llm defines the gateway's narrow LLM capability interface and an
// OpenAI-compatible HTTP implementation, modeled on pkg/ai.AIClient and
// pkg/ai/openai.go's raw chat-completions client. Per SPEC_FULL.md §9, the
// LLM is a single small interface, so tests can stub it without a provider.
// Prompt templates are not in this package and are not loaded from
// configuration: they are Go string constants in the packages that use
// them, such as internal/router and internal/agents.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/argofloat/gateway/internal/resilience"
)

// Message is one turn in a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// Client is the gateway's narrow capability surface over an LLM provider:
// classify intent, draft backend queries, and synthesize narrative text.
type Client interface {
	Complete(ctx context.Context, system string, messages []Message, temperature float64) (string, error)
}

// HTTPClient implements Client against any OpenAI-compatible
// /chat/completions endpoint, selected by LLM_BASE_URL so the same code
// serves OpenAI, a self-hosted gateway, or a Groq-compatible endpoint
// without a code change.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewHTTPClient builds an HTTPClient bound to baseURL/model, wrapped by a
// circuit breaker with the given failure threshold and recovery window.
func NewHTTPClient(apiKey, baseURL, model string, breakerThreshold int, breakerRecovery time.Duration) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(breakerThreshold, breakerRecovery),
	}
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []chatMessage     `json:"messages"`
	Temperature float64           `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends system + messages as a single chat-completions call and
// returns the first choice's content. The circuit breaker short-circuits
// calls while the provider is unhealthy; callers are responsible for
// wrapping this with internal/resilience.Retry if retrying is desired.
func (c *HTTPClient) Complete(ctx context.Context, system string, messages []Message, temperature float64) (string, error) {
	if !c.breaker.CanExecute() {
		return "", resilience.ErrCircuitOpen
	}

	body, err := c.complete(ctx, system, messages, temperature)
	if err != nil {
		c.breaker.RecordFailure()
		return "", err
	}
	c.breaker.RecordSuccess()
	return body, nil
}

func (c *HTTPClient) complete(ctx context.Context, system string, messages []Message, temperature float64) (string, error) {
	chatMessages := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		chatMessages = append(chatMessages, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("llm provider returned status %d: %s", resp.StatusCode, string(b))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("llm response had no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
