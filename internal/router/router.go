// Package router implements the gateway's single entry point: classify an
// incoming query as conversational or oceanographic and either answer it
// directly or hand it to the Orchestrator. Grounded directly on
// agent/main_agent.py's MainAgent — an LLM gate fronted by a deterministic
// regex pre-pass for the small fixed pattern set SPEC_FULL.md §4.7 calls
// out (greetings, thanks, "previous question" recall), per Open Question 2:
// this build keeps the LLM gate as primary and adds the regex pre-pass
// rather than building a second, unused pure-regex router. An optional
// DecisionCache (internal/cache) short-circuits repeat gate calls for a
// query already classified in the same conversational context.
package router

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/argofloat/gateway/internal/cache"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
)

var tracer = otel.Tracer("gateway/router")

// historyWindow bounds how many recent turns are folded into the LLM gate's
// prompt, matching SPEC_FULL.md §4.7's "last K turns, K≈8".
const historyWindow = 8

// routeMarker is the LLM gate's routing token, ported verbatim from
// main_agent.py's ROUTE_TO_OCEANOGRAPHIC_AGENT: prefix convention.
const routeMarker = "ROUTE_TO_OCEANOGRAPHIC_AGENT:"

const gateSystemPrompt = `You are Oceanus, a friendly AI assistant who is the primary interface for an
advanced oceanographic data analysis system. Handle purely conversational queries (greetings,
thanks, small talk) with a friendly, professional reply. For any query about oceanography, Argo
floats, measurements, regions, or scientific concepts, do not answer it yourself — reply with
exactly:

ROUTE_TO_OCEANOGRAPHIC_AGENT: <brief reason>
`

const gateTemperature = 0.1

var greetingPattern = regexp.MustCompile(`^\s*(hi|hello|hey|good morning|good afternoon|good evening|howdy)\b`)
var thanksPattern = regexp.MustCompile(`\b(thanks|thank you|thx|appreciate it)\b`)
var previousQuestionPattern = regexp.MustCompile(`\b(previous question|what did i (just )?ask|what was my (last|previous) question)\b`)

// Orchestrator is the capability surface the Router needs to dispatch
// oceanographic queries.
type Orchestrator interface {
	Run(ctx context.Context, query string, onEvent domain.ProgressFunc) (domain.CoordinatorResponse, error)
}

// DecisionCache caches a gate verdict for a query in a given conversational
// context, per SPEC_FULL.md §11's CACHE_TTL/CACHE_MAX_SIZE routing-decision
// cache. A nil DecisionCache is valid and simply disables caching.
type DecisionCache interface {
	Get(query string, history []domain.ConversationMessage) (resp domain.CoordinatorResponse, routed, ok bool)
	Set(query string, history []domain.ConversationMessage, resp domain.CoordinatorResponse, routed bool)
}

// Router classifies a query and either answers it directly (conversational
// pre-pass or LLM gate reply) or hands it to the Orchestrator.
type Router struct {
	llm          llm.Client
	orchestrator Orchestrator
	cache        DecisionCache
}

// New builds a Router bound to an LLM gate and the Orchestrator that
// handles oceanographic queries. cache may be nil to disable caching.
func New(llmClient llm.Client, orchestrator Orchestrator, decisionCache DecisionCache) *Router {
	return &Router{llm: llmClient, orchestrator: orchestrator, cache: decisionCache}
}

var _ DecisionCache = (*cache.RouteDecisionCache)(nil)

// Route classifies query against history (oldest first; only the last
// historyWindow turns are used) and returns the final response. onEvent, if
// non-nil, is relayed to the Orchestrator unchanged when the query is
// routed to it; conversational answers never emit progress events since
// there is no cycle to report.
func (r *Router) Route(ctx context.Context, query string, history []domain.ConversationMessage, onEvent domain.ProgressFunc) (domain.CoordinatorResponse, error) {
	lower := strings.ToLower(strings.TrimSpace(query))

	if answer, ok := answerFromHistory(lower, history); ok {
		return domain.CoordinatorResponse{Narrative: answer}, nil
	}
	if greetingPattern.MatchString(lower) || thanksPattern.MatchString(lower) {
		return domain.CoordinatorResponse{Narrative: conversationalReply(lower)}, nil
	}

	if r.cache != nil {
		if cached, routed, ok := r.cache.Get(query, history); ok {
			if routed {
				return r.orchestrator.Run(ctx, query, onEvent)
			}
			return cached, nil
		}
	}

	conversational, reply, err := r.classify(ctx, query, history)
	if err != nil {
		// Ambiguous/unavailable gate: fall back to oceanographic per §4.7.
		return r.orchestrator.Run(ctx, query, onEvent)
	}
	if conversational {
		resp := domain.CoordinatorResponse{Narrative: reply}
		if r.cache != nil {
			r.cache.Set(query, history, resp, false)
		}
		return resp, nil
	}
	if r.cache != nil {
		r.cache.Set(query, history, domain.CoordinatorResponse{}, true)
	}
	return r.orchestrator.Run(ctx, query, onEvent)
}

// classify asks the LLM gate to decide; a reply starting with routeMarker
// means oceanographic, anything else is the conversational answer itself.
func (r *Router) classify(ctx context.Context, query string, history []domain.ConversationMessage) (conversational bool, reply string, err error) {
	ctx, span := tracer.Start(ctx, "router.classify")
	defer span.End()

	messages := make([]llm.Message, 0, historyWindow+1)
	for _, turn := range recentTurns(history, historyWindow) {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: domain.RoleUser, Content: query})

	content, err := r.llm.Complete(ctx, gateSystemPrompt, messages, gateTemperature)
	if err != nil {
		return false, "", err
	}
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, routeMarker) {
		return false, "", nil
	}
	return true, content, nil
}

func recentTurns(history []domain.ConversationMessage, n int) []domain.ConversationMessage {
	if n <= 0 || n >= len(history) {
		return history
	}
	return history[len(history)-n:]
}

// answerFromHistory handles the deterministic "what was my previous
// question" recall pattern without involving the LLM gate at all.
func answerFromHistory(lowerQuery string, history []domain.ConversationMessage) (string, bool) {
	if !previousQuestionPattern.MatchString(lowerQuery) {
		return "", false
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return "Your previous question was: \"" + history[i].Content + "\"", true
		}
	}
	return "I don't have a previous question in this conversation yet.", true
}

func conversationalReply(lowerQuery string) string {
	if thanksPattern.MatchString(lowerQuery) {
		return "You're welcome! Let me know if there's any oceanographic data you'd like to explore."
	}
	return "Hello! I'm Oceanus, your oceanographic data assistant. Ask me about Argo floats, regions, or measurements."
}
