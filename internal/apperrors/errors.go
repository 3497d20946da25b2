// Package apperrors implements the gateway's error taxonomy (SPEC_FULL.md
// §7), following the sentinel + wrapper-type pattern of the teacher's
// core/errors.go, generalized from framework errors to the nine-member
// gateway taxonomy.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/argofloat/gateway/internal/domain"
)

// Sentinel errors for use with errors.Is, matching the shape (not the
// content) of core.ErrAgentNotFound et al.
var (
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionMissing  = errors.New("session not found")
	ErrQueryEmpty      = errors.New("query must not be empty")
	ErrQueryTooLong    = errors.New("query exceeds maximum length")
	ErrCoreNotReady    = errors.New("core not ready")
	ErrDeadlineReached = errors.New("request deadline exceeded")
)

// GatewayError carries a taxonomy kind plus a human message and an opaque
// detail map, matching core.FrameworkError's Op/Kind/Message/Err shape.
type GatewayError struct {
	Kind    domain.ErrorKind
	Op      string
	Message string
	Detail  map[string]any
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// New builds a GatewayError.
func New(kind domain.ErrorKind, op, message string, detail map[string]any) *GatewayError {
	return &GatewayError{Kind: kind, Op: op, Message: message, Detail: detail}
}

// Wrap builds a GatewayError around an existing error.
func Wrap(kind domain.ErrorKind, op string, err error, detail map[string]any) *GatewayError {
	return &GatewayError{Kind: kind, Op: op, Message: err.Error(), Detail: detail, Err: err}
}

// IsRetryable reports whether err (or a wrapped GatewayError inside it)
// carries a retriable taxonomy kind.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind.Retriable()
	}
	return false
}

// HTTPStatus maps a taxonomy kind to the status code of SPEC_FULL.md §6.
// BACKEND_UNAVAILABLE reports 500 like any other agent failure (scenario
// S5); 503 is used for CORE_NOT_READY and LLM_UNAVAILABLE.
func HTTPStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrSessionNotFound:
		return http.StatusNotFound
	case domain.ErrRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrAgentTimeout:
		return http.StatusRequestTimeout
	case domain.ErrBackendUnavailable:
		return http.StatusInternalServerError
	case domain.ErrCoreNotReady:
		return http.StatusServiceUnavailable
	case domain.ErrLLMUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrBackendQueryError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// envelopeType names the JSON error envelope "type" field, matching
// original_source's exceptions.py handlers verbatim (§12).
func envelopeType(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrInvalidInput:
		return "validation_error"
	case domain.ErrSessionNotFound:
		return "not_found_error"
	case domain.ErrRateLimited:
		return "rate_limit_error"
	case domain.ErrAgentTimeout:
		return "timeout_error"
	case domain.ErrBackendUnavailable, domain.ErrBackendQueryError:
		return "database_error"
	case domain.ErrLLMUnavailable:
		return "llm_error"
	case domain.ErrCoreNotReady:
		return "unavailable_error"
	default:
		return "internal_error"
	}
}

// Envelope is the wire shape of an error response.
type Envelope struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Type    string         `json:"type"`
}

// ToEnvelope renders a GatewayError into its HTTP JSON body, never leaking
// Go error internals (stack traces, wrapped error chains) to the client.
func ToEnvelope(ge *GatewayError) Envelope {
	return Envelope{
		Error:   string(ge.Kind),
		Message: ge.Message,
		Details: ge.Detail,
		Type:    envelopeType(ge.Kind),
	}
}
