// Package domain holds the core entities shared by every component of the
// query orchestration pipeline: intents, results, cycle state and sessions.
package domain

import (
	"strings"
	"time"
)

// AgentKind identifies one of the three backend-facing agents.
type AgentKind int

const (
	AgentMeasurement AgentKind = 1 << iota
	AgentMetadata
	AgentSemantic
)

func (k AgentKind) String() string {
	switch k {
	case AgentMeasurement:
		return "measurement"
	case AgentMetadata:
		return "metadata"
	case AgentSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// AgentMask is a bitset over AgentKind values.
type AgentMask int

// Has reports whether the mask enables the given agent.
func (m AgentMask) Has(k AgentKind) bool {
	return int(m)&int(k) != 0
}

// Set returns a copy of the mask with k enabled.
func (m AgentMask) Set(k AgentKind) AgentMask {
	return AgentMask(int(m) | int(k))
}

// Clear returns a copy of the mask with k disabled.
func (m AgentMask) Clear(k AgentKind) AgentMask {
	return AgentMask(int(m) &^ int(k))
}

// Empty reports whether no agent is enabled.
func (m AgentMask) Empty() bool {
	return m == 0
}

// PopCount returns the number of agents enabled in the mask.
func (m AgentMask) PopCount() int {
	n := 0
	for _, k := range []AgentKind{AgentMeasurement, AgentMetadata, AgentSemantic} {
		if m.Has(k) {
			n++
		}
	}
	return n
}

// Members returns the enabled agent kinds.
func (m AgentMask) Members() []AgentKind {
	var out []AgentKind
	for _, k := range []AgentKind{AgentMeasurement, AgentMetadata, AgentSemantic} {
		if m.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Parameter is one of the three measurable physical quantities the system
// understands.
type Parameter string

const (
	ParamTemperature Parameter = "temperature"
	ParamSalinity    Parameter = "salinity"
	ParamPressure    Parameter = "pressure"
)

// SpatialBounds is a rectangular bounding box. Invariant: MinLat<=MaxLat,
// MinLon<=MaxLon, and all four values stay within global lat/lon limits.
type SpatialBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

const (
	GlobalMinLat = -90.0
	GlobalMaxLat = 90.0
	GlobalMinLon = -180.0
	GlobalMaxLon = 180.0
)

// Valid reports whether the box respects the ordering and global-limit
// invariants from SPEC_FULL.md §3.
func (b SpatialBounds) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon &&
		b.MinLat >= GlobalMinLat && b.MaxLat <= GlobalMaxLat &&
		b.MinLon >= GlobalMinLon && b.MaxLon <= GlobalMaxLon
}

// TemporalBounds is an inclusive time range.
type TemporalBounds struct {
	Start time.Time
	End   time.Time
}

// IntentFlags are refinement markers the Refiner sets and the Agents read.
type IntentFlags struct {
	SemanticBroadened bool
	MetadataEnhanced  bool
}

// Intent is the structured interpretation of a user query. It is mutable
// across orchestrator cycles: the Refiner returns a modified copy.
type Intent struct {
	FloatID        string
	SpatialBounds  *SpatialBounds
	TemporalBounds *TemporalBounds
	Parameters     []Parameter
	AgentMask      AgentMask
	Flags          IntentFlags
	Limit          int
}

// Clone returns a deep-enough copy for the Refiner to mutate safely.
func (in Intent) Clone() Intent {
	out := in
	if in.SpatialBounds != nil {
		b := *in.SpatialBounds
		out.SpatialBounds = &b
	}
	if in.TemporalBounds != nil {
		t := *in.TemporalBounds
		out.TemporalBounds = &t
	}
	out.Parameters = append([]Parameter(nil), in.Parameters...)
	return out
}

// Valid checks the invariants from SPEC_FULL.md §3.
func (in Intent) Valid() bool {
	if in.AgentMask.Empty() {
		return false
	}
	if in.SpatialBounds != nil && !in.SpatialBounds.Valid() {
		return false
	}
	return true
}

// Measurement is a single immutable float reading. Fields may individually
// be NaN (represented here via *float64 being nil) but are never synthesized.
type Measurement struct {
	PlatformID  string
	Time        time.Time
	Lat         float64
	Lon         float64
	Pressure    *float64
	Temperature *float64
	Salinity    *float64
}

// Stats holds per-parameter descriptive statistics, absent when the source
// set was empty.
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
}

// FloatMetadata describes a platform as stored in the graph; read-only.
type FloatMetadata struct {
	PlatformID  string
	Deployed    time.Time
	Status      string
	Region      string
	Institution string
	Extra       map[string]any
}

// RegionMetadata describes a named ocean region as stored in the graph.
type RegionMetadata struct {
	Name         string
	ParentRegion string
	FloatCount   int
	Extra        map[string]any
}

// SemanticHit is one vector-search match. Hits keep the order the vector
// store returns them in (descending score); the vector adapter does not
// populate Time, so hits with equal scores are not ordered by time.
type SemanticHit struct {
	PlatformID string
	Time       time.Time
	Score      float64
	Metadata   map[string]any
}

// ErrorKind is the closed error taxonomy of SPEC_FULL.md §7.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "INVALID_INPUT"
	ErrSessionNotFound    ErrorKind = "SESSION_NOT_FOUND"
	ErrRateLimited        ErrorKind = "RATE_LIMITED"
	ErrBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	ErrBackendQueryError  ErrorKind = "BACKEND_QUERY_ERROR"
	ErrLLMUnavailable     ErrorKind = "LLM_UNAVAILABLE"
	ErrAgentTimeout       ErrorKind = "AGENT_TIMEOUT"
	ErrCoreNotReady       ErrorKind = "CORE_NOT_READY"
	ErrInternal           ErrorKind = "INTERNAL"
)

// Retriable reports whether the kind is safe to retry at the connection
// level (SPEC_FULL.md §7).
func (k ErrorKind) Retriable() bool {
	return k == ErrBackendUnavailable
}

// AgentError is the error value carried by an AgentResult; errors never
// cross agent boundaries as Go errors, only as this value.
type AgentError struct {
	Kind    ErrorKind
	Message string
	Detail  map[string]any
}

func (e AgentError) Error() string { return e.Message }

// MeasurementResult is the Measurement Agent's output.
type MeasurementResult struct {
	Rows      []Measurement
	Stats     map[Parameter]Stats
	TimeRange *TemporalBounds
	Bounds    *SpatialBounds
}

// MetadataResult is the Metadata Agent's output.
type MetadataResult struct {
	Float    *FloatMetadata
	Region   *RegionMetadata
	Floats   []FloatMetadata
	Regions  []RegionMetadata
	Summary  string
	Count    int
	HasCount bool
}

// SemanticResult is the Semantic Agent's output.
type SemanticResult struct {
	Hits []SemanticHit
}

// AgentResult is the closed tagged-union result every agent returns. Exactly
// one of Measurement/Metadata/Semantic/Err is non-nil.
type AgentResult struct {
	Kind        AgentKind
	Measurement *MeasurementResult
	Metadata    *MetadataResult
	Semantic    *SemanticResult
	Err         *AgentError
}

// IsError reports whether the result is an error value.
func (r AgentResult) IsError() bool { return r.Err != nil }

// OrchestratorState names one node of the cyclic state machine (§4.6).
type OrchestratorState string

const (
	StateParseIntent   OrchestratorState = "parse_intent"
	StateExecuteAgents OrchestratorState = "execute_agents"
	StateAnalyze       OrchestratorState = "analyze"
	StateDecide        OrchestratorState = "decide"
	StateRefine        OrchestratorState = "refine"
	StateSynthesize    OrchestratorState = "synthesize"
	StateDone          OrchestratorState = "done"
	StateError         OrchestratorState = "error"
)

// Suggestion is one of the Analyzer's closed set of refinement hints.
type Suggestion string

const (
	SuggestExpandSpatial   Suggestion = "expand_spatial"
	SuggestExpandTemporal  Suggestion = "expand_temporal"
	SuggestBroadenSemantic Suggestion = "broaden_semantic"
	SuggestEnhanceMetadata Suggestion = "enhance_metadata"
)

// Analysis is the Analyzer's verdict for one cycle.
type Analysis struct {
	MeasurementQuality float64
	MetadataQuality    float64
	SemanticQuality    float64
	Completeness       float64
	Overall            float64
	Suggestions        []Suggestion
	NeedsRefinement    bool
}

// CycleState is owned by exactly one orchestrator invocation.
type CycleState struct {
	CycleIndex    int
	Intent        Intent
	ResultsByKind map[AgentKind]AgentResult
	Analysis      *Analysis
}

// ConversationMessage is one turn in a Session's history.
type ConversationMessage struct {
	ID        string
	SessionID string
	Timestamp time.Time
	Role      string // "user" or "assistant"
	Content   string
	Metadata  map[string]any
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionContext is the accumulated, bounded context a Session keeps about
// its conversation (SPEC_FULL.md §12).
type SessionContext struct {
	RegionsDiscussed     []string
	FloatsAnalyzed       []string
	ParametersOfInterest []string
	PreviousQueries      []QueryRecord
}

// QueryRecord classifies one past user turn for the context summary.
type QueryRecord struct {
	Type      string
	Timestamp time.Time
	Content   string
}

const maxFloatsTracked = 20
const maxQueryHistory = 20

// AddRegion appends a region to the context if not already present.
func (c *SessionContext) AddRegion(region string) {
	for _, r := range c.RegionsDiscussed {
		if r == region {
			return
		}
	}
	c.RegionsDiscussed = append(c.RegionsDiscussed, region)
}

// AddParameter appends a parameter to the context if not already present.
func (c *SessionContext) AddParameter(param string) {
	for _, p := range c.ParametersOfInterest {
		if p == param {
			return
		}
	}
	c.ParametersOfInterest = append(c.ParametersOfInterest, param)
}

// AddFloat appends a float id to the context if not already present,
// capped at maxFloatsTracked entries (oldest dropped first).
func (c *SessionContext) AddFloat(floatID string) {
	for _, f := range c.FloatsAnalyzed {
		if f == floatID {
			return
		}
	}
	c.FloatsAnalyzed = append(c.FloatsAnalyzed, floatID)
	if len(c.FloatsAnalyzed) > maxFloatsTracked {
		c.FloatsAnalyzed = c.FloatsAnalyzed[len(c.FloatsAnalyzed)-maxFloatsTracked:]
	}
}

// AddQueryRecord appends a query record, capped at maxQueryHistory entries.
func (c *SessionContext) AddQueryRecord(rec QueryRecord) {
	c.PreviousQueries = append(c.PreviousQueries, rec)
	if len(c.PreviousQueries) > maxQueryHistory {
		c.PreviousQueries = c.PreviousQueries[len(c.PreviousQueries)-maxQueryHistory:]
	}
}

// Summary renders a single-line context summary for prompt injection,
// matching original_source's generate_context_summary.
func (c *SessionContext) Summary() string {
	var parts []string
	if len(c.RegionsDiscussed) > 0 {
		parts = append(parts, "Regions discussed: "+strings.Join(c.RegionsDiscussed, ", "))
	}
	if len(c.FloatsAnalyzed) > 0 {
		parts = append(parts, "Floats analyzed: "+strings.Join(c.FloatsAnalyzed, ", "))
	}
	if len(c.ParametersOfInterest) > 0 {
		parts = append(parts, "Parameters of interest: "+strings.Join(c.ParametersOfInterest, ", "))
	}
	if n := len(c.PreviousQueries); n > 0 {
		start := n - 3
		if start < 0 {
			start = 0
		}
		var types []string
		for _, q := range c.PreviousQueries[start:] {
			types = append(types, q.Type)
		}
		parts = append(parts, "Recent query types: "+strings.Join(types, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Previous conversation context: " + strings.Join(parts, " | ")
}

// Session is the server-side conversation record. MaxMessages bounds
// Messages (oldest dropped first, preserving order).
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Messages     []ConversationMessage
	Context      SessionContext
	Preferences  map[string]any
	MaxMessages  int
}

// AppendMessage adds a message, enforcing the bounded-history invariant.
func (s *Session) AppendMessage(msg ConversationMessage) {
	s.Messages = append(s.Messages, msg)
	if s.MaxMessages > 0 && len(s.Messages) > s.MaxMessages {
		s.Messages = s.Messages[len(s.Messages)-s.MaxMessages:]
	}
}

// RecentMessages returns up to n most recent messages, oldest first.
func (s *Session) RecentMessages(n int) []ConversationMessage {
	if n <= 0 || n >= len(s.Messages) {
		out := make([]ConversationMessage, len(s.Messages))
		copy(out, s.Messages)
		return out
	}
	start := len(s.Messages) - n
	out := make([]ConversationMessage, n)
	copy(out, s.Messages[start:])
	return out
}

// ChartType is one of the Coordinator's closed set of visualization kinds.
type ChartType string

const (
	ChartLine      ChartType = "line"
	ChartArea      ChartType = "area"
	ChartScatter   ChartType = "scatter"
	ChartScatter3D ChartType = "scatter3d"
	ChartComposed  ChartType = "composed"
	ChartBar       ChartType = "bar"
	ChartMapPoints ChartType = "map_points"
	ChartHeatmap   ChartType = "heatmap"
)

// ChartData is the tabular payload backing one Visualization: a fixed field
// order plus rows keyed by those field names.
type ChartData struct {
	Fields []string
	Rows   []map[string]any
}

// Visualization is one chart spec in the Coordinator's embedded viz block.
type Visualization struct {
	Type      ChartType
	Title     string
	Subtitle  string
	Data      ChartData
	Encodings map[string]string
	Options   map[string]any
	Styling   map[string]any
}

// CoordinatorResponse is the Coordinator's output: a narrative plus an
// optional list of visualization specs (SPEC_FULL.md §4.5). CycleCount and
// AgentsUsed are filled in by the Orchestrator after synthesis so a façade
// can report them in its response metadata without threading CycleState
// through the call stack.
type CoordinatorResponse struct {
	Narrative      string
	Visualizations []Visualization
	RowCount       int
	Truncated      bool
	CycleCount     int
	AgentsUsed     []AgentKind
}

// ProgressEvent is emitted by the Orchestrator on every state transition so
// a façade can relay real cycle progress over SSE rather than fabricated
// stage names (SPEC_FULL.md §13 Open Question 3).
type ProgressEvent struct {
	State      OrchestratorState
	CycleIndex int
	Detail     string
}

// ProgressFunc receives one ProgressEvent per Orchestrator state transition.
// A nil ProgressFunc is valid and simply means nobody is listening.
type ProgressFunc func(ProgressEvent)

// SessionStats is the aggregate §4.8 stats() payload.
type SessionStats struct {
	TotalSessions        int
	ActiveSessions       int
	TotalMessages        int
	AvgMessagesPerSession float64
}
