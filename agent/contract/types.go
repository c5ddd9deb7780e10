package contract

import (
	"time"
)

type AgentName string

const (
	AgentIntent      AgentName = "intent"
	AgentEmotion     AgentName = "emotion"
	AgentKnowledge   AgentName = "knowledge"
	AgentSuggestions AgentName = "suggestions"
	AgentSummary     AgentName = "summary"
	AgentQA          AgentName = "qa"
)

// Customer is the per-phone-number profile record. Attributes hold free-form
// personalization data (tariff plan, subscription flags, device) consumed by
// the suggestion agent.
type Customer struct {
	PhoneNumber string         `json:"phone_number"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type ResultState string

const (
	StatePending   ResultState = "pending"
	StateCompleted ResultState = "completed"
	StateFailed    ResultState = "failed"
)

// AutomatedSlot is one of the two deferred-result slots on a turn.
type AutomatedSlot struct {
	State  ResultState  `json:"state"`
	Output *AgentOutput `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// AutomatedResults is written at most once per turn, by the deferred-trigger
// pipeline only. Both slots start pending and move to completed or failed
// together in a single store update.
type AutomatedResults struct {
	QAFeedback AutomatedSlot `json:"qa_feedback"`
	Summary    AutomatedSlot `json:"summary"`
}

// NewPendingResults is the placeholder attached to every freshly appended turn.
func NewPendingResults() AutomatedResults {
	return AutomatedResults{
		QAFeedback: AutomatedSlot{State: StatePending},
		Summary:    AutomatedSlot{State: StatePending},
	}
}

// Pending reports whether the deferred pipeline has not fired for this turn yet.
func (r AutomatedResults) Pending() bool {
	return r.QAFeedback.State == StatePending && r.Summary.State == StatePending
}

// Turn is one customer message plus (eventually) one operator response and
// the automated results. Timestamp is assigned by the store and is the turn's
// sole external identifier; Sequence is derived on read.
type Turn struct {
	PhoneNumber      string           `json:"phone_number"`
	Timestamp        int64            `json:"timestamp"`
	Sequence         int              `json:"sequence_number"`
	UserText         string           `json:"user_text"`
	OperatorResponse string           `json:"operator_response,omitempty"`
	Automated        AutomatedResults `json:"automated_results"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AgentOutput is the structured result of a single successful agent run.
type AgentOutput struct {
	Agent      AgentName      `json:"agent_name"`
	Result     map[string]any `json:"result"`
	Confidence float64        `json:"confidence"`
}

// AgentFailure is the typed failure value an agent run folds into; it never
// propagates as a Go error past the executor boundary.
type AgentFailure struct {
	Agent   AgentName `json:"agent_name"`
	Message string    `json:"message"`
}

// Suggestion is one prioritized operator action produced by the suggestions
// agent. Priority runs 1 (highest) to 5.
type Suggestion struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
}

// ExecContext is the assembled input handed to a single agent invocation:
// the turn text, the operator text when available, the customer snapshot,
// the history window, and the outputs of the agent's prerequisites.
type ExecContext struct {
	PhoneNumber      string
	UserText         string
	OperatorResponse string
	Customer         *Customer
	History          []Turn
	PeerOutputs      map[AgentName]*AgentOutput
	Now              time.Time
}

// AnalysisResult is the ephemeral bundle returned by on-demand analysis.
// It is assembled fresh per request and never persisted.
type AnalysisResult struct {
	PhoneNumber         string                      `json:"phone_number"`
	Outputs             map[AgentName]*AgentOutput  `json:"outputs"`
	Failures            map[AgentName]*AgentFailure `json:"failures,omitempty"`
	Suggestions         []Suggestion                `json:"suggestions,omitempty"`
	ConversationHistory []Turn                      `json:"conversation_history"`
	CustomerData        *Customer                   `json:"customer_data"`
	CurrentTimestamp    int64                       `json:"current_timestamp,omitempty"`
	ConsolidatedOutput  string                      `json:"consolidated_output"`
}
