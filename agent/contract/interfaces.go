package contract

import "context"

// Agent is one opaque analysis backend. Run returns structured output or an
// error; retry policy and failure folding belong to the caller.
type Agent interface {
	Name() AgentName
	Run(ctx context.Context, in ExecContext) (AgentOutput, error)
}

// AgentSet resolves agent names to their backends.
type AgentSet interface {
	Agent(name AgentName) (Agent, bool)
}

// PendingQueue tracks turns still waiting for an operator response. Best
// effort: queue faults must not fail the originating request.
type PendingQueue interface {
	Enqueue(ctx context.Context, phoneNumber string, timestamp int64) error
	Dequeue(ctx context.Context, phoneNumber string, timestamp int64) error
	List(ctx context.Context) ([]PendingRef, error)
}

// PendingRef addresses one unanswered turn.
type PendingRef struct {
	PhoneNumber string `json:"phone_number"`
	Timestamp   int64  `json:"timestamp"`
}
