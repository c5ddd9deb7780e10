package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// Result is the outcome of one agent invocation. Exactly one of Output and
// Failure is set; faults never escape the executor as Go errors.
type Result struct {
	Agent   contractx.AgentName
	Output  *contractx.AgentOutput
	Failure *contractx.AgentFailure
}

// Executor invokes a single agent against an assembled context. It does not
// retry; retry policy belongs to the orchestrator.
type Executor struct {
	agents contractx.AgentSet
}

func New(agents contractx.AgentSet) *Executor {
	return &Executor{agents: agents}
}

func (e *Executor) Run(ctx context.Context, name contractx.AgentName, in contractx.ExecContext) (res Result) {
	res.Agent = name

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("agent", string(name)).
				Str("phone_number", in.PhoneNumber).
				Interface("panic", r).
				Msg("agent panicked")
			res.Output = nil
			res.Failure = &contractx.AgentFailure{
				Agent:   name,
				Message: fmt.Sprintf("agent panicked: %v", r),
			}
		}
	}()

	agent, ok := e.agents.Agent(name)
	if !ok {
		res.Failure = &contractx.AgentFailure{
			Agent:   name,
			Message: fmt.Sprintf("no backend registered for agent %s", name),
		}
		return res
	}

	out, err := agent.Run(ctx, in)
	if err != nil {
		log.Warn().
			Err(err).
			Str("agent", string(name)).
			Str("phone_number", in.PhoneNumber).
			Msg("agent run failed")
		res.Failure = &contractx.AgentFailure{
			Agent:   name,
			Message: err.Error(),
		}
		return res
	}

	out.Agent = name
	res.Output = &out
	return res
}
