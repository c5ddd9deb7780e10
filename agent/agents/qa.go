package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

type qaAgent struct {
	runner compose.Runnable[map[string]any, qaLLMOutput]
}

type qaLLMOutput struct {
	Feedback   string  `json:"feedback"`
	Confidence float64 `json:"confidence"`
}

func newQAAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*qaAgent, error) {
	runner, err := compileStructuredGraph[qaLLMOutput](ctx, chatModel, systemPrompt, "qa.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile qa graph: %v", contractx.ErrModelInvoke, err)
	}
	return &qaAgent{runner: runner}, nil
}

func (a *qaAgent) Name() contractx.AgentName {
	return contractx.AgentQA
}

// Run grades the operator response against the user message. On a manual
// trigger without a response yet, the agent still runs over a degraded
// context; the prompt instructs the model how to grade an absent response.
func (a *qaAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	operatorResponse := in.OperatorResponse
	if strings.TrimSpace(operatorResponse) == "" {
		operatorResponse = "Ответ оператора отсутствует."
	}

	out, err := invokeStructured(ctx, a.runner, map[string]any{
		"user_text":         in.UserText,
		"operator_response": operatorResponse,
	})
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	feedback := strings.TrimSpace(out.Feedback)
	if feedback == "" {
		return contractx.AgentOutput{}, fmt.Errorf("%w: qa feedback is empty", contractx.ErrSchemaViolation)
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentQA,
		Result: map[string]any{
			"feedback": feedback,
		},
		Confidence: clampConfidence(out.Confidence),
	}, nil
}
