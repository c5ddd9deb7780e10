package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const intentHistoryWindow = 5

type intentAgent struct {
	runner compose.Runnable[map[string]any, intentLLMOutput]
}

type intentLLMOutput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func newIntentAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*intentAgent, error) {
	runner, err := compileStructuredGraph[intentLLMOutput](ctx, chatModel, systemPrompt, "intent.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile intent graph: %v", contractx.ErrModelInvoke, err)
	}
	return &intentAgent{runner: runner}, nil
}

func (a *intentAgent) Name() contractx.AgentName {
	return contractx.AgentIntent
}

func (a *intentAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	out, err := invokeStructured(ctx, a.runner, map[string]any{
		"user_text": in.UserText,
		"history":   historyLines(in.History, intentHistoryWindow),
	})
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	intent := strings.TrimSpace(out.Intent)
	if intent == "" {
		return contractx.AgentOutput{}, fmt.Errorf("%w: intent is empty", contractx.ErrSchemaViolation)
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentIntent,
		Result: map[string]any{
			"intent": intent,
		},
		Confidence: clampConfidence(out.Confidence),
	}, nil
}
