package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const summaryHistoryWindow = 10

type summaryAgent struct {
	runner compose.Runnable[map[string]any, summaryLLMOutput]
}

type summaryLLMOutput struct {
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

func newSummaryAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*summaryAgent, error) {
	runner, err := compileStructuredGraph[summaryLLMOutput](ctx, chatModel, systemPrompt, "summary.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile summary graph: %v", contractx.ErrModelInvoke, err)
	}
	return &summaryAgent{runner: runner}, nil
}

func (a *summaryAgent) Name() contractx.AgentName {
	return contractx.AgentSummary
}

func (a *summaryAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	payload := map[string]any{
		"user_text": in.UserText,
		"history":   historyLines(in.History, summaryHistoryWindow),
	}
	if in.OperatorResponse != "" {
		payload["operator_response"] = in.OperatorResponse
	}

	out, err := invokeStructured(ctx, a.runner, payload)
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return contractx.AgentOutput{}, fmt.Errorf("%w: summary is empty", contractx.ErrSchemaViolation)
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentSummary,
		Result: map[string]any{
			"summary": summary,
		},
		Confidence: clampConfidence(out.Confidence),
	}, nil
}
