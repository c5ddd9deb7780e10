package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

type knowledgeAgent struct {
	runner compose.Runnable[map[string]any, knowledgeLLMOutput]
}

type knowledgeLLMOutput struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources,omitempty"`
	Confidence float64  `json:"confidence"`
}

func newKnowledgeAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*knowledgeAgent, error) {
	runner, err := compileStructuredGraph[knowledgeLLMOutput](ctx, chatModel, systemPrompt, "knowledge.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile knowledge graph: %v", contractx.ErrModelInvoke, err)
	}
	return &knowledgeAgent{runner: runner}, nil
}

func (a *knowledgeAgent) Name() contractx.AgentName {
	return contractx.AgentKnowledge
}

func (a *knowledgeAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	out, err := invokeStructured(ctx, a.runner, map[string]any{
		"user_text": in.UserText,
	})
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return contractx.AgentOutput{}, fmt.Errorf("%w: knowledge answer is empty", contractx.ErrSchemaViolation)
	}

	sources := out.Sources
	if sources == nil {
		sources = []string{}
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentKnowledge,
		Result: map[string]any{
			"answer":  answer,
			"sources": sources,
		},
		Confidence: clampConfidence(out.Confidence),
	}, nil
}
