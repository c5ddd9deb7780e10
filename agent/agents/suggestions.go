package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const (
	suggestionsHistoryWindow = 5
	maxSuggestionPriority    = 5
)

type suggestionsAgent struct {
	runner compose.Runnable[map[string]any, suggestionsLLMOutput]
}

type suggestionsLLMOutput struct {
	Suggestions []contractx.Suggestion `json:"suggestions"`
}

func newSuggestionsAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*suggestionsAgent, error) {
	runner, err := compileStructuredGraph[suggestionsLLMOutput](ctx, chatModel, systemPrompt, "suggestions.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile suggestions graph: %v", contractx.ErrModelInvoke, err)
	}
	return &suggestionsAgent{runner: runner}, nil
}

func (a *suggestionsAgent) Name() contractx.AgentName {
	return contractx.AgentSuggestions
}

// Run consumes the intent, emotion, and knowledge outputs merged into the
// context by the orchestrator, plus the customer profile.
func (a *suggestionsAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	out, err := invokeStructured(ctx, a.runner, map[string]any{
		"user_text":     in.UserText,
		"history":       historyLines(in.History, suggestionsHistoryWindow),
		"customer_data": customerAttributes(in.Customer),
		"intent":        peerResult(in, contractx.AgentIntent),
		"emotion":       peerResult(in, contractx.AgentEmotion),
		"knowledge":     peerResult(in, contractx.AgentKnowledge),
	})
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	if len(out.Suggestions) == 0 {
		return contractx.AgentOutput{}, fmt.Errorf("%w: no suggestions produced", contractx.ErrSchemaViolation)
	}

	suggestions := make([]contractx.Suggestion, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		if s.Priority < 1 || s.Priority > maxSuggestionPriority {
			s.Priority = 1
		}
		suggestions = append(suggestions, s)
	}
	if len(suggestions) == 0 {
		return contractx.AgentOutput{}, fmt.Errorf("%w: all suggestions were empty", contractx.ErrSchemaViolation)
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentSuggestions,
		Result: map[string]any{
			"suggestions": suggestions,
		},
		Confidence: 1,
	}, nil
}
