package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const emotionHistoryWindow = 3

type emotionAgent struct {
	runner compose.Runnable[map[string]any, emotionLLMOutput]
}

type emotionLLMOutput struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

func newEmotionAgent(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*emotionAgent, error) {
	runner, err := compileStructuredGraph[emotionLLMOutput](ctx, chatModel, systemPrompt, "emotion.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile emotion graph: %v", contractx.ErrModelInvoke, err)
	}
	return &emotionAgent{runner: runner}, nil
}

func (a *emotionAgent) Name() contractx.AgentName {
	return contractx.AgentEmotion
}

func (a *emotionAgent) Run(ctx context.Context, in contractx.ExecContext) (contractx.AgentOutput, error) {
	out, err := invokeStructured(ctx, a.runner, map[string]any{
		"user_text": in.UserText,
		"history":   historyLines(in.History, emotionHistoryWindow),
	})
	if err != nil {
		return contractx.AgentOutput{}, err
	}

	emotion := strings.TrimSpace(out.Emotion)
	if emotion == "" {
		emotion = "neutral"
	}

	return contractx.AgentOutput{
		Agent: contractx.AgentEmotion,
		Result: map[string]any{
			"emotion": emotion,
		},
		Confidence: clampConfidence(out.Confidence),
	}, nil
}
