package agents

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// compileStructuredGraph builds the prompt -> model -> json-parse pipeline
// every agent runs on. The system prompt pins the output schema; the user
// message carries the JSON-encoded analysis payload.
func compileStructuredGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile graph %s: %w", graphName, err)
	}
	return runner, nil
}

func invokeStructured[T any](
	ctx context.Context,
	runner compose.Runnable[map[string]any, T],
	payload map[string]any,
) (T, error) {
	var zero T

	input, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("%w: marshal agent payload: %v", contractx.ErrValidation, err)
	}

	out, err := runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return zero, fmt.Errorf("%w: agent invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
