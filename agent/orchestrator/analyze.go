package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// AnalyzeRequest addresses one on-demand analysis call. When Timestamps is
// set the history window is exactly those turns in input order; otherwise the
// most recent HistoryLimit turns are used. An empty Agents set means every
// on-demand agent.
type AnalyzeRequest struct {
	PhoneNumber  string
	Timestamps   []int64
	HistoryLimit int
	Agents       []contractx.AgentName
}

const historyOnlyAnalysisText = "Анализ проводится на основе истории без нового сообщения."

// Analyze resolves the customer and history window, expands the requested
// agent set to its prerequisite closure, and executes the closure batch by
// batch. Per-agent failures are folded into the result; the call fails with
// ErrAgentExecution only when every requested agent failed. Nothing is
// persisted.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (*contractx.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	phone, err := contractx.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	customer, err := o.store.GetCustomer(ctx, phone)
	if err != nil {
		return nil, err
	}

	var history []contractx.Turn
	if len(req.Timestamps) > 0 {
		history, err = o.store.TurnsByTimestamps(ctx, phone, req.Timestamps)
	} else {
		history, err = o.store.History(ctx, phone, req.HistoryLimit)
	}
	if err != nil {
		return nil, err
	}

	requested := req.Agents
	if len(requested) == 0 {
		requested = []contractx.AgentName{
			contractx.AgentIntent,
			contractx.AgentEmotion,
			contractx.AgentKnowledge,
			contractx.AgentSuggestions,
		}
	}

	batches, err := o.registry.ResolveClosure(requested)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("phone_number", phone).
		Int("history_turns", len(history)).
		Int("batches", len(batches)).
		Msg("analyzing conversation")

	base := contractx.ExecContext{
		PhoneNumber: phone,
		UserText:    batchUserText(history),
		Customer:    customer,
		History:     history,
		Now:         o.now().UTC(),
	}

	outputs := make(map[contractx.AgentName]*contractx.AgentOutput)
	failures := make(map[contractx.AgentName]*contractx.AgentFailure)

	for _, batch := range batches {
		in := base
		in.PeerOutputs = outputs

		results, err := o.runBatch(ctx, batch, in)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if res.Failure != nil {
				failures[res.Agent] = res.Failure
				continue
			}
			outputs[res.Agent] = res.Output
		}
	}

	allFailed := true
	for _, name := range requested {
		if _, ok := outputs[name]; ok {
			allFailed = false
			break
		}
	}
	if allFailed {
		return nil, fmt.Errorf("%w: customer %s", contractx.ErrAgentExecution, phone)
	}

	result := &contractx.AnalysisResult{
		PhoneNumber:         phone,
		Outputs:             outputs,
		Failures:            failures,
		Suggestions:         extractSuggestions(outputs),
		ConversationHistory: history,
		CustomerData:        customer,
		ConsolidatedOutput:  consolidate(outputs),
	}
	if len(history) > 0 {
		result.CurrentTimestamp = history[len(history)-1].Timestamp
	}

	log.Info().
		Str("phone_number", phone).
		Int("succeeded", len(outputs)).
		Int("failed", len(failures)).
		Msg("analysis completed")
	return result, nil
}

// batchUserText concatenates the window's user messages so independent
// analyzers can grade the batch as one text.
func batchUserText(history []contractx.Turn) string {
	texts := make([]string, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.UserText) != "" {
			texts = append(texts, turn.UserText)
		}
	}
	if len(texts) == 0 {
		return historyOnlyAnalysisText
	}
	return strings.Join(texts, "\n")
}

func consolidate(outputs map[contractx.AgentName]*contractx.AgentOutput) string {
	intent := resultField(outputs, contractx.AgentIntent, "intent")
	emotion := resultField(outputs, contractx.AgentEmotion, "emotion")
	return fmt.Sprintf("Обработано: Намерение='%s', Эмоция='%s'", intent, emotion)
}

func resultField(outputs map[contractx.AgentName]*contractx.AgentOutput, agent contractx.AgentName, field string) string {
	out, ok := outputs[agent]
	if !ok || out == nil {
		return "N/A"
	}
	v, ok := out.Result[field].(string)
	if !ok || v == "" {
		return "N/A"
	}
	return v
}

func extractSuggestions(outputs map[contractx.AgentName]*contractx.AgentOutput) []contractx.Suggestion {
	out, ok := outputs[contractx.AgentSuggestions]
	if !ok || out == nil {
		return nil
	}
	suggestions, ok := out.Result["suggestions"].([]contractx.Suggestion)
	if !ok {
		return nil
	}
	return suggestions
}
