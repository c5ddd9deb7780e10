package agents

import (
	"fmt"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const (
	noOperatorResponse = "Ответ оператора отсутствует"
	noUserText         = "Не указано"
)

// historyLines renders the last limit turns as compact dialogue lines for
// prompt context. Older turns are dropped to bound token usage.
func historyLines(history []contractx.Turn, limit int) []string {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		userText := turn.UserText
		if userText == "" {
			userText = noUserText
		}
		opResponse := turn.OperatorResponse
		if opResponse == "" {
			opResponse = noOperatorResponse
		}
		lines = append(lines, fmt.Sprintf("Клиент: %s | Оператор: %s", userText, opResponse))
	}
	return lines
}

func customerAttributes(c *contractx.Customer) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return c.Attributes
}

func peerResult(in contractx.ExecContext, name contractx.AgentName) map[string]any {
	out, ok := in.PeerOutputs[name]
	if !ok || out == nil {
		return map[string]any{}
	}
	return out.Result
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
