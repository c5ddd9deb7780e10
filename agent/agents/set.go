package agents

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
	llmx "github.com/deuterium1925/smart-ass-back/agent/llm"
	promptx "github.com/deuterium1925/smart-ass-back/agent/prompt"
)

// Set holds the constructed agent backends; it implements contract.AgentSet.
type Set struct {
	agents map[contractx.AgentName]contractx.Agent
}

func (s *Set) Agent(name contractx.AgentName) (contractx.Agent, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// NewSet builds all six agents from LLM config, one chat model per agent so
// model and temperature overrides apply independently.
func NewSet(ctx context.Context, cfg llmx.Config) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	set := &Set{agents: make(map[contractx.AgentName]contractx.Agent, 6)}

	modelFor := func(agent contractx.AgentName) (einomodel.ToolCallingChatModel, error) {
		mc := cfg.OpenRouterFor(agent)
		m, err := mc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agent, err)
		}
		return m, nil
	}

	register := func(agent contractx.Agent, err error) error {
		if err != nil {
			return err
		}
		set.agents[agent.Name()] = agent
		return nil
	}

	intentModel, err := modelFor(contractx.AgentIntent)
	if err != nil {
		return nil, err
	}
	if err := register(newIntentAgent(ctx, intentModel, prompts.Intent)); err != nil {
		return nil, err
	}

	emotionModel, err := modelFor(contractx.AgentEmotion)
	if err != nil {
		return nil, err
	}
	if err := register(newEmotionAgent(ctx, emotionModel, prompts.Emotion)); err != nil {
		return nil, err
	}

	knowledgeModel, err := modelFor(contractx.AgentKnowledge)
	if err != nil {
		return nil, err
	}
	if err := register(newKnowledgeAgent(ctx, knowledgeModel, prompts.Knowledge)); err != nil {
		return nil, err
	}

	suggestionsModel, err := modelFor(contractx.AgentSuggestions)
	if err != nil {
		return nil, err
	}
	if err := register(newSuggestionsAgent(ctx, suggestionsModel, prompts.Suggestions)); err != nil {
		return nil, err
	}

	summaryModel, err := modelFor(contractx.AgentSummary)
	if err != nil {
		return nil, err
	}
	if err := register(newSummaryAgent(ctx, summaryModel, prompts.Summary)); err != nil {
		return nil, err
	}

	qaModel, err := modelFor(contractx.AgentQA)
	if err != nil {
		return nil, err
	}
	if err := register(newQAAgent(ctx, qaModel, prompts.QA)); err != nil {
		return nil, err
	}

	return set, nil
}
