package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
	openrouterx "github.com/deuterium1925/smart-ass-back/pkg/openrouter"
)

// Config carries the shared OpenRouter settings plus per-agent model and
// temperature overrides. An empty override falls back to the defaults.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	IntentModel      string `envconfig:"INTENT_MODEL" split_words:"true"`
	EmotionModel     string `envconfig:"EMOTION_MODEL" split_words:"true"`
	KnowledgeModel   string `envconfig:"KNOWLEDGE_MODEL" split_words:"true"`
	SuggestionsModel string `envconfig:"SUGGESTIONS_MODEL" split_words:"true"`
	SummaryModel     string `envconfig:"SUMMARY_MODEL" split_words:"true"`
	QAModel          string `envconfig:"QA_MODEL" split_words:"true"`

	IntentTemperature      float32 `envconfig:"INTENT_TEMPERATURE" split_words:"true" default:"-1"`
	EmotionTemperature     float32 `envconfig:"EMOTION_TEMPERATURE" split_words:"true" default:"-1"`
	KnowledgeTemperature   float32 `envconfig:"KNOWLEDGE_TEMPERATURE" split_words:"true" default:"-1"`
	SuggestionsTemperature float32 `envconfig:"SUGGESTIONS_TEMPERATURE" split_words:"true" default:"-1"`
	SummaryTemperature     float32 `envconfig:"SUMMARY_TEMPERATURE" split_words:"true" default:"-1"`
	QATemperature          float32 `envconfig:"QA_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the effective model config for one agent.
func (c Config) OpenRouterFor(agent contractx.AgentName) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch agent {
	case contractx.AgentIntent:
		override(c.IntentModel, c.IntentTemperature)
	case contractx.AgentEmotion:
		override(c.EmotionModel, c.EmotionTemperature)
	case contractx.AgentKnowledge:
		override(c.KnowledgeModel, c.KnowledgeTemperature)
	case contractx.AgentSuggestions:
		override(c.SuggestionsModel, c.SuggestionsTemperature)
	case contractx.AgentSummary:
		override(c.SummaryModel, c.SummaryTemperature)
	case contractx.AgentQA:
		override(c.QAModel, c.QATemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
