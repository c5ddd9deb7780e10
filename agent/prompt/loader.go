package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/intent.txt
	intentRaw string

	//go:embed template/emotion.txt
	emotionRaw string

	//go:embed template/knowledge.txt
	knowledgeRaw string

	//go:embed template/suggestions.txt
	suggestionsRaw string

	//go:embed template/summary.txt
	summaryRaw string

	//go:embed template/qa.txt
	qaRaw string
)

// PromptSet holds the system prompts for every agent.
type PromptSet struct {
	Intent      string
	Emotion     string
	Knowledge   string
	Suggestions string
	Summary     string
	QA          string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intent:      strings.TrimSpace(intentRaw),
		Emotion:     strings.TrimSpace(emotionRaw),
		Knowledge:   strings.TrimSpace(knowledgeRaw),
		Suggestions: strings.TrimSpace(suggestionsRaw),
		Summary:     strings.TrimSpace(summaryRaw),
		QA:          strings.TrimSpace(qaRaw),
	}
}
