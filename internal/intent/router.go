// Package intent decides whether an utterance asks for the prompting guide.
package intent

import (
	"strings"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
)

// DefaultKeywords are the phrases that route an utterance to the guide.
var DefaultKeywords = []string{
	"how to prompt",
	"better prompt",
	"prompt guide",
	"learn prompt",
	"prompting",
}

// Router classifies utterances by case-insensitive substring match.
type Router struct {
	keywords []string
}

// NewRouter builds a Router. With no keywords, DefaultKeywords is used.
func NewRouter(keywords ...string) *Router {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}
	return &Router{keywords: normalized}
}

// Classify returns IntentSwitchToGuide when the trimmed, lower-cased
// utterance contains any keyword, and IntentChat otherwise.
func (r *Router) Classify(utterance string) domain.Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return domain.IntentChat
	}
	for _, k := range r.keywords {
		if strings.Contains(text, k) {
			return domain.IntentSwitchToGuide
		}
	}
	return domain.IntentChat
}

// Keywords returns a copy of the active keywords.
func (r *Router) Keywords() []string {
	return append([]string(nil), r.keywords...)
}
