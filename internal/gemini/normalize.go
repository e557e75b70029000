package gemini

import (
	"encoding/json"
	"strings"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
)

// FallbackText replaces an answer that is missing or empty.
const FallbackText = "Sorry, I couldn't generate a response right now."

// Extract turns a raw generateContent body into display text and citations.
// It never fails: malformed or partial bodies yield FallbackText and no
// citations.
func Extract(raw []byte) domain.Completion {
	out := domain.Completion{Text: FallbackText, Citations: []domain.Citation{}}

	var resp GenerateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	cand := resp.Candidates[0]

	if text := firstText(cand); text != "" {
		out.Text = Sanitize(text)
	}
	out.Citations = citations(cand)
	return out
}

func firstText(c Candidate) string {
	if c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0].Text == nil {
		return ""
	}
	return *c.Content.Parts[0].Text
}

// citations keeps sources with both a uri and a title, in order, without
// removing duplicates.
func citations(c Candidate) []domain.Citation {
	out := []domain.Citation{}
	if c.GroundingMetadata == nil {
		return out
	}
	for _, attr := range c.GroundingMetadata.GroundingAttributions {
		if attr.Web == nil || attr.Web.URI == "" || attr.Web.Title == "" {
			continue
		}
		out = append(out, domain.Citation{URI: attr.Web.URI, Title: attr.Web.Title})
	}
	return out
}

// Sanitize removes bold markers first, then any remaining asterisk.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	return strings.ReplaceAll(text, "*", "")
}
