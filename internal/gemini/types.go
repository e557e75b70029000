// Package gemini builds generateContent payloads, normalizes responses and
// calls the Gemini REST API.
package gemini

// Wire roles used by the generateContent API.
const (
	wireRoleUser  = "user"
	wireRoleModel = "model"
)

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
	Tools             []Tool    `json:"tools,omitempty"`
}

// Content is one turn in the request.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part carries the text of a turn.
type Part struct {
	Text string `json:"text"`
}

// Tool enables a built-in tool for the call.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

// GoogleSearch turns on search grounding. It has no options.
type GoogleSearch struct{}

// GenerateContentResponse is the subset of the response the service reads.
// Every level is optional on the wire.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content           *ResponseContent   `json:"content"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata"`
}

// ResponseContent holds the parts of a candidate.
type ResponseContent struct {
	Parts []ResponsePart `json:"parts"`
}

// ResponsePart is one part of a candidate; only text is used.
type ResponsePart struct {
	Text *string `json:"text"`
}

// GroundingMetadata lists the web sources the answer drew on.
type GroundingMetadata struct {
	GroundingAttributions []GroundingAttribution `json:"groundingAttributions"`
}

// GroundingAttribution is one source.
type GroundingAttribution struct {
	Web *WebSource `json:"web"`
}

// WebSource is a linked page.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}
