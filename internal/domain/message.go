// Package domain holds the core types shared across the chat service.
package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies who authored a conversation turn.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

var roleNames = map[Role]string{
	RoleUser:      "user",
	RoleAssistant: "assistant",
}

// String returns the wire name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// MarshalJSON encodes the role as its wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal role: unknown role %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire name into a role.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal role: %w", err)
	}
	for role, name := range roleNames {
		if name == s {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("unmarshal role: unknown role %q", s)
}

// Message is one turn of the conversation.
type Message struct {
	Sender Role   `json:"sender"`
	Text   string `json:"text"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message {
	return Message{Sender: RoleUser, Text: text}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(text string) Message {
	return Message{Sender: RoleAssistant, Text: text}
}

// Citation is a web source backing an assistant answer.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Completion is the normalized result of one model call.
type Completion struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}
