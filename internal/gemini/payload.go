package gemini

import (
	"fmt"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
)

// SystemInstruction is the persona sent with every call.
const SystemInstruction = "You are Prayu, a classic, friendly, and helpful AI chatbot. " +
	"Your primary goal is to assist the user by providing informative and concise responses. " +
	"Keep your tone light and positive and always refer to yourself as Prayu. " +
	"Crucially, do NOT use any Markdown formatting characters such as asterisks, hashtags, or lists. " +
	"Respond in plain, unformatted text. " +
	"You are equipped with Google Search to provide up-to-date and grounded information."

var wireRoles = map[domain.Role]string{
	domain.RoleUser:      wireRoleUser,
	domain.RoleAssistant: wireRoleModel,
}

// WireRole maps a conversation role to its generateContent name.
func WireRole(r domain.Role) (string, error) {
	role, ok := wireRoles[r]
	if !ok {
		return "", fmt.Errorf("gemini: no wire role for %s", r)
	}
	return role, nil
}

// BuildRequest converts the full history into a generateContent body. The
// order and count of turns is preserved, the system instruction is attached
// and search grounding is enabled.
func BuildRequest(history []domain.Message, systemInstruction string) (*GenerateContentRequest, error) {
	contents := make([]Content, 0, len(history))
	for i, msg := range history {
		role, err := WireRole(msg.Sender)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Text}},
		})
	}

	req := &GenerateContentRequest{
		Contents: contents,
		Tools:    []Tool{{GoogleSearch: &GoogleSearch{}}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemInstruction}}}
	}
	return req, nil
}
