package domain

import (
	"fmt"
	"time"
)

// Mode is the panel the widget currently shows.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeGuide Mode = "guide"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeGuide:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Intent is the routing decision for a user utterance.
type Intent int

const (
	IntentChat Intent = iota
	IntentSwitchToGuide
)

func (i Intent) String() string {
	switch i {
	case IntentChat:
		return "chat"
	case IntentSwitchToGuide:
		return "switch_to_guide"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// Phase is the derived position of a session in its lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseAwaiting Phase = "awaiting"
	PhaseGuide    Phase = "guide"
)

// SessionState is a point-in-time view of one conversation.
type SessionState struct {
	History   []Message  `json:"history"`
	Mode      Mode       `json:"mode"`
	Pending   bool       `json:"pending"`
	Citations []Citation `json:"citations"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Phase derives the lifecycle phase from mode and pending.
func (s SessionState) Phase() Phase {
	switch {
	case s.Pending:
		return PhaseAwaiting
	case s.Mode == ModeGuide:
		return PhaseGuide
	default:
		return PhaseIdle
	}
}

// LastMessage returns the newest turn, if any.
func (s SessionState) LastMessage() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}
