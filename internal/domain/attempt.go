package domain

import "time"

// AttemptRecord captures one outbound completion attempt for diagnostics.
type AttemptRecord struct {
	ID         string        `json:"id"`
	SessionKey string        `json:"session_key"`
	TurnID     string        `json:"turn_id"`
	Attempt    int           `json:"attempt"`
	StatusCode int           `json:"status_code"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Delay      time.Duration `json:"delay"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Succeeded reports whether the attempt got a 2xx answer.
func (a AttemptRecord) Succeeded() bool {
	return a.Error == "" && a.StatusCode >= 200 && a.StatusCode < 300
}
