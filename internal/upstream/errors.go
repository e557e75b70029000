package upstream

import (
	"errors"
	"fmt"
)

// ErrExhaustedRetries matches any *ExhaustedRetriesError via errors.Is.
var ErrExhaustedRetries = errors.New("upstream: retries exhausted")

const maxErrorBody = 512

// TransportError describes one failed attempt: either the request never got
// an answer (Err set) or the answer was not 2xx (StatusCode set).
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream transport: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

func newStatusError(status int, body []byte) *TransportError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &TransportError{StatusCode: status, Body: text}
}

// ExhaustedRetriesError is returned once every attempt has failed. Last is
// the cause of the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("upstream: %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// Is lets errors.Is(err, ErrExhaustedRetries) match.
func (e *ExhaustedRetriesError) Is(target error) bool {
	return target == ErrExhaustedRetries
}
