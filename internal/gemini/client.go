package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/upstream"
)

const (
	// DefaultBaseURL is the public Generative Language API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash-preview-05-20"
)

// ErrNotConfigured is returned by Complete when no API key is set.
var ErrNotConfigured = errors.New("gemini: API key not configured")

// Sender performs a request with retries. *upstream.Requester satisfies it.
type Sender interface {
	Send(ctx context.Context, req *upstream.Request) (*upstream.RawResponse, error)
}

// Config holds the endpoint settings for a Client.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	SystemInstruction string
}

// Client sends a conversation to generateContent and normalizes the answer.
type Client struct {
	sender Sender
	cfg    Config
}

// NewClient creates a Client. Empty Model, BaseURL and SystemInstruction
// fall back to the package defaults.
func NewClient(sender Sender, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = SystemInstruction
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{sender: sender, cfg: cfg}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends the whole history and returns the normalized answer.
// Transport failures surface as upstream errors; a malformed 2xx body is
// not an error.
func (c *Client) Complete(ctx context.Context, history []domain.Message) (domain.Completion, error) {
	if !c.Configured() {
		return domain.Completion{}, ErrNotConfigured
	}

	payload, err := BuildRequest(history, c.cfg.SystemInstruction)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("build request: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.sender.Send(ctx, &upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(),
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   body,
	})
	if err != nil {
		return domain.Completion{}, fmt.Errorf("generate content: %w", err)
	}
	return Extract(resp.Body), nil
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))
}
