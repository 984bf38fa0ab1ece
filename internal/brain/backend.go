package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message is a single chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request sent to the model backend.
type Request struct {
	Messages []Message
	// Model overrides the backend's configured model when non-empty.
	Model string
	// JSONMode asks the backend for structured JSON output where supported.
	JSONMode bool
}

// Backend produces a text completion for a prompt. Implementations are
// stateless between calls.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrUnavailable reports that the backend could not be reached or refused
// the request; ErrTimeout that it did not answer within the deadline.
var (
	ErrUnavailable = errors.New("inference backend unavailable")
	ErrTimeout     = errors.New("inference backend timeout")
)

// Config controls backend construction.
type Config struct {
	Mode      string
	OllamaURL string
	Model     string
	Timeout   time.Duration
}

func NewBackend(cfg Config) (Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.OllamaURL) != "" {
			return NewOllamaBackend(cfg.OllamaURL, cfg.Model, cfg.Timeout), nil
		}
		return NewMockBackend(), nil
	case "ollama":
		if strings.TrimSpace(cfg.OllamaURL) == "" {
			return nil, errors.New("ollama URL is required for ollama mode")
		}
		return NewOllamaBackend(cfg.OllamaURL, cfg.Model, cfg.Timeout), nil
	case "mock":
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported brain backend mode %q", cfg.Mode)
	}
}
