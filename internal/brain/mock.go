package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockBackend provides deterministic local replies when no model is
// configured. Extraction prompts get an empty item list so nothing
// fabricated ever reaches the store.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (b *MockBackend) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if req.JSONMode {
		return `{"items": []}`, nil
	}

	// The assembled prompt ends with the conversation transcript, so the
	// last non-empty line is the latest utterance.
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = lastLine(req.Messages[i].Content)
			break
		}
	}
	last = strings.TrimPrefix(last, "user: ")
	if last == "" {
		return "I am listening.", nil
	}
	return fmt.Sprintf("I heard you: %s", last), nil
}

func lastLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
