package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/secretary/internal/reliability"
)

const defaultTimeout = 60 * time.Second

// OllamaBackend talks to Ollama's /api/chat endpoint.
type OllamaBackend struct {
	url    string
	model  string
	client *http.Client
}

func NewOllamaBackend(url, model string, timeout time.Duration) *OllamaBackend {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaBackend{
		url:   strings.TrimSpace(url),
		model: strings.TrimSpace(model),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (b *OllamaBackend) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	body := ollamaRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   false,
	}
	if req.JSONMode {
		body.Format = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// One retry on transient status codes; anything else fails immediately.
	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", classifyErr(ctx.Err())
			case <-time.After(reliability.ExponentialBackoff(attempt, 250*time.Millisecond, 2*time.Second)):
			}
		}

		text, retryable, err := b.doRequest(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (b *OllamaBackend) doRequest(ctx context.Context, payload []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(httpReq)
	if err != nil {
		return "", false, classifyErr(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("%w: ollama http status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
		return "", reliability.IsRetryableHTTPStatus(res.StatusCode), err
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", false, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return parsed.Message.Content, false, nil
}

func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
