package brain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestOllamaCompleteSendsChatPayload(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "Hello back."},
		})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	reply, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Hello back." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "llama3.1:8b" {
		t.Fatalf("model = %q", got.Model)
	}
	if got.Stream {
		t.Fatalf("stream = true, want false")
	}
	if got.Format != "" {
		t.Fatalf("format = %q, want empty without JSONMode", got.Format)
	}
}

func TestOllamaCompleteJSONMode(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": `{"items": []}`},
		})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	if _, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "extract"}},
		JSONMode: true,
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Format != "json" {
		t.Fatalf("format = %q, want json", got.Format)
	}
}

func TestOllamaCompleteModelOverride(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": "ok"}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	if _, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "qwen2.5:7b",
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Model != "qwen2.5:7b" {
		t.Fatalf("model = %q, want override", got.Model)
	}
}

func TestOllamaCompleteRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": "recovered"}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	reply, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "recovered" {
		t.Fatalf("reply = %q", reply)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestOllamaCompleteNonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	_, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestOllamaCompleteUnreachable(t *testing.T) {
	b := NewOllamaBackend("http://127.0.0.1:1/api/chat", "llama3.1:8b", time.Second)
	_, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestOllamaCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can detect the
		// client disconnect and cancel the request context; otherwise
		// srv.Close deadlocks waiting on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.1:8b", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Complete(ctx, Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}
