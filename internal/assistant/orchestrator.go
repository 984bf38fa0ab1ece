// Package assistant is the single entry point for conversation handling: it
// owns session liveness, produces the reply, and schedules memory
// extraction off the user-facing latency path.
package assistant

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/antoniostano/secretary/internal/brain"
	"github.com/antoniostano/secretary/internal/extraction"
	"github.com/antoniostano/secretary/internal/memory"
	"github.com/antoniostano/secretary/internal/observability"
	"github.com/antoniostano/secretary/internal/prompt"
	"github.com/antoniostano/secretary/internal/session"
)

// FallbackReply is returned verbatim when the inference backend cannot
// produce a reply. Raw backend errors never reach the user.
const FallbackReply = "I'm sorry, I'm having trouble thinking right now. Please try again in a moment."

// Orchestrator serializes message handling per conversation and wires the
// session context, prompt assembly, inference backend, and extraction
// pipeline together.
type Orchestrator struct {
	sessions     *session.Manager
	store        memory.Store
	backend      brain.Backend
	pipeline     *extraction.Pipeline
	metrics      *observability.Metrics
	contextLimit int

	extractions sync.WaitGroup

	// now is the clock for turn timestamps and expiry checks; tests inject it.
	now func() time.Time
}

func New(
	sessions *session.Manager,
	store memory.Store,
	backend brain.Backend,
	pipeline *extraction.Pipeline,
	metrics *observability.Metrics,
	contextLimit int,
) *Orchestrator {
	if contextLimit <= 0 {
		contextLimit = 50
	}
	return &Orchestrator{
		sessions:     sessions,
		store:        store,
		backend:      backend,
		pipeline:     pipeline,
		metrics:      metrics,
		contextLimit: contextLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleUserMessage produces the assistant reply for one user utterance.
// The reply-path model call is awaited; extraction runs in the background
// against an immutable snapshot and is never cancelled by later messages.
// Backend failures surface only as the fixed fallback reply.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, conversationID, text string) (string, error) {
	started := o.now()

	sess, release, fresh := o.sessions.Acquire(conversationID, started)
	defer release()
	if fresh {
		log.Printf("session %s: new context for conversation %q", sess.ID(), conversationID)
	}
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount(started)))

	if err := sess.Append(session.Turn{Role: session.RoleUser, Text: text, Timestamp: started}); err != nil {
		return "", fmt.Errorf("append user turn: %w", err)
	}
	o.metrics.Turns.WithLabelValues(string(session.RoleUser)).Inc()

	records, err := o.fetchRecords(ctx)
	if err != nil {
		return "", fmt.Errorf("load long-term memory: %w", err)
	}

	promptText := prompt.Render(sess.Snapshot(), records)

	reply, replyErr := o.backend.Complete(ctx, brain.Request{
		Messages: []brain.Message{{Role: "user", Content: promptText}},
	})
	o.metrics.ObserveReplyLatency(o.now().Sub(started))

	fallback := replyErr != nil
	if fallback {
		log.Printf("reply backend failed, serving fallback: %v", replyErr)
		o.metrics.Replies.WithLabelValues("fallback").Inc()
		o.metrics.ObserveIndicator("fallback_reply")
		reply = FallbackReply
	} else {
		o.metrics.Replies.WithLabelValues("ok").Inc()
	}

	if err := sess.Append(session.Turn{Role: session.RoleAssistant, Text: reply, Timestamp: o.now()}); err != nil {
		return "", fmt.Errorf("append assistant turn: %w", err)
	}
	o.metrics.Turns.WithLabelValues(string(session.RoleAssistant)).Inc()

	// A fallback reply carries no user facts and the backend is already
	// struggling, so the extraction cycle is skipped entirely: no store
	// mutation happens for this turn window.
	if !fallback {
		o.scheduleExtraction(sess.Snapshot(), sess.ID())
	} else {
		o.metrics.ObserveIndicator("extraction_skipped")
	}

	return reply, nil
}

// Introspection returns the exact prompt the current session would produce,
// plus its structured breakdown, for the diagnostic endpoint.
func (o *Orchestrator) Introspection(ctx context.Context, conversationID string) (prompt.View, error) {
	var snapshot []session.Turn
	if sess, ok := o.sessions.Peek(conversationID); ok {
		snapshot = sess.Snapshot()
	}

	records, err := o.fetchRecords(ctx)
	if err != nil {
		return prompt.View{}, fmt.Errorf("load long-term memory: %w", err)
	}
	return prompt.RenderDebugView(snapshot, records), nil
}

// Wait blocks until all scheduled extraction cycles finish. Used for
// graceful shutdown and by tests.
func (o *Orchestrator) Wait() {
	o.extractions.Wait()
}

func (o *Orchestrator) fetchRecords(ctx context.Context) ([]memory.Record, error) {
	var all []memory.Record
	for _, cat := range memory.Categories() {
		records, err := o.store.ListByCategory(ctx, cat, o.contextLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// scheduleExtraction runs the pipeline detached from the request context:
// a new user message, a session reset, or the caller disconnecting must not
// cancel a cycle already handed its snapshot.
func (o *Orchestrator) scheduleExtraction(snapshot []session.Turn, provenance string) {
	o.extractions.Add(1)
	go func() {
		defer o.extractions.Done()
		started := o.now()

		touched, err := o.pipeline.Extract(context.Background(), snapshot, provenance)
		o.metrics.ObserveStage("extraction_cycle", o.now().Sub(started))
		if err != nil {
			// Non-fatal: the conversation already continued without us.
			log.Printf("extraction cycle failed for session %s: %v", provenance, err)
			return
		}
		if len(touched) > 0 {
			log.Printf("extraction cycle for session %s touched %d records", provenance, len(touched))
		}
	}()
}
