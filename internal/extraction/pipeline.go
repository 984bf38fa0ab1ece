// Package extraction distills durable facts about the user from raw
// dialogue, using the inference backend as an unreliable parser, and merges
// them into the long-term memory store without duplicates.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/secretary/internal/brain"
	"github.com/antoniostano/secretary/internal/memory"
	"github.com/antoniostano/secretary/internal/observability"
	"github.com/antoniostano/secretary/internal/session"
)

const extractionPrompt = `From the following conversation between the user and the AI, extract information about the user worth keeping long-term: attributes, goals, general memories, and requests to the assistant.
If there is nothing worth keeping, answer with "items": [].
Output JSON only. No markdown code blocks.

Format:
{
    "items": [
        { "category": "attribute", "content": "the user is a programmer" },
        { "category": "goal", "content": "the user wants to master Go" },
        { "category": "request", "content": "keep replies short" }
    ]
}

Valid categories: attribute, goal, memory, request

[Conversation]
`

// Pipeline converts a turn window into persisted memory records.
type Pipeline struct {
	backend brain.Backend
	store   memory.Store
	metrics *observability.Metrics
	locks   keyedMutex

	// now is the clock used for merge timestamps; tests inject it.
	now func() time.Time
}

func NewPipeline(backend brain.Backend, store memory.Store, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		backend: backend,
		store:   store,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Extract runs one extraction cycle over a snapshot and returns the records
// it created or updated. A backend failure skips the whole cycle and is
// returned to the caller as a non-fatal error; a malformed completion is
// recovered locally by discarding the cycle (empty result, nil error).
// Store failures propagate.
func (p *Pipeline) Extract(ctx context.Context, snapshot []session.Turn, provenance string) ([]memory.Record, error) {
	if len(snapshot) == 0 {
		return nil, nil
	}

	completion, err := p.backend.Complete(ctx, brain.Request{
		Messages: []brain.Message{{Role: "user", Content: buildExtractionPrompt(snapshot)}},
		JSONMode: true,
	})
	if err != nil {
		p.count("backend_error")
		return nil, fmt.Errorf("extraction completion: %w", err)
	}

	candidates, err := parseCandidates(completion)
	if err != nil {
		// Untrusted model output; discard the cycle, never crash on it.
		log.Printf("extraction: discarding malformed completion (%d bytes)", len(completion))
		p.count("malformed")
		return nil, nil
	}
	if len(candidates) == 0 {
		p.count("empty")
		return nil, nil
	}

	touched := make([]memory.Record, 0, len(candidates))
	for _, cand := range candidates {
		record, err := p.merge(ctx, cand, provenance)
		if err != nil {
			p.count("store_error")
			return touched, fmt.Errorf("merge candidate: %w", err)
		}
		touched = append(touched, record)
	}
	p.count("merged")
	return touched, nil
}

// merge reconciles one candidate against the store. The find-then-write
// pair runs under a per-(category, normalized content) lock so concurrent
// cycles cannot create duplicates for the same key.
func (p *Pipeline) merge(ctx context.Context, cand Candidate, provenance string) (memory.Record, error) {
	normalized := memory.Normalize(cand.Content)

	unlock := p.locks.lock(string(cand.Category) + "\x00" + normalized)
	defer unlock()

	existing, err := p.store.FindByNormalizedContent(ctx, cand.Category, normalized)
	switch {
	case err == nil:
		updated, err := p.store.Update(ctx, existing.ID, memory.Update{UpdatedAt: p.now()})
		if err != nil {
			return memory.Record{}, err
		}
		p.countRecord("updated")
		return updated, nil
	case errors.Is(err, memory.ErrNotFound):
		created, err := p.store.Create(ctx, memory.Record{
			Category:          cand.Category,
			Content:           cand.Content,
			NormalizedContent: normalized,
			Provenance:        provenance,
			CreatedAt:         p.now(),
		})
		if err != nil {
			return memory.Record{}, err
		}
		p.countRecord("created")
		return created, nil
	default:
		return memory.Record{}, err
	}
}

func buildExtractionPrompt(snapshot []session.Turn) string {
	var b strings.Builder
	b.WriteString(extractionPrompt)
	for _, t := range snapshot {
		switch t.Role {
		case session.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", t.Text)
		case session.RoleAssistant:
			fmt.Fprintf(&b, "AI: %s\n", t.Text)
		}
	}
	return b.String()
}

func (p *Pipeline) count(outcome string) {
	if p.metrics != nil {
		p.metrics.ExtractionCycles.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) countRecord(op string) {
	if p.metrics != nil {
		p.metrics.MemoryRecords.WithLabelValues(op).Inc()
	}
}

// keyedMutex provides one mutex per merge key. The key space is unbounded
// (every distinct candidate content), so an entry is dropped again once its
// last holder or waiter releases it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
