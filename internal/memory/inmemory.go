package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process record store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.NormalizedContent == "" {
		record.NormalizedContent = Normalize(record.Content)
	}
	s.records[record.ID] = record
	return record, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, upd Update) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if upd.Content != nil {
		r.Content = *upd.Content
		r.NormalizedContent = Normalize(*upd.Content)
	}
	if upd.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	} else {
		r.UpdatedAt = upd.UpdatedAt
	}
	s.records[id] = r
	return r, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) ListByCategory(_ context.Context, category Category, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	sortByUpdatedAt(out)
	if limit > 0 && len(out) > limit {
		// Keep the most recently updated records when bounded.
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sortByUpdatedAt(out)
	return out, nil
}

func (s *InMemoryStore) FindByNormalizedContent(_ context.Context, category Category, normalized string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Category == category && r.NormalizedContent == normalized {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *InMemoryStore) Close() error { return nil }

func sortByUpdatedAt(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
}
