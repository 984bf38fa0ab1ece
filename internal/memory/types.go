package memory

import (
	"context"
	"errors"
	"time"
)

// Category classifies a long-term memory record. The set is closed: merge
// keys and prompt grouping both depend on exhaustive matching over it.
type Category string

const (
	CategoryAttribute Category = "attribute"
	CategoryGoal      Category = "goal"
	CategoryMemory    Category = "memory"
	CategoryRequest   Category = "request"
)

// Categories returns all categories in their stable prompt order.
func Categories() []Category {
	return []Category{CategoryAttribute, CategoryGoal, CategoryMemory, CategoryRequest}
}

// ParseCategory maps free text onto a known category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryAttribute, CategoryGoal, CategoryMemory, CategoryRequest:
		return Category(s), true
	default:
		return "", false
	}
}

// Record is a durable fact about the user. Category is immutable after
// creation; content changes go through Update, which recomputes the
// normalized form used as the dedup key.
type Record struct {
	ID                string    `json:"id"`
	Category          Category  `json:"category"`
	Content           string    `json:"content"`
	NormalizedContent string    `json:"normalized_content"`
	Provenance        string    `json:"provenance,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Update describes a mutation to an existing record. A nil Content leaves
// the text untouched and only advances UpdatedAt (the dedup-merge case).
type Update struct {
	Content   *string
	UpdatedAt time.Time
}

var ErrNotFound = errors.New("memory record not found")

// Store persists long-term memory records keyed by id, with
// (category, normalized content) as a soft-unique merge key.
type Store interface {
	Create(ctx context.Context, record Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, id string, upd Update) (Record, error)
	Delete(ctx context.Context, id string) error
	ListByCategory(ctx context.Context, category Category, limit int) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	FindByNormalizedContent(ctx context.Context, category Category, normalized string) (Record, error)
	Close() error
}
