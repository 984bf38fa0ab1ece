package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"lives in Tokyo", "lives in tokyo"},
		{"  Lives in Tokyo ", "lives in tokyo"},
		{"Lives\tin\n Tokyo", "lives in tokyo"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInMemoryCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created, err := s.Create(ctx, Record{Category: CategoryAttribute, Content: "lives in Tokyo"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("Create() did not assign an id")
	}
	if created.NormalizedContent != "lives in tokyo" {
		t.Fatalf("NormalizedContent = %q", created.NormalizedContent)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != "lives in Tokyo" {
		t.Fatalf("Content = %q", got.Content)
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryUpdateContentRecomputesNormalized(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created, err := s.Create(ctx, Record{Category: CategoryGoal, Content: "learn Rust"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	content := "learn  Go "
	updated, err := s.Update(ctx, created.ID, Update{Content: &content})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Content != "learn  Go " {
		t.Fatalf("Content = %q", updated.Content)
	}
	if updated.NormalizedContent != "learn go" {
		t.Fatalf("NormalizedContent = %q, want %q", updated.NormalizedContent, "learn go")
	}
	if updated.Category != CategoryGoal {
		t.Fatalf("Category changed on update: %q", updated.Category)
	}
}

func TestInMemoryUpdateTimestampOnly(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created, err := s.Create(ctx, Record{Category: CategoryAttribute, Content: "is a programmer"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := created.UpdatedAt.Add(time.Hour)
	updated, err := s.Update(ctx, created.ID, Update{UpdatedAt: at})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.UpdatedAt.Equal(at) {
		t.Fatalf("UpdatedAt = %v, want %v", updated.UpdatedAt, at)
	}
	if updated.Content != created.Content {
		t.Fatalf("Content changed on timestamp-only update")
	}
}

func TestInMemoryFindByNormalizedContent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created, err := s.Create(ctx, Record{Category: CategoryAttribute, Content: "lives in Tokyo"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := s.FindByNormalizedContent(ctx, CategoryAttribute, "lives in tokyo")
	if err != nil {
		t.Fatalf("FindByNormalizedContent() error = %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("found id = %q, want %q", found.ID, created.ID)
	}

	// Same content under a different category is a different key.
	if _, err := s.FindByNormalizedContent(ctx, CategoryGoal, "lives in tokyo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-category find error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryListByCategoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		if _, err := s.Create(ctx, Record{
			Category:  CategoryMemory,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := s.ListByCategory(ctx, CategoryMemory, 0)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Content != "first" || all[2].Content != "third" {
		t.Fatalf("records not in ascending UpdatedAt order: %+v", all)
	}

	bounded, err := s.ListByCategory(ctx, CategoryMemory, 2)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if len(bounded) != 2 {
		t.Fatalf("bounded len = %d, want 2", len(bounded))
	}
	if bounded[0].Content != "second" || bounded[1].Content != "third" {
		t.Fatalf("bounded list should keep the most recent records: %+v", bounded)
	}
}

func TestParseCategory(t *testing.T) {
	for _, cat := range Categories() {
		got, ok := ParseCategory(string(cat))
		if !ok || got != cat {
			t.Fatalf("ParseCategory(%q) = %q, %v", cat, got, ok)
		}
	}
	if _, ok := ParseCategory("mood"); ok {
		t.Fatalf("ParseCategory accepted an unknown category")
	}
}
