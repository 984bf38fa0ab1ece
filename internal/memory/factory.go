package memory

import (
	"context"
	"strings"
)

// NewStore picks a backend from the database URL: a postgres DSN yields the
// pgx-backed store, any other non-empty value is treated as a SQLite file
// path, and empty means in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case url == "":
		return NewInMemoryStore(), nil
	case strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://"):
		return NewPostgresStore(ctx, url)
	default:
		return NewSQLiteStore(ctx, url)
	}
}
