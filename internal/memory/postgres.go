package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memory records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			normalized_content TEXT NOT NULL,
			provenance TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_records_merge_key
			ON memory_records (category, normalized_content);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_category_updated
			ON memory_records (category, updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const recordColumns = `id, category, content, normalized_content, provenance, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, record Record) (Record, error) {
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

	// The unique index on (category, normalized_content) makes concurrent
	// merge races collapse onto the existing row instead of duplicating it.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO memory_records (id, category, content, normalized_content, provenance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (category, normalized_content) DO UPDATE SET updated_at = EXCLUDED.updated_at
		 RETURNING `+recordColumns,
		record.ID,
		string(record.Category),
		record.Content,
		record.NormalizedContent,
		record.Provenance,
		record.CreatedAt,
		record.UpdatedAt,
	)
	created, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM memory_records WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) (Record, error) {
	at := upd.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var row pgx.Row
	if upd.Content != nil {
		row = s.pool.QueryRow(ctx,
			`UPDATE memory_records
			 SET content=$2, normalized_content=$3, updated_at=$4
			 WHERE id=$1 RETURNING `+recordColumns,
			id, *upd.Content, Normalize(*upd.Content), at)
	} else {
		row = s.pool.QueryRow(ctx,
			`UPDATE memory_records SET updated_at=$2 WHERE id=$1 RETURNING `+recordColumns,
			id, at)
	}

	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memory_records WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCategory(ctx context.Context, category Category, limit int) ([]Record, error) {
	q := `SELECT ` + recordColumns + ` FROM memory_records WHERE category=$1 ORDER BY updated_at, id`
	args := []any{string(category)}
	if limit > 0 {
		// Bound to the most recently updated records, then restore ascending order.
		q = `SELECT ` + recordColumns + ` FROM (
			SELECT ` + recordColumns + ` FROM memory_records WHERE category=$1
			ORDER BY updated_at DESC, id DESC LIMIT $2
		) bounded ORDER BY updated_at, id`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM memory_records ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) FindByNormalizedContent(ctx context.Context, category Category, normalized string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM memory_records WHERE category=$1 AND normalized_content=$2`,
		string(category), normalized)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var category string
	if err := row.Scan(&r.ID, &category, &r.Content, &r.NormalizedContent, &r.Provenance, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Record{}, err
	}
	r.Category = Category(category)
	return r, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var items []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return items, nil
}
