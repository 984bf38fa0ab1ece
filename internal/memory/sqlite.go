package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists memory records in a local SQLite file, matching the
// single-user deployments this assistant is built for.
type SQLiteStore struct {
	db *sql.DB
}

// Fixed-width fractional seconds, so the TEXT columns sort
// chronologically. RFC3339Nano drops trailing zeros and breaks that.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent extraction merges.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			normalized_content TEXT NOT NULL,
			provenance TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_records_merge_key
			ON memory_records (category, normalized_content);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, record Record) (Record, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_records (id, category, content, normalized_content, provenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, normalized_content) DO UPDATE SET updated_at = excluded.updated_at`,
		record.ID,
		string(record.Category),
		record.Content,
		record.NormalizedContent,
		record.Provenance,
		record.CreatedAt.Format(sqliteTimeLayout),
		record.UpdatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}

	return s.FindByNormalizedContent(ctx, record.Category, record.NormalizedContent)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, content, normalized_content, provenance, created_at, updated_at
		FROM memory_records WHERE id = ?`, id)
	return scanSQLiteRecord(row)
}

func (s *SQLiteStore) Update(ctx context.Context, id string, upd Update) (Record, error) {
	at := upd.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var res sql.Result
	var err error
	if upd.Content != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE memory_records SET content = ?, normalized_content = ?, updated_at = ? WHERE id = ?`,
			*upd.Content, Normalize(*upd.Content), at.Format(sqliteTimeLayout), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE memory_records SET updated_at = ? WHERE id = ?`,
			at.Format(sqliteTimeLayout), id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Record{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListByCategory(ctx context.Context, category Category, limit int) ([]Record, error) {
	q := `SELECT id, category, content, normalized_content, provenance, created_at, updated_at
		FROM memory_records WHERE category = ? ORDER BY updated_at, id`
	args := []any{string(category)}
	if limit > 0 {
		q = `SELECT id, category, content, normalized_content, provenance, created_at, updated_at FROM (
			SELECT id, category, content, normalized_content, provenance, created_at, updated_at
			FROM memory_records WHERE category = ?
			ORDER BY updated_at DESC, id DESC LIMIT ?
		) ORDER BY updated_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectSQLiteRecords(rows)
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, content, normalized_content, provenance, created_at, updated_at
		FROM memory_records ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectSQLiteRecords(rows)
}

func (s *SQLiteStore) FindByNormalizedContent(ctx context.Context, category Category, normalized string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, content, normalized_content, provenance, created_at, updated_at
		FROM memory_records WHERE category = ? AND normalized_content = ?`,
		string(category), normalized)
	return scanSQLiteRecord(row)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteRecord(row *sql.Row) (Record, error) {
	var r Record
	var category, createdAt, updatedAt string
	err := row.Scan(&r.ID, &category, &r.Content, &r.NormalizedContent, &r.Provenance, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	r.Category = Category(category)
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return r, nil
}

func collectSQLiteRecords(rows *sql.Rows) ([]Record, error) {
	var items []Record
	for rows.Next() {
		var r Record
		var category, createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &category, &r.Content, &r.NormalizedContent, &r.Provenance, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.Category = Category(category)
		var err error
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return items, nil
}
