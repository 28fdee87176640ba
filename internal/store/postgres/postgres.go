// Package postgres implements the document store on a single JSONB table.
// Filters and ordering compile to data->>'field' expressions, the scheduled
// slot uniqueness rule lives in a partial unique index, and change streams
// ride on LISTEN/NOTIFY triggers, so writes from any client reach every
// subscriber.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chirag4452/sportsclub-core/internal/store"
)

const streamBuffer = 128

// Store is the Postgres-backed document store.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, log: log}
}

// Connect opens a pool against url and verifies connectivity.
func Connect(ctx context.Context, url string, log *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool, log), nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Query returns the documents of a collection matching all filters.
func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	sql, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return out, nil
}

// Create inserts v as a new document; id and timestamps come back from the
// database.
func (s *Store) Create(ctx context.Context, collection string, v any) (store.Document, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return store.Document{}, fmt.Errorf("encode document: %w", err)
	}

	const stmt = `INSERT INTO documents (collection, data) VALUES ($1, $2)
        RETURNING id, data, created_at, updated_at`

	var doc store.Document
	if err := s.pool.QueryRow(ctx, stmt, collection, payload).
		Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return store.Document{}, mapError(fmt.Sprintf("create %s", collection), err)
	}
	return doc, nil
}

// Update merges patch into the document payload. The touch trigger advances
// updated_at.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) (store.Document, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return store.Document{}, fmt.Errorf("encode patch: %w", err)
	}

	const stmt = `UPDATE documents SET data = data || $3::jsonb
        WHERE collection = $1 AND id = $2
        RETURNING id, data, created_at, updated_at`

	var doc store.Document
	if err := s.pool.QueryRow(ctx, stmt, collection, id, payload).
		Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return store.Document{}, mapError(fmt.Sprintf("update %s/%s", collection, id), err)
	}
	return doc, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

var sqlOps = map[store.Op]string{
	store.OpEqual: "=",
	store.OpGTE:   ">=",
	store.OpLTE:   "<=",
}

func buildQuery(collection string, q store.Query) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range q.Filters {
		op, ok := sqlOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, " AND data->>%s %s $%d", quoteLiteral(f.Field), op, len(args))
	}

	dir := " ASC"
	if q.Descending {
		dir = " DESC"
	}
	sb.WriteString(" ORDER BY ")
	for _, field := range q.OrderBy {
		sb.WriteString("data->>" + quoteLiteral(field) + dir + ", ")
	}
	sb.WriteString("created_at" + dir)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

// quoteLiteral protects JSONB field names, which cannot be bound parameters
// inside the accessor expression.
func quoteLiteral(field string) string {
	return "'" + strings.ReplaceAll(field, "'", "''") + "'"
}

func mapError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: unique violation on %s: %w", operation, pgErr.ConstraintName, store.ErrConflict)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
