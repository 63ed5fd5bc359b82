package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridwall/gridwall/internal/cell"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a Store backed by the cells table.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

func (s *PostgresStore) SelectAll(ctx context.Context) ([]cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT x, y, text, owner, likes, liked_by, expires_at
		FROM cells
	`)
	if err != nil {
		return nil, fmt.Errorf("select all cells: %w", err)
	}
	defer rows.Close()

	var cells []cell.Cell
	for rows.Next() {
		var c cell.Cell
		if err := rows.Scan(&c.X, &c.Y, &c.Text, &c.Owner, &c.Likes, &c.LikedBy, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("select all scan: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func (s *PostgresStore) Insert(ctx context.Context, c cell.Cell) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO cells (x, y, text, owner, likes, liked_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (x, y) DO NOTHING
	`, c.X, c.Y, c.Text, c.Owner, c.Likes, c.LikedBy, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, x, y int, patch CellPatch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE cells
		SET likes = $3, liked_by = $4, expires_at = $5
		WHERE x = $1 AND y = $2
	`, x, y, patch.Likes, patch.LikedBy, patch.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCellNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) ([]cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		DELETE FROM cells
		WHERE expires_at <= $1
		RETURNING x, y, text, owner, likes, liked_by, expires_at
	`, before)
	if err != nil {
		return nil, fmt.Errorf("delete expired cells: %w", err)
	}
	defer rows.Close()

	var deleted []cell.Cell
	for rows.Next() {
		var c cell.Cell
		if err := rows.Scan(&c.X, &c.Y, &c.Text, &c.Owner, &c.Likes, &c.LikedBy, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("delete expired scan: %w", err)
		}
		deleted = append(deleted, c)
	}
	return deleted, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}
