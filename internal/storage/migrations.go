package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the cells table and its expiry index.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS cells (
			x          INT NOT NULL,
			y          INT NOT NULL,
			text       TEXT NOT NULL,
			owner      TEXT NOT NULL,
			likes      INT NOT NULL DEFAULT 0,
			liked_by   TEXT[] NOT NULL DEFAULT '{}',
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

			PRIMARY KEY (x, y)
		);

		CREATE INDEX IF NOT EXISTS idx_cells_expires_at
			ON cells (expires_at);
	`

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate cells table: %w", err)
	}
	return nil
}
