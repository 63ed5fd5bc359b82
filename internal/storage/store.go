package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gridwall/gridwall/internal/cell"
)

// ErrCellNotFound is returned when an update targets a row that does not exist.
var ErrCellNotFound = errors.New("cell not found")

// CellPatch carries the mutable fields of a cell for an update. Text and
// owner never change after the insert, so they are not part of the patch.
type CellPatch struct {
	Likes     int
	LikedBy   []string
	ExpiresAt time.Time
}

// Store is the durable mirror of the grid. The in-memory map is the
// authority; the store is written best-effort after each mutation and read
// in full once at startup.
type Store interface {
	// SelectAll returns every cell row. Used to seed the engine at startup.
	SelectAll(ctx context.Context) ([]cell.Cell, error)

	// Insert writes a newly claimed cell.
	Insert(ctx context.Context, c cell.Cell) error

	// Update overwrites the like state and expiry of the cell at (x, y).
	Update(ctx context.Context, x, y int, patch CellPatch) error

	// DeleteExpired removes every row whose expiry is at or before the given
	// instant and returns the rows actually deleted. The returned set is the
	// authority on which cells expired.
	DeleteExpired(ctx context.Context, before time.Time) ([]cell.Cell, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
