package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gridwall/gridwall/internal/cell"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("gridwall"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(fmt.Sprintf("start postgres container: %v", err))
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(fmt.Sprintf("get connection string: %v", err))
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		panic(fmt.Sprintf("create pool: %v", err))
	}

	if err := RunMigrations(ctx, testPool); err != nil {
		panic(fmt.Sprintf("run migrations: %v", err))
	}

	code := m.Run()

	testPool.Close()
	_ = testcontainers.TerminateContainer(ctr)

	os.Exit(code)
}

// freshStore truncates the cells table and returns a store.
func freshStore(t *testing.T) *PostgresStore {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), "TRUNCATE cells"); err != nil {
		t.Fatalf("truncate cells: %v", err)
	}
	return NewPostgresStore(testPool, 5*time.Second)
}

func sampleCell(x, y int, expiresAt time.Time) cell.Cell {
	return cell.Cell{
		X: x, Y: y,
		Text:      "hello",
		Owner:     "u1",
		Likes:     0,
		LikedBy:   []string{},
		ExpiresAt: expiresAt,
	}
}

func TestInsertAndSelectAll(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)

	if err := store.Insert(ctx, sampleCell(2, 3, expiry)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}

	got := rows[0]
	if got.X != 2 || got.Y != 3 || got.Text != "hello" || got.Owner != "u1" {
		t.Errorf("row: %+v", got)
	}
	if got.Likes != 0 || len(got.LikedBy) != 0 {
		t.Errorf("like state: likes=%d likedBy=%v", got.Likes, got.LikedBy)
	}
	if !got.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry: got %v, want %v", got.ExpiresAt, expiry)
	}
}

func TestInsert_DuplicateCoordinateIsNoop(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	first := sampleCell(1, 1, expiry)
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := sampleCell(1, 1, expiry)
	second.Owner = "u2"
	second.Text = "overwrite"
	if err := store.Insert(ctx, second); err != nil {
		t.Fatalf("duplicate insert should not error: %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(rows) != 1 || rows[0].Owner != "u1" {
		t.Errorf("first writer must win in the mirror too: %+v", rows)
	}
}

func TestUpdate(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)

	if err := store.Insert(ctx, sampleCell(4, 5, expiry)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	newExpiry := expiry.Add(5 * time.Minute)
	err := store.Update(ctx, 4, 5, CellPatch{
		Likes:     2,
		LikedBy:   []string{"a", "b"},
		ExpiresAt: newExpiry,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	got := rows[0]
	if got.Likes != 2 {
		t.Errorf("likes: got %d, want 2", got.Likes)
	}
	if len(got.LikedBy) != 2 || got.LikedBy[0] != "a" || got.LikedBy[1] != "b" {
		t.Errorf("likedBy: got %v", got.LikedBy)
	}
	if !got.ExpiresAt.Equal(newExpiry) {
		t.Errorf("expiry: got %v, want %v", got.ExpiresAt, newExpiry)
	}
	// Immutable columns untouched.
	if got.Text != "hello" || got.Owner != "u1" {
		t.Errorf("immutable fields changed: %+v", got)
	}
}

func TestUpdate_MissingRow(t *testing.T) {
	store := freshStore(t)

	err := store.Update(context.Background(), 9, 9, CellPatch{ExpiresAt: time.Now()})
	if !errors.Is(err, ErrCellNotFound) {
		t.Errorf("got %v, want ErrCellNotFound", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// One expired, one on the boundary, one live.
	if err := store.Insert(ctx, sampleCell(0, 0, now.Add(-time.Minute))); err != nil {
		t.Fatalf("insert expired: %v", err)
	}
	if err := store.Insert(ctx, sampleCell(1, 1, now)); err != nil {
		t.Fatalf("insert boundary: %v", err)
	}
	if err := store.Insert(ctx, sampleCell(2, 2, now.Add(time.Hour))); err != nil {
		t.Fatalf("insert live: %v", err)
	}

	deleted, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted: got %d rows, want 2 (at-or-before cutoff)", len(deleted))
	}
	for _, c := range deleted {
		if c.X == 2 {
			t.Error("live cell deleted")
		}
	}

	remaining, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(remaining) != 1 || remaining[0].X != 2 {
		t.Errorf("remaining rows: %+v", remaining)
	}
}

func TestDeleteExpired_NothingToDelete(t *testing.T) {
	store := freshStore(t)

	deleted, err := store.DeleteExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("deleted: got %d rows, want 0", len(deleted))
	}
}

func TestLikedByRoundTrip(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	c := sampleCell(7, 7, time.Now().Add(time.Hour))
	c.Likes = 3
	c.LikedBy = []string{"u1", "u2", "u3"}
	if err := store.Insert(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	got := rows[0]
	if len(got.LikedBy) != 3 {
		t.Fatalf("likedBy: got %v", got.LikedBy)
	}
	if got.Likes != len(got.LikedBy) {
		t.Errorf("likes (%d) != len(likedBy) (%d)", got.Likes, len(got.LikedBy))
	}
}

func TestPing(t *testing.T) {
	store := freshStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
