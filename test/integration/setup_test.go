//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/casenote/casenote/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupDatabase starts postgres, applies the embedded migrations, and opens
// a writable pool for seeding.
func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr, stop, err := startPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}

	mg, err := db.NewMigrator(connStr, zerolog.Nop())
	if err != nil {
		stop()
		return nil, nil, err
	}
	err = mg.Up()
	mg.Close()
	if err != nil {
		stop()
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	return &testDB{Pool: pool, ConnStr: connStr}, func() {
		pool.Close()
		stop()
	}, nil
}

// resetData truncates every case-note table so each test seeds from scratch.
func resetData(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := globalDB.Pool.Exec(ctx, `TRUNCATE case_note_events, case_note_request_involvements,
		case_note_requests, filing_requests, doctors, locations, departments, patients, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset data: %v", err)
	}
}

func mustExec(t *testing.T, ctx context.Context, sql string, args ...interface{}) {
	t.Helper()
	if _, err := globalDB.Pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}
