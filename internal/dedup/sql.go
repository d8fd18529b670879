package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLStore persists seen keys in a database so that redeliveries are also
// absorbed across restarts or between replicas sharing the database.
// Uniqueness is enforced by the primary key; the insert is the check-and-set.
type SQLStore struct {
	db     *sql.DB
	insert string
}

const createSeenEvents = `CREATE TABLE IF NOT EXISTS seen_events (
	event_key TEXT PRIMARY KEY,
	seen_at   BIGINT NOT NULL
)`

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dedup: open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent inserts.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dedup: pragma %q: %w", p, err)
		}
	}

	return newSQLStore(db,
		`INSERT INTO seen_events (event_key, seen_at) VALUES (?, ?) ON CONFLICT (event_key) DO NOTHING`)
}

// OpenPostgres connects to Postgres using the pgx stdlib driver.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := openDB("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("dedup: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: ping postgres: %w", err)
	}

	return newSQLStore(db,
		`INSERT INTO seen_events (event_key, seen_at) VALUES ($1, $2) ON CONFLICT (event_key) DO NOTHING`)
}

func newSQLStore(db *sql.DB, insert string) (*SQLStore, error) {
	if _, err := db.Exec(createSeenEvents); err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: create schema: %w", err)
	}
	return &SQLStore{db: db, insert: insert}, nil
}

// MarkIfNew inserts key and reports whether the row was created by this call.
func (s *SQLStore) MarkIfNew(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.insert, key, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("dedup: insert %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup: rows affected: %w", err)
	}
	return n == 1, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
