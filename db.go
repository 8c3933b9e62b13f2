package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var db *Database

const (
	backendSQLite   = "sqlite3"
	backendPostgres = "postgres"
)

// ErrBackendUnavailable signals that no connection to the configured
// storage backend could be established. Nothing is created in that case.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// StorageError wraps a failure while persisting a scrape pass. The whole
// pass is rolled back when it occurs; no partial batch survives.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Database wraps *sql.DB with the backend kind so query builders can paper
// over placeholder syntax, NULL ordering and day bucketing differences.
type Database struct {
	*sql.DB
	backend string
}

const (
	createLeaderboardsTableSQL = `
	CREATE TABLE IF NOT EXISTS leaderboards (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"name" TEXT NOT NULL UNIQUE
	);`

	createPlayersTableSQL = `
	CREATE TABLE IF NOT EXISTS players (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"name" TEXT NOT NULL UNIQUE,
		"country" TEXT
	);`

	createUpdateBatchTableSQL = `
	CREATE TABLE IF NOT EXISTS update_batch (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"created_at" TEXT NOT NULL
	);`

	createFactsTableSQL = `
	CREATE TABLE IF NOT EXISTS facts (
		"leaderboard_id" INTEGER NOT NULL,
		"update_id" INTEGER NOT NULL,
		"player_id" INTEGER NOT NULL,
		"points" REAL NOT NULL,
		PRIMARY KEY (leaderboard_id, update_id, player_id),
		FOREIGN KEY(leaderboard_id) REFERENCES leaderboards(id),
		FOREIGN KEY(update_id) REFERENCES update_batch(id),
		FOREIGN KEY(player_id) REFERENCES players(id)
	);`

	createLeaderboardsTablePgSQL = `
	CREATE TABLE IF NOT EXISTS leaderboards (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);`

	createPlayersTablePgSQL = `
	CREATE TABLE IF NOT EXISTS players (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		country TEXT
	);`

	createUpdateBatchTablePgSQL = `
	CREATE TABLE IF NOT EXISTS update_batch (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	);`

	createFactsTablePgSQL = `
	CREATE TABLE IF NOT EXISTS facts (
		leaderboard_id INTEGER NOT NULL REFERENCES leaderboards(id),
		update_id INTEGER NOT NULL REFERENCES update_batch(id),
		player_id INTEGER NOT NULL REFERENCES players(id),
		points DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (leaderboard_id, update_id, player_id)
	);`
)

// openDatabase selects the backend the way the deployment always has:
// a postgres:// DATABASE_URL wins, otherwise the embedded SQLite file at
// DB_PATH (default gg_leaderboards.db).
func openDatabase() (*Database, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return openPostgres(databaseURL)
	}
	path := envOrDefault("DB_PATH", "gg_leaderboards.db")
	return openSQLite(path)
}

func openSQLite(path string) (*Database, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	d := &Database{DB: conn, backend: backendSQLite}
	if err := d.createSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("[I] [DB] Using embedded SQLite store at %s", path)
	return d, nil
}

func openPostgres(url string) (*Database, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	d := &Database{DB: conn, backend: backendPostgres}
	if err := d.createSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Println("[I] [DB] Using PostgreSQL store from DATABASE_URL")
	return d, nil
}

func (d *Database) createSchema() error {
	queries := []struct {
		name string
		sql  string
	}{
		{"leaderboards", createLeaderboardsTableSQL},
		{"players", createPlayersTableSQL},
		{"update_batch", createUpdateBatchTableSQL},
		{"facts", createFactsTableSQL},
	}
	if d.backend == backendPostgres {
		queries = []struct {
			name string
			sql  string
		}{
			{"leaderboards", createLeaderboardsTablePgSQL},
			{"players", createPlayersTablePgSQL},
			{"update_batch", createUpdateBatchTablePgSQL},
			{"facts", createFactsTablePgSQL},
		}
	}
	for _, q := range queries {
		if _, err := d.Exec(q.sql); err != nil {
			return fmt.Errorf("could not create table '%s': %w", q.name, err)
		}
	}

	indexQueries := []string{
		`CREATE INDEX IF NOT EXISTS idx_facts_leaderboard_update ON facts (leaderboard_id, update_id);`,
		`CREATE INDEX IF NOT EXISTS idx_facts_player ON facts (player_id);`,
		`CREATE INDEX IF NOT EXISTS idx_update_batch_created ON update_batch (created_at);`,
	}
	for i, q := range indexQueries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("could not create index #%d: %w", i, err)
		}
	}
	return nil
}

// rebind rewrites ?-style placeholders into the $n form PostgreSQL wants.
// Queries in this codebase never contain a literal question mark.
func (d *Database) rebind(query string) string {
	if d.backend != backendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// descNullsLast builds an ORDER BY fragment sorting col descending with
// NULLs after every real value. On SQLite a leading IS NULL key pushes
// the NULL rows to the end. The fragment must stay a bare alias
// reference on PostgreSQL, which only resolves output aliases outside
// expressions.
func (d *Database) descNullsLast(col string) string {
	if d.backend == backendPostgres {
		return fmt.Sprintf("%s DESC NULLS LAST", col)
	}
	return fmt.Sprintf("%s IS NULL, %s DESC", col, col)
}

// dayBucket yields the calendar-day expression for a batch timestamp.
// SQLite truncates the stored RFC3339 text (effectively the scraper
// host's clock), PostgreSQL truncates the timestamptz in the session
// time zone. The two deployments therefore cut days differently; that
// divergence is accepted, not reconciled.
func (d *Database) dayBucket(col string) string {
	if d.backend == backendPostgres {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", col)
	}
	return fmt.Sprintf("date(%s)", col)
}

// insertReturningID inserts one row and reports its generated id.
// lib/pq does not implement LastInsertId, so PostgreSQL goes through
// RETURNING instead.
func (d *Database) insertReturningID(tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	if d.backend == backendPostgres {
		var id int64
		err := tx.QueryRow(d.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// latestBatchStamps returns the most recent n distinct batches that carry
// facts for the named leaderboard, newest first.
func (d *Database) latestBatchStamps(leaderboard string, n int) ([]batchStamp, error) {
	query := d.rebind(`
		SELECT DISTINCT u.id, u.created_at
		FROM update_batch u
		JOIN facts f ON f.update_id = u.id
		JOIN leaderboards l ON l.id = f.leaderboard_id
		WHERE l.name = ?
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT ?`)
	rows, err := d.Query(query, leaderboard, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stamps []batchStamp
	for rows.Next() {
		var s batchStamp
		if err := rows.Scan(&s.ID, &s.CreatedAt); err != nil {
			return nil, err
		}
		stamps = append(stamps, s)
	}
	return stamps, rows.Err()
}
