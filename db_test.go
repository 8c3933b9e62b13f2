package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := openSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestRebind(t *testing.T) {
	sqlite := &Database{backend: backendSQLite}
	pg := &Database{backend: backendPostgres}

	query := `INSERT INTO facts (a, b, c) VALUES (?, ?, ?)`
	assert.Equal(t, query, sqlite.rebind(query))
	assert.Equal(t, `INSERT INTO facts (a, b, c) VALUES ($1, $2, $3)`, pg.rebind(query))
	assert.Equal(t, `SELECT 1`, pg.rebind(`SELECT 1`))
}

func TestDialectClauses(t *testing.T) {
	sqlite := &Database{backend: backendSQLite}
	pg := &Database{backend: backendPostgres}

	assert.Equal(t, "ts_9 IS NULL, ts_9 DESC", sqlite.descNullsLast("ts_9"))
	assert.Equal(t, "ts_9 DESC NULLS LAST", pg.descNullsLast("ts_9"))

	assert.Equal(t, "date(u.created_at)", sqlite.dayBucket("u.created_at"))
	assert.Equal(t, "TO_CHAR(u.created_at, 'YYYY-MM-DD')", pg.dayBucket("u.created_at"))
}

func TestInsertReturningID(t *testing.T) {
	d := newTestDB(t)

	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	first, err := d.insertReturningID(tx, `INSERT INTO update_batch (created_at) VALUES (?)`, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	second, err := d.insertReturningID(tx, `INSERT INTO update_batch (created_at) VALUES (?)`, "2026-01-01T00:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestLatestBatchStamps(t *testing.T) {
	d := newTestDB(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []FilterResult{{Label: "NL2", Rows: []RankingRow{{Player: "alice", Points: 10}}}}
	for i := 0; i < 4; i++ {
		_, _, _, err := saveScrapePass(d, base.Add(time.Duration(i)*time.Hour), rows)
		require.NoError(t, err)
	}

	stamps, err := d.latestBatchStamps("NL2", 2)
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	// Newest first.
	assert.Equal(t, "2026-05-01T15:00:00Z", stamps[0].CreatedAt)
	assert.Equal(t, "2026-05-01T14:00:00Z", stamps[1].CreatedAt)

	// Batches of other leaderboards never leak in.
	stamps, err = d.latestBatchStamps("NL100", 5)
	require.NoError(t, err)
	assert.Empty(t, stamps)
}
