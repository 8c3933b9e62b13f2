package main

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveScrapePass(t *testing.T) {
	d := newTestDB(t)

	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	results := []FilterResult{
		{Label: "NL2", Rows: []RankingRow{
			{Rank: 1, Player: "alice", Country: "Brazil", Points: 1181},
			{Rank: 2, Player: "bob", Points: 900.5},
		}},
		{Label: "NL5", Rows: []RankingRow{
			{Rank: 1, Player: "alice", Points: 300},
		}},
	}

	batchID, stored, skipped, err := saveScrapePass(d, when, results)
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
	assert.Equal(t, 0, skipped)

	var createdAt string
	require.NoError(t, d.QueryRow(`SELECT created_at FROM update_batch WHERE id = ?`, batchID).Scan(&createdAt))
	assert.Equal(t, "2026-05-01T12:00:00Z", createdAt)

	// One player row despite appearing on two leaderboards.
	var playerCount int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM players`).Scan(&playerCount))
	assert.Equal(t, 2, playerCount)

	var country sql.NullString
	require.NoError(t, d.QueryRow(`SELECT country FROM players WHERE name = 'alice'`).Scan(&country))
	assert.Equal(t, "Brazil", country.String)
	require.NoError(t, d.QueryRow(`SELECT country FROM players WHERE name = 'bob'`).Scan(&country))
	assert.False(t, country.Valid)
}

func TestSaveScrapePassCountrySetOnce(t *testing.T) {
	d := newTestDB(t)

	when := time.Now()
	_, _, _, err := saveScrapePass(d, when, []FilterResult{
		{Label: "NL2", Rows: []RankingRow{{Player: "alice", Country: "Brazil", Points: 1}}},
	})
	require.NoError(t, err)

	// A later pass reporting a different country never overwrites.
	_, _, _, err = saveScrapePass(d, when.Add(time.Hour), []FilterResult{
		{Label: "NL2", Rows: []RankingRow{{Player: "alice", Country: "Canada", Points: 2}}},
	})
	require.NoError(t, err)

	var country string
	require.NoError(t, d.QueryRow(`SELECT country FROM players WHERE name = 'alice'`).Scan(&country))
	assert.Equal(t, "Brazil", country)
}

func TestSaveScrapePassDuplicateRowsInOneRender(t *testing.T) {
	d := newTestDB(t)

	_, stored, skipped, err := saveScrapePass(d, time.Now(), []FilterResult{
		{Label: "NL2", Rows: []RankingRow{
			{Player: "alice", Points: 100},
			{Player: "alice", Points: 50},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, skipped)

	// First occurrence wins.
	var points float64
	require.NoError(t, d.QueryRow(`SELECT points FROM facts`).Scan(&points))
	assert.Equal(t, 100.0, points)
}

func TestSaveScrapePassAppendOnly(t *testing.T) {
	d := newTestDB(t)

	rows := []FilterResult{{Label: "NL2", Rows: []RankingRow{{Player: "alice", Points: 1}}}}
	when := time.Now()
	_, _, _, err := saveScrapePass(d, when, rows)
	require.NoError(t, err)
	_, _, _, err = saveScrapePass(d, when.Add(time.Minute), rows)
	require.NoError(t, err)

	// Two batches, two facts, nothing mutated in place.
	var batches, facts int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM update_batch`).Scan(&batches))
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM facts`).Scan(&facts))
	assert.Equal(t, 2, batches)
	assert.Equal(t, 2, facts)
}
