package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// saveScrapePass persists one full pass as a single batch. Everything
// happens in one transaction: if any statement fails the batch and all
// of its facts disappear together. Returns the new batch id plus the
// counts of facts stored and duplicates skipped.
func saveScrapePass(d *Database, when time.Time, results []FilterResult) (int64, int, int, error) {
	tx, err := d.Begin()
	if err != nil {
		return 0, 0, 0, &StorageError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	batchID, err := d.insertReturningID(tx,
		`INSERT INTO update_batch (created_at) VALUES (?)`,
		when.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, 0, 0, &StorageError{Op: "create update batch", Err: err}
	}

	stored, skipped := 0, 0
	for _, result := range results {
		lbID, err := resolveEntity(d, tx, "leaderboards", result.Label)
		if err != nil {
			return 0, 0, 0, &StorageError{Op: fmt.Sprintf("resolve leaderboard '%s'", result.Label), Err: err}
		}
		for _, row := range result.Rows {
			playerID, err := resolveEntity(d, tx, "players", row.Player)
			if err != nil {
				return 0, 0, 0, &StorageError{Op: fmt.Sprintf("resolve player '%s'", row.Player), Err: err}
			}
			if row.Country != "" {
				// Country is set once and never overwritten; the page
				// sometimes hides it behind a flag sprite with no title.
				_, err = tx.Exec(d.rebind(
					`UPDATE players SET country = ? WHERE id = ? AND country IS NULL`),
					row.Country, playerID)
				if err != nil {
					return 0, 0, 0, &StorageError{Op: fmt.Sprintf("set country for '%s'", row.Player), Err: err}
				}
			}
			res, err := tx.Exec(d.rebind(
				`INSERT INTO facts (leaderboard_id, update_id, player_id, points)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT (leaderboard_id, update_id, player_id) DO NOTHING`),
				lbID, batchID, playerID, row.Points)
			if err != nil {
				return 0, 0, 0, &StorageError{Op: fmt.Sprintf("insert fact for '%s'", row.Player), Err: err}
			}
			if n, _ := res.RowsAffected(); n == 0 {
				// Duplicate player name inside one table render. First
				// occurrence wins.
				skipped++
				continue
			}
			stored++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, &StorageError{Op: "commit batch", Err: err}
	}
	if skipped > 0 {
		log.Printf("[W] [Store] Batch #%d: skipped %d duplicate rows within a single render", batchID, skipped)
	}
	log.Printf("[I] [Store] Batch #%d stored with %d facts across %d filters", batchID, stored, len(results))
	return batchID, stored, skipped, nil
}

// resolveEntity finds or creates a row in a name-keyed table and returns
// its id. The insert races benignly with concurrent passes thanks to
// ON CONFLICT DO NOTHING; the follow-up select always lands on the
// surviving row.
func resolveEntity(d *Database, tx *sql.Tx, table, name string) (int64, error) {
	_, err := tx.Exec(d.rebind(fmt.Sprintf(
		`INSERT INTO %s (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, table)), name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(d.rebind(fmt.Sprintf(
		`SELECT id FROM %s WHERE name = ?`, table)), name).Scan(&id)
	return id, err
}
