package main

import (
	"database/sql"
	"fmt"
	"strings"
)

// leaderboardNames lists every leaderboard ever scraped, alphabetically.
func leaderboardNames(d *Database) ([]string, error) {
	rows, err := d.Query(`SELECT name FROM leaderboards ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// widePivot renders the latest cols batches of one leaderboard side by
// side, one row per player, sorted by the most recent column descending
// with absent players last. A player missing from a batch gets nil in
// that column, never zero.
func widePivot(d *Database, leaderboard string, cols, limit int) (*PivotTable, error) {
	stamps, err := d.latestBatchStamps(leaderboard, cols)
	if err != nil {
		return nil, fmt.Errorf("listing batches for '%s': %w", leaderboard, err)
	}
	table := &PivotTable{Leaderboard: leaderboard, Columns: []string{"player"}, Rows: [][]interface{}{}}
	if len(stamps) == 0 {
		return table, nil
	}

	// Oldest of the selected batches first, so the last column is the
	// most recent pass.
	for i, j := 0, len(stamps)-1; i < j; i, j = i+1, j-1 {
		stamps[i], stamps[j] = stamps[j], stamps[i]
	}

	var b strings.Builder
	b.WriteString("SELECT p.name")
	args := make([]interface{}, 0, 2*len(stamps)+2)
	for i, s := range stamps {
		fmt.Fprintf(&b, ", MAX(CASE WHEN f.update_id = ? THEN f.points END) AS ts_%d", i)
		args = append(args, s.ID)
		table.Columns = append(table.Columns, s.CreatedAt)
	}
	lastAlias := fmt.Sprintf("ts_%d", len(stamps)-1)
	b.WriteString(`
		FROM facts f
		JOIN players p ON p.id = f.player_id
		JOIN leaderboards l ON l.id = f.leaderboard_id
		WHERE l.name = ?`)
	args = append(args, leaderboard)
	// Only players with at least one fact inside the selected window get
	// a row; older facts alone must not produce an all-nil line.
	b.WriteString("\n\t\tAND f.update_id IN (")
	for i, s := range stamps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, s.ID)
	}
	b.WriteString(")")
	b.WriteString("\n\t\tGROUP BY p.name")
	fmt.Fprintf(&b, "\n\t\tORDER BY %s\n\t\tLIMIT ?", d.descNullsLast(lastAlias))
	args = append(args, limit)

	rows, err := d.Query(d.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("pivot query for '%s': %w", leaderboard, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		points := make([]sql.NullFloat64, len(stamps))
		dest := make([]interface{}, 0, len(stamps)+1)
		dest = append(dest, &name)
		for i := range points {
			dest = append(dest, &points[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]interface{}, 0, len(stamps)+1)
		row = append(row, name)
		for _, p := range points {
			if p.Valid {
				row = append(row, p.Float64)
			} else {
				row = append(row, nil)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

// playerHistory walks one player's trajectory on one leaderboard across
// every batch that leaderboard has, ascending. Batches the player sat
// out appear as nil so charts show the gap instead of a zero dip. An
// unknown player, or one without a single fact on the leaderboard,
// reads back as an empty history rather than an error.
func playerHistory(d *Database, leaderboard, player string) (*PlayerHistory, error) {
	history := &PlayerHistory{Leaderboard: leaderboard, Player: player}

	var playerID int64
	var country sql.NullString
	err := d.QueryRow(d.rebind(`SELECT id, country FROM players WHERE name = ?`), player).Scan(&playerID, &country)
	if err == sql.ErrNoRows {
		return history, nil
	}
	if err != nil {
		return nil, err
	}
	if country.Valid {
		history.Country = &country.String
	}

	var factCount int
	err = d.QueryRow(d.rebind(`
		SELECT COUNT(*)
		FROM facts f
		JOIN leaderboards l ON l.id = f.leaderboard_id
		WHERE l.name = ? AND f.player_id = ?`), leaderboard, playerID).Scan(&factCount)
	if err != nil {
		return nil, fmt.Errorf("history fact count for '%s': %w", player, err)
	}
	if factCount == 0 {
		return history, nil
	}

	rows, err := d.Query(d.rebind(`
		SELECT u.created_at, f2.points
		FROM update_batch u
		JOIN facts f ON f.update_id = u.id
		JOIN leaderboards l ON l.id = f.leaderboard_id
		LEFT JOIN facts f2 ON f2.update_id = u.id
			AND f2.leaderboard_id = l.id
			AND f2.player_id = ?
		WHERE l.name = ?
		GROUP BY u.id, u.created_at, f2.points
		ORDER BY u.created_at ASC, u.id ASC`), playerID, leaderboard)
	if err != nil {
		return nil, fmt.Errorf("history query for '%s': %w", player, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts string
		var points sql.NullFloat64
		if err := rows.Scan(&ts, &points); err != nil {
			return nil, err
		}
		history.Timestamps = append(history.Timestamps, ts)
		if points.Valid {
			v := points.Float64
			history.Points = append(history.Points, &v)
		} else {
			history.Points = append(history.Points, nil)
		}
	}
	return history, rows.Err()
}

// topPlayers ranks players by their single best daily score on one
// leaderboard: for each player, the maximum points seen in any batch on
// any one calendar day, highest first.
func topPlayers(d *Database, leaderboard string, limit int) ([]TopEntry, error) {
	day := d.dayBucket("u.created_at")
	query := fmt.Sprintf(`
		SELECT p.name, %s AS day, MAX(f.points) AS best
		FROM facts f
		JOIN players p ON p.id = f.player_id
		JOIN update_batch u ON u.id = f.update_id
		JOIN leaderboards l ON l.id = f.leaderboard_id
		WHERE l.name = ?
		GROUP BY p.name, %s
		ORDER BY best DESC
		LIMIT ?`, day, day)

	rows, err := d.Query(d.rebind(query), leaderboard, limit)
	if err != nil {
		return nil, fmt.Errorf("top players query for '%s': %w", leaderboard, err)
	}
	defer rows.Close()

	var entries []TopEntry
	for rows.Next() {
		var e TopEntry
		if err := rows.Scan(&e.Player, &e.Day, &e.Points); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
