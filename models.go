package main

import "time"

// filterOption is one selectable blind level in the leaderboard dropdown,
// identified by its position in the rendered list.
type filterOption struct {
	Index int
	Label string
}

// RankingRow is a single extracted row of the rendered ranking table.
type RankingRow struct {
	Rank    int
	Player  string
	Country string // empty when the page shows no flag/label for the player
	Points  float64
}

// FilterResult pairs a blind-level label with the rows extracted for it.
type FilterResult struct {
	Label string
	Rows  []RankingRow
}

// PassSummary reports the outcome of one full scrape pass.
type PassSummary struct {
	BatchID        int64
	Timestamp      string
	FiltersScraped int
	FiltersSkipped int
	RowsStored     int
	RowsSkipped    int
	Duration       time.Duration
}

// batchStamp identifies one update batch together with its creation time.
type batchStamp struct {
	ID        int64
	CreatedAt string
}

// PivotTable is the wide player-by-timestamp view of one leaderboard.
// Columns is "player" followed by batch timestamps oldest to newest;
// each row is the player name followed by point cells, nil where the
// player had no fact in that batch.
type PivotTable struct {
	Leaderboard string          `json:"leaderboard"`
	Columns     []string        `json:"columns"`
	Rows        [][]interface{} `json:"rows"`
}

// PlayerHistory is one player's full points series on one leaderboard.
// Timestamps covers every batch recorded for the leaderboard, ascending;
// Points is aligned with it, nil where the player had no fact.
type PlayerHistory struct {
	Leaderboard string     `json:"leaderboard"`
	Player      string     `json:"player"`
	Country     *string    `json:"country"`
	Timestamps  []string   `json:"timestamps"`
	Points      []*float64 `json:"points"`
}

// TopEntry is one (player, day, best points) standing.
type TopEntry struct {
	Player string  `json:"player"`
	Day    string  `json:"day"`
	Points float64 `json:"points"`
}
