package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

const (
	defaultPivotCols  = 10
	defaultPivotLimit = 10
	defaultTopLimit   = 20
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[E] [API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads a positive integer query parameter, falling back to a
// default when absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// leaderboardsHandler lists every leaderboard name seen so far.
func leaderboardsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := leaderboardNames(db)
	if err != nil {
		log.Printf("[E] [API] Listing leaderboards: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list leaderboards")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// pivotHandler renders the wide recent-batches view of one leaderboard.
func pivotHandler(w http.ResponseWriter, r *http.Request) {
	leaderboard := r.URL.Query().Get("leaderboard")
	if leaderboard == "" {
		writeError(w, http.StatusBadRequest, "missing 'leaderboard' parameter")
		return
	}
	cols := queryInt(r, "columns", defaultPivotCols)
	limit := queryInt(r, "limit", defaultPivotLimit)

	table, err := widePivot(db, leaderboard, cols, limit)
	if err != nil {
		log.Printf("[E] [API] Pivot for '%s': %v", leaderboard, err)
		writeError(w, http.StatusInternalServerError, "pivot query failed")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// historyHandler charts one player's points across every batch of one
// leaderboard.
func historyHandler(w http.ResponseWriter, r *http.Request) {
	leaderboard := r.URL.Query().Get("leaderboard")
	player := r.URL.Query().Get("player")
	if leaderboard == "" || player == "" {
		writeError(w, http.StatusBadRequest, "missing 'leaderboard' or 'player' parameter")
		return
	}
	history, err := playerHistory(db, leaderboard, player)
	if err != nil {
		log.Printf("[E] [API] History for '%s' on '%s': %v", player, leaderboard, err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// topHandler ranks players by their best single-day score.
func topHandler(w http.ResponseWriter, r *http.Request) {
	leaderboard := r.URL.Query().Get("leaderboard")
	if leaderboard == "" {
		writeError(w, http.StatusBadRequest, "missing 'leaderboard' parameter")
		return
	}
	limit := queryInt(r, "limit", defaultTopLimit)
	entries, err := topPlayers(db, leaderboard, limit)
	if err != nil {
		log.Printf("[E] [API] Top players for '%s': %v", leaderboard, err)
		writeError(w, http.StatusInternalServerError, "top players query failed")
		return
	}
	if entries == nil {
		entries = []TopEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// lastUpdateHandler reports when the newest batch landed.
func lastUpdateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"last_update": getLastUpdateTime(db)})
}

// scrapeHandler triggers one pass on demand. Replies 202 when the pass
// was started and 409 when one is already underway.
func scrapeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if !tryStartScrape(context.Background(), db) {
		writeError(w, http.StatusConflict, "a scrape pass is already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scrape started"})
}
