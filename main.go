// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real deployments set the environment
	// directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[I] [Main] Loaded configuration from .env")
	}

	var err error
	db, err = openDatabase()
	if err != nil {
		log.Fatalf("[E] [Main] Could not open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := parseDurationEnv("SCRAPE_INTERVAL", 30*time.Minute)
	startBackgroundJobs(ctx, db, interval)
	defer closeNotifier()

	http.HandleFunc("/api/leaderboards", leaderboardsHandler)
	http.HandleFunc("/api/pivot", pivotHandler)
	http.HandleFunc("/api/history", historyHandler)
	http.HandleFunc("/api/top", topHandler)
	http.HandleFunc("/api/last_update", lastUpdateHandler)
	setupAdminAuth()
	http.HandleFunc("/api/scrape", basicAuth(scrapeHandler))

	addr := envOrDefault("LISTEN_ADDR", ":8080")
	server := &http.Server{Addr: addr}

	go func() {
		log.Printf("[I] [Main] Starting web server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[E] [Main] ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[I] [Main] Shutdown signal received, draining server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[W] [Main] Server shutdown: %v", err)
	}
}
