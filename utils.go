package main

import (
	"crypto/rand"
	"database/sql"
	"io"
	"log"
	"os"
	"time"
)

func generateRandomPassword(length int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		log.Println("❗️ Could not generate secure random password, using fallback.")
		return "fallback-password-gg-change-me"
	}
	for i := 0; i < length; i++ {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid duration in %s (%q), using %s", key, v, fallback)
		return fallback
	}
	return d
}

// getLastUpdateTime reports when the newest batch was written, or
// "Never" before the first successful pass.
func getLastUpdateTime(d *Database) string {
	var lastTimestamp sql.NullString
	err := d.QueryRow(`SELECT MAX(created_at) FROM update_batch`).Scan(&lastTimestamp)
	if err != nil {
		log.Printf("⚠️ Could not get last update time: %v", err)
	}
	if lastTimestamp.Valid {
		parsedTime, err := time.Parse(time.RFC3339, lastTimestamp.String)
		if err == nil {
			return parsedTime.Format("2006-01-02 15:04:05")
		}
	}
	return "Never"
}
