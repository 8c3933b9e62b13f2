package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("GG_TEST_KEY", "value")
	assert.Equal(t, "value", envOrDefault("GG_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", envOrDefault("GG_TEST_MISSING", "fallback"))
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("GG_TEST_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, parseDurationEnv("GG_TEST_INTERVAL", time.Minute))

	t.Setenv("GG_TEST_INTERVAL", "not-a-duration")
	assert.Equal(t, time.Minute, parseDurationEnv("GG_TEST_INTERVAL", time.Minute))

	assert.Equal(t, time.Minute, parseDurationEnv("GG_TEST_NOPE", time.Minute))
}

func TestGetLastUpdateTime(t *testing.T) {
	d := newTestDB(t)
	assert.Equal(t, "Never", getLastUpdateTime(d))

	_, err := d.Exec(`INSERT INTO update_batch (created_at) VALUES ('2026-05-01T12:30:00Z')`)
	assert.NoError(t, err)
	assert.Equal(t, "2026-05-01 12:30:00", getLastUpdateTime(d))
}

func TestGenerateRandomPassword(t *testing.T) {
	a := generateRandomPassword(16)
	b := generateRandomPassword(16)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
