package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var (
	notifyOnce     sync.Once
	notifySession  *discordgo.Session
	notifyChannels []string
)

// setupNotifier opens the Discord session on first use. Both env vars
// are optional; without them every notification is a no-op.
func setupNotifier() {
	botToken := os.Getenv("DISCORD_BOT_TOKEN")
	channelIDsStr := os.Getenv("DISCORD_CHANNEL_IDS")

	if botToken == "" {
		log.Println("⚠️ [Discord] DISCORD_BOT_TOKEN not set. Pass notifications disabled.")
		return
	}
	if channelIDsStr == "" {
		log.Println("⚠️ [Discord] DISCORD_CHANNEL_IDS not set. Pass notifications disabled.")
		return
	}

	for _, id := range strings.Split(channelIDsStr, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			notifyChannels = append(notifyChannels, trimmed)
		}
	}
	if len(notifyChannels) == 0 {
		log.Println("⚠️ [Discord] No valid channel IDs in DISCORD_CHANNEL_IDS. Pass notifications disabled.")
		return
	}

	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		log.Printf("❌ [Discord] Error creating session: %v", err)
		return
	}
	if err := dg.Open(); err != nil {
		log.Printf("❌ [Discord] Error opening connection: %v", err)
		return
	}
	notifySession = dg
	log.Printf("🤖 [Discord] Notifier connected, reporting to %d channel(s)", len(notifyChannels))
}

// notifyPassSummary posts a one-line pass report to every configured
// channel. Silent when the notifier never came up.
func notifyPassSummary(summary *PassSummary) {
	notifyOnce.Do(setupNotifier)
	if notifySession == nil {
		return
	}

	msg := fmt.Sprintf("📊 Scrape #%d done at %s: %d filters (%d skipped), %d rows stored in %s",
		summary.BatchID, summary.Timestamp, summary.FiltersScraped,
		summary.FiltersSkipped, summary.RowsStored, summary.Duration)

	for _, channelID := range notifyChannels {
		if _, err := notifySession.ChannelMessageSend(channelID, msg); err != nil {
			log.Printf("❌ [Discord] Failed to send to channel %s: %v", channelID, err)
		}
	}
}

// closeNotifier shuts the Discord connection down on exit.
func closeNotifier() {
	if notifySession != nil {
		log.Println("🔌 [Discord] Closing connection...")
		notifySession.Close()
	}
}
