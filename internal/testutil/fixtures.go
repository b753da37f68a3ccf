// Package testutil provides shared fixtures and fakes for package tests:
// snapshot generators, an in-memory snapshot store, and a mock bot process.
package testutil

import (
	"fmt"
	"time"

	"github.com/soundbridgehq/botbridge/internal/config"
	"github.com/soundbridgehq/botbridge/internal/models"
)

// GenerateTrack creates a fully populated test track.
func GenerateTrack(title string) models.Track {
	return models.Track{
		Title:      title,
		Author:     fmt.Sprintf("artist_%s", title),
		DurationMS: 180000,
		URI:        fmt.Sprintf("https://tracks.test/%s", title),
		ArtworkURL: fmt.Sprintf("https://art.test/%s.jpg", title),
		Source:     "youtube",
		Requester:  "user_1",
	}
}

// GenerateSnapshot creates a test snapshot with the given number of
// queued tracks and an UpdatedAt of now.
func GenerateSnapshot(guildID string, tracks int) *models.QueueSnapshot {
	queue := make([]models.Track, 0, tracks)
	for i := 0; i < tracks; i++ {
		queue = append(queue, GenerateTrack(fmt.Sprintf("track_%d", i)))
	}

	volume := 100
	now := GenerateTrack("now_playing")

	return &models.QueueSnapshot{
		GuildID:    guildID,
		Queue:      queue,
		NowPlaying: &now,
		Paused:     false,
		Volume:     &volume,
		Metadata:   map[string]string{},
		UpdatedAt:  time.Now().UTC(),
	}
}

// GeneratePayload creates a wire-shaped snapshot payload as the bot
// process would push it, stamped with the given unix-ms timestamp.
func GeneratePayload(guildID string, tracks int, updatedAtMS int64) models.SnapshotPayload {
	queue := make([]models.TrackPayload, 0, tracks)
	for i := 0; i < tracks; i++ {
		t := GenerateTrack(fmt.Sprintf("track_%d", i))
		queue = append(queue, models.TrackPayload{
			Title:      t.Title,
			Author:     t.Author,
			DurationMS: t.DurationMS,
			URI:        t.URI,
			ArtworkURL: t.ArtworkURL,
			Source:     t.Source,
			Requester:  t.Requester,
		})
	}

	volume := 100
	return models.SnapshotPayload{
		GuildID:   guildID,
		Queue:     queue,
		Paused:    false,
		Volume:    &volume,
		UpdatedAt: updatedAtMS,
	}
}

// GenerateTestConfig creates a test configuration with valid values.
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort: "8080",
			Host:     "localhost",
			Env:      "test",
		},
		Bot: config.BotConfig{
			StatusURL:      "http://localhost:4000/status",
			StatusPath:     "/status",
			ControlPath:    "/control",
			Token:          "test_bot_token",
			StatusCacheTTL: 15 * time.Second,
			NegativeTTL:    5 * time.Second,
			CooldownWindow: 30 * time.Second,
			AttemptTimeout: 3 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "testuser",
			Password:     "testpass",
			Name:         "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Security: config.SecurityConfig{
			IngestSecrets: []string{"test_ingest_secret"},
			ReadSecrets:   []string{"test_read_secret"},
		},
		Fanout: config.FanoutConfig{
			Enabled:    true,
			BufferSize: 16,
		},
		RateLimit: config.RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}
