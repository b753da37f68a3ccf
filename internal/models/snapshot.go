// Package models defines the playback state types shared between the
// ingestion surface, the snapshot cache, and the realtime fanout.
package models

import (
	"strings"
	"time"
)

// ReasonColdStart is the metadata reason attached to placeholder snapshots
// returned for guilds with no (or expired) cached state.
const ReasonColdStart = "cold_start"

// Track represents one entry in a guild's playback queue.
// Every field is always populated; missing producer values are replaced
// with safe placeholders during normalization.
type Track struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	DurationMS int64  `json:"duration"`
	URI        string `json:"uri,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	Source     string `json:"source,omitempty"`
	Requester  string `json:"requester,omitempty"`
}

// QueueSnapshot is the authoritative playback state for one guild.
type QueueSnapshot struct {
	GuildID    string            `json:"guildId"`
	Queue      []Track           `json:"queue"`
	NowPlaying *Track            `json:"nowPlaying"`
	Paused     bool              `json:"paused"`
	Volume     *int              `json:"volume,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ColdStartSnapshot returns the documented placeholder for a guild with no
// cached state. Callers must not distinguish "never written" from "expired".
func ColdStartSnapshot(guildID string) *QueueSnapshot {
	return &QueueSnapshot{
		GuildID:    guildID,
		Queue:      []Track{},
		NowPlaying: nil,
		Paused:     false,
		Metadata:   map[string]string{"reason": ReasonColdStart},
		UpdatedAt:  time.Time{},
	}
}

// IsColdStart reports whether the snapshot is the placeholder state.
func (s *QueueSnapshot) IsColdStart() bool {
	return s.Metadata != nil && s.Metadata["reason"] == ReasonColdStart
}

// TrackPayload is the untrusted wire shape of a track as pushed by the bot
// process. Absent fields decode to zero values and are replaced by
// Normalize.
type TrackPayload struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	DurationMS int64  `json:"duration"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	Source     string `json:"source"`
	Requester  string `json:"requester"`
}

// Normalize converts an untrusted track payload into a Track with every
// field populated. The cache never stores holes that would crash a consumer.
func (p TrackPayload) Normalize() Track {
	t := Track{
		Title:      strings.TrimSpace(p.Title),
		Author:     strings.TrimSpace(p.Author),
		DurationMS: p.DurationMS,
		URI:        strings.TrimSpace(p.URI),
		ArtworkURL: strings.TrimSpace(p.ArtworkURL),
		Source:     strings.ToLower(strings.TrimSpace(p.Source)),
		Requester:  strings.TrimSpace(p.Requester),
	}
	if t.Title == "" {
		t.Title = "Unknown"
	}
	if t.Author == "" {
		t.Author = "Unknown"
	}
	if t.DurationMS < 0 {
		t.DurationMS = 0
	}
	return t
}

// SnapshotPayload is the untrusted wire shape of a queue snapshot.
// UpdatedAt is a unix-millisecond timestamp reported by the producer.
type SnapshotPayload struct {
	GuildID    string            `json:"guildId"`
	Queue      []TrackPayload    `json:"queue"`
	NowPlaying *TrackPayload     `json:"nowPlaying"`
	Paused     bool              `json:"paused"`
	Volume     *int              `json:"volume"`
	Metadata   map[string]string `json:"metadata"`
	UpdatedAt  int64             `json:"updatedAt"`
}

// Normalize converts an untrusted snapshot payload into a QueueSnapshot.
// A missing or bogus UpdatedAt defaults to the receive time.
func (p SnapshotPayload) Normalize() *QueueSnapshot {
	snap := &QueueSnapshot{
		GuildID:  strings.TrimSpace(p.GuildID),
		Queue:    make([]Track, 0, len(p.Queue)),
		Paused:   p.Paused,
		Volume:   p.Volume,
		Metadata: p.Metadata,
	}
	for _, tp := range p.Queue {
		snap.Queue = append(snap.Queue, tp.Normalize())
	}
	if p.NowPlaying != nil {
		np := p.NowPlaying.Normalize()
		snap.NowPlaying = &np
	}
	if snap.Metadata == nil {
		snap.Metadata = map[string]string{}
	}
	if p.UpdatedAt > 0 {
		snap.UpdatedAt = time.UnixMilli(p.UpdatedAt).UTC()
	} else {
		snap.UpdatedAt = time.Now().UTC()
	}
	return snap
}
