package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/soundbridgehq/botbridge/internal/models"
	"github.com/soundbridgehq/botbridge/internal/queuecache"
)

// MemoryStore is an in-memory stand-in for the Postgres-backed store.
// It implements the cache's store and tier resolver contracts plus the
// authorization gate's key lookup.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*queuecache.StoredSnapshot
	tiers     map[string]models.Tier
	keys      map[string]string

	PersistCalls int
	PurgeCalls   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*queuecache.StoredSnapshot),
		tiers:     make(map[string]models.Tier),
		keys:      make(map[string]string),
	}
}

// Persist stores the snapshot under its guild ID.
func (m *MemoryStore) Persist(_ context.Context, snapshot *models.QueueSnapshot, tier models.Tier, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistCalls++
	m.snapshots[snapshot.GuildID] = &queuecache.StoredSnapshot{
		Snapshot:  snapshot,
		Tier:      tier,
		ExpiresAt: expiresAt,
	}
	return nil
}

// Load returns the stored snapshot, or nil when absent.
func (m *MemoryStore) Load(_ context.Context, guildID string) (*queuecache.StoredSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[guildID], nil
}

// Purge removes the guild's snapshot.
func (m *MemoryStore) Purge(_ context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgeCalls++
	delete(m.snapshots, guildID)
	return nil
}

// FetchTier returns the guild's configured tier, defaulting to free.
func (m *MemoryStore) FetchTier(_ context.Context, guildID string) (models.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tier, ok := m.tiers[guildID]; ok {
		return tier, nil
	}
	return models.TierFree, nil
}

// SetTier configures a guild's tier for subsequent FetchTier calls.
func (m *MemoryStore) SetTier(guildID string, tier models.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[guildID] = tier
}

// LookupAPIKey returns the user's API key, or empty when unknown.
func (m *MemoryStore) LookupAPIKey(_ context.Context, discordID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[discordID], nil
}

// SetAPIKey configures a per-user API key for subsequent lookups.
func (m *MemoryStore) SetAPIKey(discordID, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[discordID] = key
}
