// Package queuecache maintains the tier-aware, TTL-bounded cache of
// per-guild playback snapshots. The durable store collaborator is the
// single source of truth; this package owns the tier TTL policy, the
// per-guild write ordering, and lazy read-time expiry.
package queuecache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/models"
)

// purgeTimeout bounds the detached purge triggered by an expired read.
const purgeTimeout = 5 * time.Second

// StoredSnapshot is a snapshot record as held by the durable store.
type StoredSnapshot struct {
	Snapshot  *models.QueueSnapshot
	Tier      models.Tier
	ExpiresAt time.Time
}

// Store is the durable key-value collaborator. Load returns (nil, nil)
// for a guild with no record.
type Store interface {
	Persist(ctx context.Context, snapshot *models.QueueSnapshot, tier models.Tier, expiresAt time.Time) error
	Load(ctx context.Context, guildID string) (*StoredSnapshot, error)
	Purge(ctx context.Context, guildID string) error
}

// TierResolver resolves a guild's subscription tier. Resolved once per
// write, never cached across writes, so a tier change takes effect on the
// next update.
type TierResolver interface {
	FetchTier(ctx context.Context, guildID string) (models.Tier, error)
}

// Notifier receives successful snapshot writes. Broadcast is best-effort
// and must never fail the write.
type Notifier interface {
	Broadcast(snapshot *models.QueueSnapshot)
}

// Cache is the queue snapshot cache.
type Cache struct {
	store    Store
	tiers    TierResolver
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewCache creates a snapshot cache. notifier may be nil when fanout is
// disabled.
func NewCache(store Store, tiers TierResolver, notifier Notifier, logger *zap.Logger) *Cache {
	return &Cache{
		store:    store,
		tiers:    tiers,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetQueueSnapshot persists a guild's snapshot with a tier-scaled TTL.
// Writes are last-write-wins per guild keyed by producer UpdatedAt; a
// write older than the stored snapshot is dropped, never applied out of
// order. Store unavailability is propagated, there is no in-memory
// fallback for writes.
func (c *Cache) SetQueueSnapshot(ctx context.Context, snapshot *models.QueueSnapshot) error {
	if snapshot == nil || snapshot.GuildID == "" {
		return fmt.Errorf("snapshot must have a guild id")
	}

	existing, err := c.store.Load(ctx, snapshot.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load current snapshot: %w", err)
	}
	if existing != nil && existing.Snapshot != nil && snapshot.UpdatedAt.Before(existing.Snapshot.UpdatedAt) {
		c.logger.Debug("dropping out-of-order snapshot write",
			zap.String("guild_id", snapshot.GuildID),
			zap.Time("incoming", snapshot.UpdatedAt),
			zap.Time("stored", existing.Snapshot.UpdatedAt),
		)
		return nil
	}

	tier := c.resolveTier(ctx, snapshot.GuildID)
	expiresAt := c.now().Add(tier.TTL())

	if err := c.store.Persist(ctx, snapshot, tier, expiresAt); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	c.logger.Debug("snapshot stored",
		zap.String("guild_id", snapshot.GuildID),
		zap.String("tier", string(tier)),
		zap.Time("expires_at", expiresAt),
		zap.Int("queue_length", len(snapshot.Queue)),
	)

	// Fire-and-forget broadcast, decoupled from the write's result path.
	if c.notifier != nil {
		go c.notifier.Broadcast(snapshot)
	}

	return nil
}

// GetQueueSnapshot returns the guild's current snapshot, or the cold-start
// placeholder when no live record exists. Expiry is enforced at read time:
// an expired record triggers an asynchronous purge and reads as absent
// even before the store physically deletes it.
func (c *Cache) GetQueueSnapshot(ctx context.Context, guildID string) *models.QueueSnapshot {
	record, err := c.store.Load(ctx, guildID)
	if err != nil {
		c.logger.Error("failed to load snapshot, serving cold start",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return models.ColdStartSnapshot(guildID)
	}

	if record == nil || record.Snapshot == nil {
		return models.ColdStartSnapshot(guildID)
	}

	if c.now().After(record.ExpiresAt) {
		go c.purgeStale(guildID)
		return models.ColdStartSnapshot(guildID)
	}

	return record.Snapshot
}

// resolveTier fetches the guild's tier, degrading to free on resolver
// failure so a billing outage shortens TTLs instead of dropping writes.
func (c *Cache) resolveTier(ctx context.Context, guildID string) models.Tier {
	tier, err := c.tiers.FetchTier(ctx, guildID)
	if err != nil {
		c.logger.Warn("tier resolution failed, defaulting to free",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return models.TierFree
	}
	return tier
}

// purgeStale removes an expired record in the background.
func (c *Cache) purgeStale(guildID string) {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if err := c.store.Purge(ctx, guildID); err != nil {
		c.logger.Warn("failed to purge stale snapshot",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
	}
}
