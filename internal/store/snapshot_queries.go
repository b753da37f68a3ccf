package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/models"
	"github.com/soundbridgehq/botbridge/internal/queuecache"
)

// Persist creates or updates a guild's snapshot record. The upsert refuses
// to replace a newer record, so racing writers for the same guild cannot
// reorder producer updates even when both passed the cache-level check.
func (db *DB) Persist(ctx context.Context, snapshot *models.QueueSnapshot, tier models.Tier, expiresAt time.Time) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO queue_snapshots (guild_id, payload, tier, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE
		SET payload = EXCLUDED.payload,
		    tier = EXCLUDED.tier,
		    updated_at = EXCLUDED.updated_at,
		    expires_at = EXCLUDED.expires_at
		WHERE queue_snapshots.updated_at <= EXCLUDED.updated_at
	`

	if _, err := db.ExecContext(ctx, query, snapshot.GuildID, payload, tier, snapshot.UpdatedAt, expiresAt); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return nil
}

// Load retrieves a guild's snapshot record. Returns (nil, nil) when no
// record exists; expiry is enforced by the caller, not here.
func (db *DB) Load(ctx context.Context, guildID string) (*queuecache.StoredSnapshot, error) {
	query := `
		SELECT payload, tier, expires_at
		FROM queue_snapshots
		WHERE guild_id = $1
	`

	var (
		payload   []byte
		tier      string
		expiresAt time.Time
	)
	err := db.QueryRowContext(ctx, query, guildID).Scan(&payload, &tier, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot models.QueueSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode stored snapshot: %w", err)
	}

	return &queuecache.StoredSnapshot{
		Snapshot:  &snapshot,
		Tier:      models.ParseTier(tier),
		ExpiresAt: expiresAt,
	}, nil
}

// Purge removes a guild's snapshot record.
func (db *DB) Purge(ctx context.Context, guildID string) error {
	query := `DELETE FROM queue_snapshots WHERE guild_id = $1`

	if _, err := db.ExecContext(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to purge snapshot: %w", err)
	}

	return nil
}

// CleanupExpiredSnapshots removes records whose expiry is past. Read-path
// expiry is lazy and authoritative; this job only reclaims storage for
// guilds nobody reads anymore.
func (db *DB) CleanupExpiredSnapshots(ctx context.Context) error {
	query := `DELETE FROM queue_snapshots WHERE expires_at < NOW()`

	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired snapshots: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		db.logger.Info("cleaned up expired snapshots",
			zap.Int64("count", rowsAffected),
		)
	}

	return nil
}

// StartCleanupJob starts a background job that periodically removes
// long-expired snapshot records
func (db *DB) StartCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	db.logger.Info("started snapshot cleanup job",
		zap.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			db.logger.Info("stopping snapshot cleanup job")
			return
		case <-ticker.C:
			if err := db.CleanupExpiredSnapshots(ctx); err != nil {
				db.logger.Error("snapshot cleanup failed", zap.Error(err))
			}
		}
	}
}

// SnapshotStats returns live/expired counts for the health endpoint.
func (db *DB) SnapshotStats(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN expires_at > NOW() THEN 1 ELSE 0 END) as live,
			SUM(CASE WHEN expires_at <= NOW() THEN 1 ELSE 0 END) as expired
		FROM queue_snapshots
	`

	var total, live, expired sql.NullInt64
	if err := db.QueryRowContext(ctx, query).Scan(&total, &live, &expired); err != nil {
		return nil, fmt.Errorf("failed to get snapshot stats: %w", err)
	}

	return map[string]int64{
		"snapshots_total":   total.Int64,
		"snapshots_live":    live.Int64,
		"snapshots_expired": expired.Int64,
	}, nil
}
