package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soundbridgehq/botbridge/internal/models"
)

// FetchTier resolves a guild's subscription tier. Guilds with no recorded
// subscription are free-tier.
func (db *DB) FetchTier(ctx context.Context, guildID string) (models.Tier, error) {
	query := `SELECT tier FROM guild_tiers WHERE guild_id = $1`

	var tier string
	err := db.QueryRowContext(ctx, query, guildID).Scan(&tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TierFree, nil
		}
		return models.TierFree, fmt.Errorf("failed to fetch tier: %w", err)
	}

	return models.ParseTier(tier), nil
}

// SetTier records a guild's subscription tier. Called by the billing
// webhooks outside this subsystem; exposed here for tests and admin
// tooling.
func (db *DB) SetTier(ctx context.Context, guildID string, tier models.Tier) error {
	query := `
		INSERT INTO guild_tiers (guild_id, tier, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (guild_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    updated_at = NOW()
	`

	if _, err := db.ExecContext(ctx, query, guildID, tier); err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}

	return nil
}
