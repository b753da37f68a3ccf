package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LookupAPIKey resolves a user-scoped API key by Discord user ID.
// Returns an empty key (not an error) when the user has none.
func (db *DB) LookupAPIKey(ctx context.Context, discordID string) (string, error) {
	query := `SELECT api_key FROM user_api_keys WHERE discord_id = $1`

	var key string
	err := db.QueryRowContext(ctx, query, discordID).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up api key: %w", err)
	}

	return key, nil
}

// StoreAPIKey creates or replaces a user's scoped API key.
func (db *DB) StoreAPIKey(ctx context.Context, discordID, key string) error {
	query := `
		INSERT INTO user_api_keys (discord_id, api_key)
		VALUES ($1, $2)
		ON CONFLICT (discord_id) DO UPDATE
		SET api_key = EXCLUDED.api_key
	`

	if _, err := db.ExecContext(ctx, query, discordID, key); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}

	return nil
}
