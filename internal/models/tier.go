package models

import (
	"strings"
	"time"
)

// Tier represents a guild's subscription plan level.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierGrowth     Tier = "growth"
	TierScale      Tier = "scale"
	TierEnterprise Tier = "enterprise"
)

// tierRank orders tiers from lowest to highest plan level.
var tierRank = map[Tier]int{
	TierFree:       0,
	TierStarter:    1,
	TierPro:        2,
	TierGrowth:     3,
	TierScale:      4,
	TierEnterprise: 5,
}

// tierTTL maps each tier to the snapshot cache lifetime it buys.
// Low tiers release storage pressure quickly; paying tiers get a window
// that tolerates brief bot restarts without losing last-known state.
var tierTTL = map[Tier]time.Duration{
	TierFree:       5 * time.Minute,
	TierStarter:    5 * time.Minute,
	TierPro:        15 * time.Minute,
	TierGrowth:     60 * time.Minute,
	TierScale:      60 * time.Minute,
	TierEnterprise: 60 * time.Minute,
}

// ParseTier parses a tier identifier, falling back to free for unknown
// or empty values.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return TierFree
	}
	return t
}

// TTL returns the snapshot cache lifetime for the tier. Unknown tiers get
// the free-tier window.
func (t Tier) TTL() time.Duration {
	if ttl, ok := tierTTL[t]; ok {
		return ttl
	}
	return tierTTL[TierFree]
}

// AtLeast reports whether the tier is at or above the given plan level.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank[t] >= tierRank[other]
}
