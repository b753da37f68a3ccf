// Package authgate validates inbound request credentials against shared
// secrets and per-user scoped API keys. It is a pure guard used by every
// exposed endpoint; it performs no writes and keeps no state of its own.
package authgate

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// tokenHeaders are the named headers checked after Authorization: Bearer,
// in order. First non-empty match wins; values are never merged.
var tokenHeaders = []string{"X-Bot-Token", "X-Api-Key"}

// tokenQueryParams are the named query parameters checked last.
var tokenQueryParams = []string{"token", "key"}

// KeyLookup resolves a user-scoped API key by Discord user ID. Backed by
// the persistence collaborator; a nil lookup disables the fallback.
type KeyLookup interface {
	LookupAPIKey(ctx context.Context, discordID string) (string, error)
}

// Options adjusts a single authorization decision.
type Options struct {
	// AllowLocalhost authorizes requests whose network origin is loopback.
	AllowLocalhost bool
	// DiscordID is an externally supplied hint enabling the per-user
	// API-key fallback.
	DiscordID string
}

// Gate is the authorization guard.
type Gate struct {
	bypass bool
	keys   KeyLookup
	logger *zap.Logger
}

// NewGate creates an authorization gate. When bypass is set every request
// is authorized; this is the test/dev escape hatch and must stay off in
// production deployments.
func NewGate(bypass bool, keys KeyLookup, logger *zap.Logger) *Gate {
	return &Gate{
		bypass: bypass,
		keys:   keys,
		logger: logger,
	}
}

// Authorize reports whether the request carries a credential accepted for
// the given secret set.
//
// An empty secret set authorizes everything: a deployment without
// configured secrets runs open.
func (g *Gate) Authorize(r *http.Request, allowedSecrets []string, opts Options) bool {
	if g.bypass {
		return true
	}

	secrets := NormalizeSecrets(allowedSecrets)
	if len(secrets) == 0 {
		g.logger.Debug("no secrets configured, authorizing open endpoint",
			zap.String("path", r.URL.Path),
		)
		return true
	}

	if opts.AllowLocalhost && isLoopback(r.RemoteAddr) {
		return true
	}

	token := ExtractToken(r)
	if token != "" {
		if _, ok := secrets[token]; ok {
			return true
		}
	}

	// Fall back to the per-user scoped key when the caller supplied a
	// Discord ID hint.
	if token != "" && opts.DiscordID != "" && g.keys != nil {
		key, err := g.keys.LookupAPIKey(r.Context(), opts.DiscordID)
		if err != nil {
			g.logger.Debug("api key lookup failed",
				zap.String("discord_id", opts.DiscordID),
				zap.Error(err),
			)
			return false
		}
		if key != "" && key == token {
			return true
		}
	}

	return false
}

// ExtractToken extracts the request credential using a fixed precedence:
// Authorization: Bearer, then named headers, then named query parameters.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}

	for _, name := range tokenHeaders {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}

	query := r.URL.Query()
	for _, name := range tokenQueryParams {
		if v := strings.TrimSpace(query.Get(name)); v != "" {
			return v
		}
	}

	return ""
}

// NormalizeSecrets turns raw configured secrets into a comparison set.
// Entries are split on commas, trimmed of whitespace and quotes, and
// deduplicated; empty entries are dropped.
func NormalizeSecrets(raw []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			part = strings.Trim(part, `"'`)
			part = strings.TrimSpace(part)
			if part != "" {
				out[part] = struct{}{}
			}
		}
	}
	return out
}

// isLoopback reports whether the remote address resolves to loopback.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
