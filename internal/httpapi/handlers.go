// Package httpapi exposes the bridge's HTTP surface: the producer
// ingestion endpoint, the consumer read endpoints, the bot liveness and
// control views, and the websocket subscription for realtime updates.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/authgate"
	"github.com/soundbridgehq/botbridge/internal/config"
	"github.com/soundbridgehq/botbridge/internal/fanout"
	"github.com/soundbridgehq/botbridge/internal/models"
)

// maxIngestBody bounds producer payloads.
const maxIngestBody = 1 << 20

// SnapshotCache is the queue snapshot cache consumed by the handlers.
type SnapshotCache interface {
	SetQueueSnapshot(ctx context.Context, snapshot *models.QueueSnapshot) error
	GetQueueSnapshot(ctx context.Context, guildID string) *models.QueueSnapshot
}

// BotClient is the liveness/control client consumed by the handlers.
type BotClient interface {
	GetBotStatus(ctx context.Context) *models.BotStatus
	GetBotGuildPresence(ctx context.Context) map[string]struct{}
	SendBotControlAction(ctx context.Context, action string, payload any) bool
}

// HealthChecker reports on the durable store backing the cache.
type HealthChecker interface {
	Health(ctx context.Context) error
	SnapshotStats(ctx context.Context) (map[string]int64, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	gate     *authgate.Gate
	cache    SnapshotCache
	bot      BotClient
	hub      *fanout.Hub
	health   HealthChecker
	security config.SecurityConfig
	logger   *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(gate *authgate.Gate, cache SnapshotCache, bot BotClient, hub *fanout.Hub, health HealthChecker, security config.SecurityConfig, logger *zap.Logger) *Handlers {
	return &Handlers{
		gate:     gate,
		cache:    cache,
		bot:      bot,
		hub:      hub,
		health:   health,
		security: security,
		logger:   logger,
	}
}

// HealthHandler reports control-plane liveness plus cache and fanout stats.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}

	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			h.logger.Warn("store health check failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["store"] = "unavailable"
		} else if stats, err := h.health.SnapshotStats(r.Context()); err == nil {
			resp["snapshots"] = stats
		}
	}

	if h.hub != nil {
		resp["fanout"] = h.hub.Stats()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// IngestQueueHandler accepts a queue snapshot pushed by the bot process.
// The payload is normalized defensively before it reaches the cache; a
// malformed payload is discarded without touching stored state.
func (h *Handlers) IngestQueueHandler(w http.ResponseWriter, r *http.Request) {
	if !h.gate.Authorize(r, h.security.IngestSecrets, authgate.Options{AllowLocalhost: h.security.AllowLocalhost}) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload models.SnapshotPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err := decoder.Decode(&payload); err != nil {
		h.logger.Warn("discarding malformed queue payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	snapshot := payload.Normalize()
	if snapshot.GuildID == "" {
		h.writeError(w, http.StatusBadRequest, "guildId is required")
		return
	}

	if err := h.cache.SetQueueSnapshot(r.Context(), snapshot); err != nil {
		h.logger.Error("failed to store queue snapshot",
			zap.String("guild_id", snapshot.GuildID),
			zap.Error(err),
		)
		h.writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetQueueHandler returns a guild's current snapshot, or the cold-start
// placeholder. Never a 5xx for "no data yet".
func (h *Handlers) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	if guildID == "" {
		h.writeError(w, http.StatusBadRequest, "guildID is required")
		return
	}

	opts := authgate.Options{
		AllowLocalhost: h.security.AllowLocalhost,
		DiscordID:      r.URL.Query().Get("discordId"),
	}
	if !h.gate.Authorize(r, h.security.ReadSecrets, opts) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snapshot := h.cache.GetQueueSnapshot(r.Context(), guildID)
	h.writeJSON(w, http.StatusOK, snapshot)
}

// BotStatusHandler returns the bot's liveness payload, degrading to a
// minimal offline document when nothing has ever been retrieved.
func (h *Handlers) BotStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.bot.GetBotStatus(r.Context())
	if status == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"online": false,
			"reason": "unreachable",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// BotGuildsHandler returns the sorted set of guild IDs the bot serves.
func (h *Handlers) BotGuildsHandler(w http.ResponseWriter, r *http.Request) {
	presence := h.bot.GetBotGuildPresence(r.Context())

	guilds := make([]string, 0, len(presence))
	for id := range presence {
		guilds = append(guilds, id)
	}
	sort.Strings(guilds)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"guilds": guilds,
		"count":  len(guilds),
	})
}

// BotControlHandler forwards a control action to the bot process.
func (h *Handlers) BotControlHandler(w http.ResponseWriter, r *http.Request) {
	if !h.gate.Authorize(r, h.security.IngestSecrets, authgate.Options{AllowLocalhost: h.security.AllowLocalhost}) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	action := r.PathValue("action")
	if action == "" {
		h.writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody)).Decode(&payload); err != nil {
		// An empty body is a valid no-payload action
		payload = json.RawMessage(`{}`)
	}

	if ok := h.bot.SendBotControlAction(r.Context(), action, payload); !ok {
		h.writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// QueueStreamHandler upgrades to a websocket subscribed to a guild's
// snapshot updates.
func (h *Handlers) QueueStreamHandler(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	if guildID == "" {
		h.writeError(w, http.StatusBadRequest, "guildID is required")
		return
	}

	opts := authgate.Options{
		AllowLocalhost: h.security.AllowLocalhost,
		DiscordID:      r.URL.Query().Get("discordId"),
	}
	if !h.gate.Authorize(r, h.security.ReadSecrets, opts) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.hub.ServeWS(w, r, guildID)
}

// writeJSON writes a JSON response body
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// writeError writes a JSON error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
