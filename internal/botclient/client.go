// Package botclient is the resilient multi-endpoint client for the bot
// process: it polls liveness across the configured endpoints with
// circuit-breaker-style cooldowns, learns which endpoint answered last,
// and dispatches control commands. Liveness queries never fail the page
// render; they degrade to the last known good payload.
package botclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/config"
	"github.com/soundbridgehq/botbridge/internal/models"
)

// localFallbackHosts are appended last when no endpoint is configured and
// the local fallback escape hatch is enabled (non-production only).
var localFallbackHosts = []string{"http://127.0.0.1:4000", "http://localhost:4000"}

// Client polls bot liveness and dispatches control actions.
type Client struct {
	cfg      config.BotConfig
	http     *http.Client
	logger   *zap.Logger
	registry *registry

	// mu guards the status cache and the failure-log dedup map.
	// It is never held across a network call.
	mu         sync.Mutex
	status     *models.BotStatus
	presence   map[string]struct{}
	validUntil time.Time

	loggedFailures map[string]time.Time

	now func() time.Time
}

// NewClient creates a bot liveness client.
func NewClient(cfg config.BotConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{},
		logger:   logger,
		registry: newRegistry(),

		loggedFailures: make(map[string]time.Time),
		now:            time.Now,
	}
}

// GetBotStatus returns the bot's liveness payload. The result is cached
// for a short absolute TTL; when every candidate endpoint fails the last
// known good payload is returned (nil on true cold start), never an error.
func (c *Client) GetBotStatus(ctx context.Context) *models.BotStatus {
	c.mu.Lock()
	if c.status != nil && c.now().Before(c.validUntil) {
		status := c.status
		c.mu.Unlock()
		return status
	}
	cached := c.status
	c.mu.Unlock()

	for _, url := range c.statusCandidates() {
		status, err := c.fetchStatus(ctx, url)
		if err != nil {
			c.registry.markFailure(url, c.cfg.CooldownWindow)
			c.logger.Debug("bot status endpoint failed",
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}

		c.registry.markSuccess(url)

		c.mu.Lock()
		c.status = status
		c.presence = status.GuildIDSet()
		c.validUntil = c.now().Add(c.cfg.StatusCacheTTL)
		c.mu.Unlock()

		return status
	}

	// Every candidate failed: log once per distinct message per cooldown
	// window, extend the negative TTL so the next render does not retry
	// immediately, and serve the last known good payload.
	c.logFailureOnce("all bot status endpoints failed")

	c.mu.Lock()
	c.validUntil = c.now().Add(c.cfg.NegativeTTL)
	c.mu.Unlock()

	return cached
}

// GetBotGuildPresence returns the set of guild IDs the bot currently
// serves, derived from the latest status payload. On total endpoint
// failure the previously cached set is returned; an empty set on true
// cold start. Never returns nil.
func (c *Client) GetBotGuildPresence(ctx context.Context) map[string]struct{} {
	c.GetBotStatus(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]struct{}, len(c.presence))
	for id := range c.presence {
		out[id] = struct{}{}
	}
	return out
}

// SendBotControlAction POSTs a control command to the bot. Success is any
// 2xx from the first reachable endpoint; the same candidate and cooldown
// machinery as status polling applies.
func (c *Client) SendBotControlAction(ctx context.Context, action string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to encode control payload",
			zap.String("action", action),
			zap.Error(err),
		)
		return false
	}

	for _, url := range c.statusCandidates() {
		if err := c.postControl(ctx, url, action, body); err != nil {
			c.registry.markFailure(url, c.cfg.CooldownWindow)
			c.logger.Debug("bot control endpoint failed",
				zap.String("url", url),
				zap.String("action", action),
				zap.Error(err),
			)
			continue
		}

		c.registry.markSuccess(url)
		c.logger.Info("bot control action dispatched",
			zap.String("action", action),
		)
		return true
	}

	c.logFailureOnce(fmt.Sprintf("all bot control endpoints failed for action %q", action))
	return false
}

// TriggerRoutingRebalance asks the bot to rebalance player routing.
func (c *Client) TriggerRoutingRebalance(ctx context.Context, reason string) bool {
	return c.SendBotControlAction(ctx, "rebalance", map[string]string{"reason": reason})
}

// NotifySettingsChange tells the bot a guild's settings changed.
func (c *Client) NotifySettingsChange(ctx context.Context, guildID string) bool {
	return c.SendBotControlAction(ctx, "settings-changed", map[string]string{"guildId": guildID})
}

// statusCandidates builds the ordered, cooldown-filtered attempt list.
func (c *Client) statusCandidates() []string {
	var extras []string
	if c.cfg.StatusURL == "" && len(c.cfg.FallbackURLs) == 0 && c.cfg.LocalFallback {
		for _, host := range localFallbackHosts {
			extras = append(extras, host+c.cfg.StatusPath)
		}
	}
	return c.registry.candidates(c.cfg.StatusURL, c.cfg.FallbackURLs, extras)
}

// fetchStatus performs one bounded status probe against one endpoint.
func (c *Client) fetchStatus(ctx context.Context, url string) (*models.BotStatus, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status probe failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status models.BotStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status payload: %w", err)
	}

	return &status, nil
}

// postControl POSTs one control action to the control URL derived from a
// status endpoint.
func (c *Client) postControl(ctx context.Context, statusURL, action string, body []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	url := c.controlURL(statusURL, action)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("control post failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("control endpoint returned %d", resp.StatusCode)
	}

	return nil
}

// controlURL derives the control endpoint from a status endpoint by
// swapping the status path suffix for the control path and action.
func (c *Client) controlURL(statusURL, action string) string {
	base := statusURL
	if c.cfg.StatusPath != "" && strings.HasSuffix(base, c.cfg.StatusPath) {
		base = strings.TrimSuffix(base, c.cfg.StatusPath)
	}
	return base + c.cfg.ControlPath + "/" + action
}

// decorate attaches the bearer token to the request, duplicated into the
// alias header and query parameter recognized by heterogeneous bot
// deployments.
func (c *Client) decorate(req *http.Request) {
	if c.cfg.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-Bot-Token", c.cfg.Token)

	q := req.URL.Query()
	q.Set("token", c.cfg.Token)
	req.URL.RawQuery = q.Encode()
}

// logFailureOnce logs a total-failure message at most once per distinct
// message per cooldown window, so a down bot does not spam the log on
// every request.
func (c *Client) logFailureOnce(message string) {
	c.mu.Lock()
	last, seen := c.loggedFailures[message]
	shouldLog := !seen || c.now().Sub(last) >= c.cfg.CooldownWindow

	if shouldLog {
		c.loggedFailures[message] = c.now()
		// Opportunistic prune of stale entries
		for msg, at := range c.loggedFailures {
			if c.now().Sub(at) > 2*c.cfg.CooldownWindow {
				delete(c.loggedFailures, msg)
			}
		}
	}
	c.mu.Unlock()

	if shouldLog {
		c.logger.Warn(message,
			zap.String("preferred", c.registry.preferredURL()),
		)
	}
}
