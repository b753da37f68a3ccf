package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/authgate"
	"github.com/soundbridgehq/botbridge/internal/config"
	"github.com/soundbridgehq/botbridge/internal/fanout"
	"github.com/soundbridgehq/botbridge/internal/models"
)

type fakeCache struct {
	stored  []*models.QueueSnapshot
	setErr  error
	current *models.QueueSnapshot
}

func (f *fakeCache) SetQueueSnapshot(_ context.Context, snapshot *models.QueueSnapshot) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.stored = append(f.stored, snapshot)
	return nil
}

func (f *fakeCache) GetQueueSnapshot(_ context.Context, guildID string) *models.QueueSnapshot {
	if f.current != nil {
		return f.current
	}
	return models.ColdStartSnapshot(guildID)
}

type fakeBot struct {
	status   *models.BotStatus
	presence map[string]struct{}
	actions  []string
	ok       bool
}

func (f *fakeBot) GetBotStatus(_ context.Context) *models.BotStatus { return f.status }

func (f *fakeBot) GetBotGuildPresence(_ context.Context) map[string]struct{} {
	if f.presence == nil {
		return map[string]struct{}{}
	}
	return f.presence
}

func (f *fakeBot) SendBotControlAction(_ context.Context, action string, _ any) bool {
	f.actions = append(f.actions, action)
	return f.ok
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Health(_ context.Context) error { return f.err }

func (f *fakeHealth) SnapshotStats(_ context.Context) (map[string]int64, error) {
	return map[string]int64{"snapshots_total": 2, "snapshots_live": 1, "snapshots_expired": 1}, nil
}

type fixture struct {
	cache *fakeCache
	bot   *fakeBot
	hub   *fanout.Hub
	mux   *http.ServeMux
}

func newFixture(security config.SecurityConfig) *fixture {
	logger := zap.NewNop()
	cache := &fakeCache{}
	bot := &fakeBot{ok: true}
	hub := fanout.NewHub(logger, 4, true)
	gate := authgate.NewGate(false, nil, logger)
	handlers := NewHandlers(gate, cache, bot, hub, &fakeHealth{}, security, logger)

	return &fixture{cache: cache, bot: bot, hub: hub, mux: NewRouter(handlers)}
}

func openSecurity() config.SecurityConfig {
	return config.SecurityConfig{}
}

func secureSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		IngestSecrets: []string{"ingest-secret"},
		ReadSecrets:   []string{"read-secret"},
	}
}

func TestIngestQueue_StoresNormalizedSnapshot(t *testing.T) {
	fx := newFixture(secureSecurity())

	body := `{"guildId":"g1","queue":[{"title":"Song"}],"updatedAt":1700000000000}`
	req := httptest.NewRequest("POST", "/api/queue", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer ingest-secret")
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, fx.cache.stored, 1)
	snap := fx.cache.stored[0]
	assert.Equal(t, "g1", snap.GuildID)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "Song", snap.Queue[0].Title)
	assert.Equal(t, "Unknown", snap.Queue[0].Author)
	assert.Equal(t, int64(0), snap.Queue[0].DurationMS)
}

func TestIngestQueue_Unauthorized(t *testing.T) {
	fx := newFixture(secureSecurity())

	req := httptest.NewRequest("POST", "/api/queue", strings.NewReader(`{"guildId":"g1"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fx.cache.stored)
}

func TestIngestQueue_MalformedPayloadDiscarded(t *testing.T) {
	fx := newFixture(openSecurity())

	req := httptest.NewRequest("POST", "/api/queue", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fx.cache.stored)
}

func TestIngestQueue_MissingGuildID(t *testing.T) {
	fx := newFixture(openSecurity())

	req := httptest.NewRequest("POST", "/api/queue", strings.NewReader(`{"queue":[]}`))
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestQueue_StoreUnavailable(t *testing.T) {
	fx := newFixture(openSecurity())
	fx.cache.setErr = errors.New("store down")

	req := httptest.NewRequest("POST", "/api/queue", strings.NewReader(`{"guildId":"g1"}`))
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetQueue_ColdStartIsNever5xx(t *testing.T) {
	fx := newFixture(openSecurity())

	req := httptest.NewRequest("GET", "/api/queue/g1", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "g1", snap.GuildID)
	assert.Equal(t, models.ReasonColdStart, snap.Metadata["reason"])
	assert.Empty(t, snap.Queue)
}

func TestGetQueue_ReturnsCurrentSnapshot(t *testing.T) {
	fx := newFixture(secureSecurity())
	fx.cache.current = &models.QueueSnapshot{
		GuildID:   "g1",
		Queue:     []models.Track{{Title: "Song", Author: "Artist"}},
		UpdatedAt: time.Now().UTC(),
	}

	req := httptest.NewRequest("GET", "/api/queue/g1?token=read-secret", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "Song", snap.Queue[0].Title)
}

func TestGetQueue_Unauthorized(t *testing.T) {
	fx := newFixture(secureSecurity())

	req := httptest.NewRequest("GET", "/api/queue/g1", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBotStatus_Degraded(t *testing.T) {
	fx := newFixture(openSecurity())

	req := httptest.NewRequest("GET", "/api/bot/status", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["online"])
	assert.Equal(t, "unreachable", body["reason"])
}

func TestBotStatus_Live(t *testing.T) {
	fx := newFixture(openSecurity())
	fx.bot.status = &models.BotStatus{Online: true, GuildCount: 4}

	req := httptest.NewRequest("GET", "/api/bot/status", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.BotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Online)
	assert.Equal(t, 4, status.GuildCount)
}

func TestBotGuilds_SortedList(t *testing.T) {
	fx := newFixture(openSecurity())
	fx.bot.presence = map[string]struct{}{"222": {}, "111": {}}

	req := httptest.NewRequest("GET", "/api/bot/guilds", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Guilds []string `json:"guilds"`
		Count  int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"111", "222"}, body.Guilds)
	assert.Equal(t, 2, body.Count)
}

func TestBotControl(t *testing.T) {
	fx := newFixture(secureSecurity())

	req := httptest.NewRequest("POST", "/api/bot/control/pause", strings.NewReader(`{"guildId":"g1"}`))
	req.Header.Set("Authorization", "Bearer ingest-secret")
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pause"}, fx.bot.actions)
}

func TestBotControl_DispatchFailure(t *testing.T) {
	fx := newFixture(openSecurity())
	fx.bot.ok = false

	req := httptest.NewRequest("POST", "/api/bot/control/pause", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealth(t *testing.T) {
	fx := newFixture(openSecurity())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "snapshots")
	assert.Contains(t, body, "fanout")
}

func TestQueueStream_DeliversBroadcasts(t *testing.T) {
	fx := newFixture(openSecurity())

	srv := httptest.NewServer(fx.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/queue/g1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = resp.Body.Close() }()

	// Wait for the subscription to register before broadcasting
	deadline := time.Now().Add(2 * time.Second)
	for fx.hub.SubscriberCount("g1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, fx.hub.SubscriberCount("g1"))

	sent := &models.QueueSnapshot{
		GuildID:   "g1",
		Queue:     []models.Track{{Title: "Song", Author: "Artist"}},
		UpdatedAt: time.Now().UTC(),
	}
	fx.hub.Broadcast(sent)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got models.QueueSnapshot
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "g1", got.GuildID)
	require.Len(t, got.Queue, 1)
	assert.Equal(t, "Song", got.Queue[0].Title)
}

func TestQueueStream_Unauthorized(t *testing.T) {
	fx := newFixture(secureSecurity())

	req := httptest.NewRequest("GET", "/ws/queue/g1", nil)
	rec := httptest.NewRecorder()

	fx.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
