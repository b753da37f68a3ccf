package fanout

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/models"
)

const (
	// Time allowed to write a snapshot to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checking is delegated to the session layer in front of this
	// handler; the bridge itself only authorizes by token.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket connection and streams the
// guild's snapshot updates until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, guildID string) {
	if !h.enabled {
		http.Error(w, "realtime updates are disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return
	}

	id, events := h.Subscribe(guildID)

	go h.writePump(conn, guildID, id, events)
	go h.readPump(conn, guildID, id)
}

// writePump pumps snapshots from the subscription channel to the peer.
func (h *Hub) writePump(conn *websocket.Conn, guildID, id string, events <-chan *models.QueueSnapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.Unsubscribe(guildID, id)
		_ = conn.Close()
	}()

	for {
		select {
		case snapshot, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				h.logger.Debug("websocket write failed, dropping subscriber",
					zap.String("guild_id", guildID),
					zap.String("subscriber_id", id),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pings/pongs and close frames are
// processed; inbound payloads are ignored.
func (h *Hub) readPump(conn *websocket.Conn, guildID, id string) {
	defer func() {
		h.Unsubscribe(guildID, id)
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
