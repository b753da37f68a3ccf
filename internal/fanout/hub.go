// Package fanout broadcasts queue snapshot updates to subscribed browser
// sessions grouped by guild. Delivery is best-effort: a full or failed
// subscriber never blocks the producer, and a broadcast failure never
// propagates to the cache write that triggered it.
package fanout

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/models"
)

// Hub manages per-guild subscriber channels.
type Hub struct {
	logger *zap.Logger

	// Map of guildID -> *subscriberSet
	subscriptions sync.Map

	bufferSize int
	enabled    bool
}

// subscriberSet holds the event channels subscribed to one guild.
type subscriberSet struct {
	mu   sync.RWMutex
	subs map[string]chan *models.QueueSnapshot
}

// NewHub creates a fanout hub. bufferSize is the per-subscriber channel
// buffer; events beyond it are dropped rather than blocking the sender.
func NewHub(logger *zap.Logger, bufferSize int, enabled bool) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		logger:     logger,
		bufferSize: bufferSize,
		enabled:    enabled,
	}
}

// IsEnabled returns whether realtime fanout is enabled.
func (h *Hub) IsEnabled() bool {
	return h.enabled
}

// Subscribe registers a new subscriber for a guild's snapshot updates.
// Returns the subscriber ID (needed to unsubscribe) and the event channel.
func (h *Hub) Subscribe(guildID string) (string, <-chan *models.QueueSnapshot) {
	id := uuid.NewString()
	ch := make(chan *models.QueueSnapshot, h.bufferSize)

	setInterface, _ := h.subscriptions.LoadOrStore(guildID, &subscriberSet{
		subs: make(map[string]chan *models.QueueSnapshot),
	})
	set := setInterface.(*subscriberSet)

	set.mu.Lock()
	set.subs[id] = ch
	set.mu.Unlock()

	h.logger.Debug("subscriber registered",
		zap.String("guild_id", guildID),
		zap.String("subscriber_id", id),
	)

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(guildID, id string) {
	setInterface, ok := h.subscriptions.Load(guildID)
	if !ok {
		return
	}
	set := setInterface.(*subscriberSet)

	set.mu.Lock()
	ch, exists := set.subs[id]
	if exists {
		delete(set.subs, id)
		close(ch)
	}
	isEmpty := len(set.subs) == 0
	set.mu.Unlock()

	// Remove subscriber set if empty
	if isEmpty {
		h.subscriptions.Delete(guildID)
	}

	if exists {
		h.logger.Debug("subscriber removed",
			zap.String("guild_id", guildID),
			zap.String("subscriber_id", id),
		)
	}
}

// Broadcast delivers a snapshot to every subscriber of its guild.
// Sends are non-blocking; a slow consumer's event is dropped.
func (h *Hub) Broadcast(snapshot *models.QueueSnapshot) {
	if !h.enabled || snapshot == nil {
		return
	}

	setInterface, ok := h.subscriptions.Load(snapshot.GuildID)
	if !ok {
		return
	}
	set := setInterface.(*subscriberSet)

	set.mu.RLock()
	defer set.mu.RUnlock()

	h.logger.Debug("broadcasting snapshot to subscribers",
		zap.String("guild_id", snapshot.GuildID),
		zap.Int("subscriber_count", len(set.subs)),
	)

	for id, ch := range set.subs {
		select {
		case ch <- snapshot:
		default:
			h.logger.Warn("subscriber channel full, dropping snapshot",
				zap.String("guild_id", snapshot.GuildID),
				zap.String("subscriber_id", id),
			)
		}
	}
}

// SubscriberCount returns the number of subscribers for a guild.
func (h *Hub) SubscriberCount(guildID string) int {
	setInterface, ok := h.subscriptions.Load(guildID)
	if !ok {
		return 0
	}
	set := setInterface.(*subscriberSet)

	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.subs)
}

// Stats returns counts of guilds with subscribers and total subscribers.
func (h *Hub) Stats() map[string]int {
	stats := map[string]int{"guilds": 0, "subscribers": 0}

	h.subscriptions.Range(func(_, value interface{}) bool {
		set := value.(*subscriberSet)
		set.mu.RLock()
		stats["guilds"]++
		stats["subscribers"] += len(set.subs)
		set.mu.RUnlock()
		return true
	})

	return stats
}

// Shutdown closes every subscriber channel.
func (h *Hub) Shutdown() {
	h.logger.Info("shutting down fanout hub")

	h.subscriptions.Range(func(key, value interface{}) bool {
		set := value.(*subscriberSet)
		set.mu.Lock()
		for id, ch := range set.subs {
			close(ch)
			delete(set.subs, id)
		}
		set.mu.Unlock()
		h.subscriptions.Delete(key)
		return true
	})
}
