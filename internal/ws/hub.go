package ws

import (
	"sync"

	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

// Conn is the slice of a websocket connection the hub needs.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// frame is the envelope written to a live connection.
type frame struct {
	Event string              `json:"event"`
	Data  *model.Notification `json:"data"`
}

// Hub maps user ids to their single live connection and implements the
// aggregator's delivery sink. Pushing to a user without a connection is a
// silent no-op; durability lives in the store, not here.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]Conn
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *logger.Logger, metrics *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]Conn),
		logger:  logger,
		metrics: metrics,
	}
}

// Register binds a connection to a user, closing any previous one.
func (h *Hub) Register(userID string, c Conn) {
	h.mu.Lock()
	prev, ok := h.conns[userID]
	h.conns[userID] = c
	h.mu.Unlock()

	if ok && prev != c {
		prev.Close()
	}
	h.logger.Debug("connection registered", "user_id", userID)
}

// Unregister drops the user's connection if conn is still the active one.
func (h *Hub) Unregister(userID string, c Conn) {
	h.mu.Lock()
	if cur, ok := h.conns[userID]; ok && cur == c {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
}

// Push writes a notification frame to the user's live connection. A failed
// write evicts the connection; the notification itself is already durable.
func (h *Hub) Push(userID string, n *model.Notification) {
	h.mu.RLock()
	c, ok := h.conns[userID]
	h.mu.RUnlock()

	if !ok {
		h.metrics.PushesSkipped.Inc()
		return
	}

	if err := c.WriteJSON(frame{Event: "notification", Data: n}); err != nil {
		h.logger.Error(err, "failed to push notification", "user_id", userID)
		h.Unregister(userID, c)
		c.Close()
		return
	}
	h.metrics.PushesDelivered.Inc()
}
