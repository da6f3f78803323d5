package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin; access control happens at the
	// token layer, not the websocket handshake.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades websocket connections and keeps them registered on the
// hub for the lifetime of the socket. The recipient is identified by the
// user_id handshake query parameter.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Serve)
}

func (h *Handler) Serve(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	h.hub.Register(userID, conn)

	go func() {
		defer func() {
			h.hub.Unregister(userID, conn)
			conn.Close()
		}()
		for {
			// The client never sends application data; reading just
			// detects disconnects and handles control frames.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
