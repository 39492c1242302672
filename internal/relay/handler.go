package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// Authorizer decides whether a user may join a room. Satisfied by the
// session manager.
type Authorizer interface {
	AuthorizeJoin(ctx context.Context, roomToken, userID string) (*types.SessionRecord, catalog.Role, error)
}

// NameLookup resolves display names for presence events.
type NameLookup interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// Handler upgrades authorized requests into room connections and pumps their
// frames through the registry.
type Handler struct {
	registry *Registry
	auth     Authorizer
	names    NameLookup
	cfg      config.WebSocketConfig
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewHandler(registry *Registry, auth Authorizer, names NameLookup, cfg config.WebSocketConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		registry: registry,
		auth:     auth,
		names:    names,
		cfg:      cfg,
		log:      logger.WithField("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin from the course frontend.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeRoom handles GET /ws/session/:room. Authorization runs before the
// upgrade so rejected callers get a plain HTTP status.
func (h *Handler) ServeRoom(c *gin.Context) {
	roomToken := c.Param("room")
	userID := principal(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	rec, role, err := h.auth.AuthorizeJoin(c.Request.Context(), roomToken, userID)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, types.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	userName, err := h.names.UserName(c.Request.Context(), userID)
	if err != nil {
		userName = userID
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := NewConnection(ws, userID, userName, string(role), rec.RoomToken, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	h.registry.Join(conn)
	h.readLoop(conn, ws)
}

// readLoop reads frames until the peer goes away, keeping the connection
// alive with pings and read deadlines refreshed on pong.
func (h *Handler) readLoop(conn *Connection, ws *websocket.Conn) {
	defer h.registry.Leave(conn)

	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			case <-conn.done:
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithField("user", conn.UserID()).WithError(err).Debug("websocket read error")
			}
			return
		}
		h.registry.Relay(conn, raw)
	}
}

// principal extracts the caller identity. Browser WebSocket clients cannot
// set headers, so a user_id query parameter is accepted as a fallback.
func principal(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}
