package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
)

// wsConn adapts a websocket to the Conn interface. Notifications and pings
// share the socket, so writes are serialized with a mutex. done is closed on
// disconnect so the keepalive goroutine exits instead of parking on a
// stopped ticker.
type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Handler serves the per-user notification channel.
type Handler struct {
	notifier *Notifier
	cfg      config.WebSocketConfig
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewHandler(notifier *Notifier, cfg config.WebSocketConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		notifier: notifier,
		cfg:      cfg,
		log:      logger.WithField("component", "notify"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/notifications. The channel is one-way: inbound
// frames are read only to detect disconnect and keep the socket alive.
func (h *Handler) Serve(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		userID = c.Query("user_id")
	}
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := &wsConn{ws: ws, writeTimeout: h.cfg.WriteTimeout, done: make(chan struct{})}
	h.notifier.Subscribe(userID, conn)
	defer func() {
		h.notifier.Unsubscribe(userID, conn)
		conn.close()
	}()
	h.log.WithField("user", userID).Info("notification channel opened")

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
				if err := conn.ping(); err != nil {
					return
				}
			case <-conn.done:
				return
			}
		}
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.log.WithField("user", userID).Debug("notification channel closed")
			return
		}
	}
}
