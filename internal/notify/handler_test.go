package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/logging"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

func newNotifyServer(t *testing.T) (*httptest.Server, *Notifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.WebSocketConfig{
		PingInterval: 50 * time.Millisecond,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   16,
	}
	notifier := NewNotifier(logging.Discard())
	handler := NewHandler(notifier, cfg, logging.Discard())

	engine := gin.New()
	engine.GET("/ws/notifications", handler.Serve)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, notifier
}

func dialNotify(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {userID}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestServeDeliversNotifications(t *testing.T) {
	srv, notifier := newNotifyServer(t)
	conn := dialNotify(t, srv, "ins1")
	defer func() { _ = conn.Close() }()

	// Wait until the server-side subscription is registered.
	deadline := time.Now().Add(2 * time.Second)
	for notifier.subscriptionCount("ins1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	notifier.Notify("ins1", types.SessionNotification{
		Type:     types.EventSessionNotification,
		RoomName: "doubt_stu1_ins1_abc12345",
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event types.SessionNotification
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != types.EventSessionNotification || event.RoomName != "doubt_stu1_ins1_abc12345" {
		t.Errorf("event = %+v", event)
	}
}

// TestServeReleasesGoroutinesOnDisconnect churns connections and verifies
// the handler's goroutines (read loop and keepalive) unwind with each close.
func TestServeReleasesGoroutinesOnDisconnect(t *testing.T) {
	srv, notifier := newNotifyServer(t)
	before := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		conn := dialNotify(t, srv, "ins1")
		_ = conn.Close()
	}

	// Subscriptions disappearing shows the handlers have unwound.
	deadline := time.Now().Add(3 * time.Second)
	for notifier.subscriptionCount("ins1") != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if n := notifier.subscriptionCount("ins1"); n != 0 {
		t.Fatalf("subscriptions = %d after disconnects, want 0", n)
	}

	var after int
	for time.Now().Before(deadline) {
		runtime.GC()
		after = runtime.NumGoroutine()
		if after <= before+3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if after > before+3 {
		t.Errorf("goroutines = %d after churn, started at %d", after, before)
	}
}
