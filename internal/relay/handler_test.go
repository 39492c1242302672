package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/logging"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// fakeAuth admits a fixed set of users into any room.
type fakeAuth struct {
	roles map[string]catalog.Role
}

func (f *fakeAuth) AuthorizeJoin(_ context.Context, roomToken, userID string) (*types.SessionRecord, catalog.Role, error) {
	if roomToken == "doubt_missing" {
		return nil, "", types.ErrNotFound
	}
	role, ok := f.roles[userID]
	if !ok {
		return nil, "", types.ErrUnauthorized
	}
	return &types.SessionRecord{RoomToken: roomToken, Status: types.StatusActive}, role, nil
}

type fakeNames struct{}

func (fakeNames) UserName(_ context.Context, userID string) (string, error) {
	return "name-" + userID, nil
}

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.WebSocketConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   16,
	}
	auth := &fakeAuth{roles: map[string]catalog.Role{
		"stu1": catalog.RoleStudent,
		"ins1": catalog.RoleInstructor,
	}}
	registry := NewRegistry(logging.Discard())
	handler := NewHandler(registry, auth, fakeNames{}, cfg, logging.Discard())

	engine := gin.New()
	engine.GET("/ws/session/:room", handler.ServeRoom)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, room, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {userID}})
	if err != nil {
		t.Fatalf("dial %s as %s: %v", room, userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return msg
}

func TestJoinRejectedBeforeUpgrade(t *testing.T) {
	srv := newRelayServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/doubt_room1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {"stranger"}})
	if err == nil {
		t.Fatal("expected handshake failure for unauthorized user")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %v, want 403", resp)
	}

	missing := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/doubt_missing"
	_, resp, err = websocket.DefaultDialer.Dial(missing, http.Header{"X-User-ID": {"stu1"}})
	if err == nil {
		t.Fatal("expected handshake failure for missing room")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %v, want 404", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %v, want 401", resp)
	}
}

func TestPresenceAndFanOut(t *testing.T) {
	srv := newRelayServer(t)
	student := dial(t, srv, "doubt_room1", "stu1")
	instructor := dial(t, srv, "doubt_room1", "ins1")

	joined := readEnvelope(t, student)
	if joined["type"] != types.EventPresenceJoined || joined["user_id"] != "ins1" {
		t.Fatalf("presence = %v", joined)
	}

	chat := map[string]interface{}{"type": "chat_message", "message": "any doubt?"}
	if err := instructor.WriteJSON(chat); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readEnvelope(t, student)
	if got["type"] != "chat_message" || got["message"] != "any doubt?" {
		t.Errorf("relayed = %v", got)
	}
	if got["sender_id"] != "ins1" || got["sender"] != "name-ins1" {
		t.Errorf("sender stamping = %v", got)
	}
	if _, ok := got["timestamp"]; !ok {
		t.Error("chat message should carry a timestamp")
	}

	// The sender must not receive its own message back.
	_ = instructor.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := instructor.ReadMessage(); err == nil {
		t.Error("sender received an echo")
	}
}

func TestUnknownMessageTypeDropped(t *testing.T) {
	srv := newRelayServer(t)
	student := dial(t, srv, "doubt_room1", "stu1")
	instructor := dial(t, srv, "doubt_room1", "ins1")
	readEnvelope(t, student) // instructor presence

	if err := instructor.WriteMessage(websocket.TextMessage, []byte(`{"type":"rm_rf"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := instructor.WriteJSON(map[string]interface{}{"type": "whiteboard_clear"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readEnvelope(t, student)
	if got["type"] != "whiteboard_clear" {
		t.Errorf("received %v, unknown type should have been dropped", got["type"])
	}
}

func TestPresenceLeftOnDisconnect(t *testing.T) {
	srv := newRelayServer(t)
	student := dial(t, srv, "doubt_room1", "stu1")
	instructor := dial(t, srv, "doubt_room1", "ins1")
	readEnvelope(t, student) // instructor presence

	_ = instructor.Close()

	left := readEnvelope(t, student)
	if left["type"] != types.EventPresenceLeft || left["user_id"] != "ins1" {
		t.Errorf("presence left = %v", left)
	}
}

func TestReconnectReplacesStaleConnection(t *testing.T) {
	srv := newRelayServer(t)
	stale := dial(t, srv, "doubt_room1", "stu1")
	instructor := dial(t, srv, "doubt_room1", "ins1")
	readEnvelope(t, stale) // instructor presence

	fresh := dial(t, srv, "doubt_room1", "stu1")

	// The replaced connection gets closed by the server.
	_ = stale.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := stale.ReadMessage(); err != nil {
			break
		}
	}

	// The peer sees the reconnect as a join, never as a departure.
	event := readEnvelope(t, instructor)
	if event["type"] != types.EventPresenceJoined || event["user_id"] != "stu1" {
		t.Fatalf("event after reconnect = %v, want presence:joined for stu1", event)
	}

	// The replacement connection carries traffic as usual.
	if err := fresh.WriteJSON(map[string]interface{}{"type": "chat_message", "message": "back"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readEnvelope(t, instructor)
	if got["type"] != "chat_message" || got["message"] != "back" {
		t.Fatalf("relayed = %v", got)
	}

	// No departure sneaks in behind the chat either.
	_ = instructor.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, raw, err := instructor.ReadMessage(); err == nil {
		t.Errorf("unexpected event after reconnect: %s", raw)
	}
}

func TestMessageToEmptyRoomIsDiscarded(t *testing.T) {
	srv := newRelayServer(t)
	student := dial(t, srv, "doubt_room1", "stu1")

	// Nobody else is in the room yet; the frame goes nowhere and is not
	// queued for later joiners.
	if err := student.WriteJSON(map[string]interface{}{"type": "chat_message", "message": "early"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Let the server's read loop process the frame before anyone joins.
	time.Sleep(100 * time.Millisecond)

	instructor := dial(t, srv, "doubt_room1", "ins1")
	readEnvelope(t, student) // instructor presence

	_ = instructor.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := instructor.ReadMessage(); err == nil {
		t.Error("late joiner received a message sent before it joined")
	}
}

func TestSignalingPayloadForwardedVerbatim(t *testing.T) {
	srv := newRelayServer(t)
	student := dial(t, srv, "doubt_room1", "stu1")
	instructor := dial(t, srv, "doubt_room1", "ins1")
	readEnvelope(t, student) // instructor presence

	offer := map[string]interface{}{
		"type":  "offer",
		"offer": map[string]interface{}{"sdp": "v=0...", "type": "offer"},
	}
	if err := instructor.WriteJSON(offer); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readEnvelope(t, student)
	payload, ok := got["offer"].(map[string]interface{})
	if !ok || payload["sdp"] != "v=0..." {
		t.Errorf("offer payload = %v", got["offer"])
	}
}
