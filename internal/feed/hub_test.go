package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

func newFeedServer(t *testing.T, h *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPublishReachesSquadSubscribers(t *testing.T) {
	h := NewHub()
	base := newFeedServer(t, h)
	a := dial(t, base+"/123", nil)
	b := dial(t, base+"/123", nil)
	other := dial(t, base+"/456", nil)
	waitFor(t, func() bool { return h.Subscribers("123") == 2 && h.Subscribers("456") == 1 })

	list := []players.Player{{ID: "p1", Name: "Kim", Rating: 7, Position: players.Attack, IsSelected: true}}
	h.Publish("123", list)

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != MessageTypeRoster || msg.SquadID != "123" || len(msg.Players) != 1 || msg.Players[0] != list[0] {
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	_ = other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatalf("expected no message for another squad")
	}
}

func TestPublishEncodesEmptyRosterAsArray(t *testing.T) {
	h := NewHub()
	conn := dial(t, newFeedServer(t, h)+"/9", nil)
	waitFor(t, func() bool { return h.Subscribers("9") == 1 })

	h.Publish("9", nil)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["players"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["players"])
	}
}

func TestDisconnectedSubscriberIsRemoved(t *testing.T) {
	h := NewHub()
	conn := dial(t, newFeedServer(t, h)+"/123", nil)
	waitFor(t, func() bool { return h.Subscribers("123") == 1 })

	conn.Close()
	waitFor(t, func() bool { return h.Subscribers("123") == 0 })
	h.Publish("123", nil)
}

func TestAllowedOrigins(t *testing.T) {
	h := NewHub(WithAllowedOrigins([]string{"https://gaffer.example"}))
	base := newFeedServer(t, h)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(base+"/1", header); err == nil {
		t.Fatalf("expected handshake to be rejected")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	header.Set("Origin", "https://gaffer.example")
	dial(t, base+"/1", header)
	waitFor(t, func() bool { return h.Subscribers("1") == 1 })
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	h := NewHub()
	conn := dial(t, newFeedServer(t, h)+"/5", nil)
	waitFor(t, func() bool { return h.Subscribers("5") == 1 })

	h.Close()
	if h.Subscribers("5") != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}
