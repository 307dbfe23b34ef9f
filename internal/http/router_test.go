package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/gaffer-service/internal/app/squads"
	"github.com/preston-bernstein/gaffer-service/internal/feed"
	"github.com/preston-bernstein/gaffer-service/internal/http/handlers"
	"github.com/preston-bernstein/gaffer-service/internal/testutil"
)

func newTestRouter(t *testing.T, origins ...string) (nethttp.Handler, *feed.Hub) {
	t.Helper()
	logger, _ := testutil.NewBufferLogger()
	hub := feed.NewHub(feed.WithLogger(logger), feed.WithAllowedOrigins(origins))
	t.Cleanup(hub.Close)
	svc, _ := testutil.NewSquadService(squads.WithPublisher(hub))
	h := handlers.NewHandler(svc, hub, logger)
	return NewRouter(h, RouterConfig{Logger: logger, AllowedOrigins: origins}), hub
}

func TestRouterRoutesKnownPaths(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{nethttp.MethodGet, "/health", nethttp.StatusOK},
		{nethttp.MethodGet, "/ready", nethttp.StatusOK},
		{nethttp.MethodGet, "/api/squad-status/123", nethttp.StatusOK},
		{nethttp.MethodPost, "/api/purchase/123", nethttp.StatusOK},
		{nethttp.MethodGet, "/api/players/123", nethttp.StatusOK},
		{nethttp.MethodPost, "/api/squads/123/balance", nethttp.StatusUnprocessableEntity},
		{nethttp.MethodGet, "/api/squad-status/12a", nethttp.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := testutil.Serve(router, tc.method, tc.path, nil)
		if rr.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: expected request id header", tc.method, tc.path)
		}
	}
}

func TestRouterUnknownRouteReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.Serve(router, nethttp.MethodGet, "/does-not-exist", nil)
	testutil.AssertStatus(t, rr, nethttp.StatusNotFound)

	var body map[string]string
	testutil.DecodeJSON(t, rr, &body)
	if body["error"] != "not found" || body["requestId"] == "" {
		t.Fatalf("unexpected 404 body %+v", body)
	}
}

func TestRouterWrongMethodReturns405(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := testutil.Serve(router, nethttp.MethodPut, "/api/players/1", nil)
	testutil.AssertStatus(t, rr, nethttp.StatusMethodNotAllowed)
}

func TestRouterPropagatesRequestID(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/api/squad-status/nope", nil)
	req.Header.Set("X-Request-ID", "req-42")

	rr := testutil.ServeRequest(router, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if !strings.Contains(rr.Body.String(), `"requestId":"req-42"`) {
		t.Fatalf("expected request id in error body, got %s", rr.Body.String())
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, "http://app.test")

	req := httptest.NewRequest(nethttp.MethodOptions, "/api/players/1", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", nethttp.MethodPost)
	rr := testutil.ServeRequest(router, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(nethttp.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rr = testutil.ServeRequest(router, req)
	testutil.AssertStatus(t, rr, nethttp.StatusOK)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestRouterFeedReceivesRosterReplacements(t *testing.T) {
	router, hub := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/squads/321/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers("321") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	body := `[{"id":"a","name":"Alex","rating":9,"position":"DEFENCE","isSelected":true}]`
	resp, err := nethttp.Post(srv.URL+"/api/players/321", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post roster: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200 from replace, got %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	var msg feed.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode feed message: %v", err)
	}
	if msg.Type != feed.MessageTypeRoster || msg.SquadID != "321" || len(msg.Players) != 1 || msg.Players[0].Name != "Alex" {
		t.Fatalf("unexpected feed message %+v", msg)
	}
}
