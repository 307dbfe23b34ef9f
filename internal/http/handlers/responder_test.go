package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preston-bernstein/gaffer-service/internal/http/middleware"
	"github.com/preston-bernstein/gaffer-service/internal/testutil"
)

func TestWriteErrorDetailsBody(t *testing.T) {
	cases := []struct {
		name    string
		details []string
		header  string
		wrap    bool
		wantID  string
	}{
		{name: "details listed", details: []string{"player 1: rating 11 outside 1..10", "player 2: name is required"}},
		{name: "request id from context", wrap: true, header: "ctx-42", wantID: "ctx-42"},
		{name: "request id from header", header: "header-id", wantID: "header-id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := testutil.NewBufferLogger()
			var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeErrorDetails(w, r, http.StatusBadRequest, "invalid roster", tc.details, logger)
			})
			if tc.wrap {
				h = middleware.LoggingMiddleware(logger, nil, h)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/players/5", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}

			rr := testutil.ServeRequest(h, req)
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			if got := rr.Header().Get("Content-Type"); got != "application/json" {
				t.Fatalf("expected content type json, got %s", got)
			}
			var body errorBody
			testutil.DecodeJSON(t, rr, &body)
			if body.Error != "invalid roster" || body.RequestID != tc.wantID {
				t.Fatalf("unexpected body %+v", body)
			}
			if len(body.Details) != len(tc.details) {
				t.Fatalf("expected details %v, got %v", tc.details, body.Details)
			}
			for i := range tc.details {
				if body.Details[i] != tc.details[i] {
					t.Fatalf("expected details %v, got %v", tc.details, body.Details)
				}
			}
		})
	}
}

func TestWriteErrorOmitsEmptyDetails(t *testing.T) {
	logger, _ := testutil.NewBufferLogger()
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/api/players/5", nil), http.StatusNotFound, "not found", logger)

	if got := rr.Body.String(); got != "{\"error\":\"not found\"}\n" {
		t.Fatalf("expected bare error body, got %q", got)
	}
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := testutil.Serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, make(chan int), logger)
	}), http.MethodGet, "/encode-error", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status written even on encode error, got %d", rr.Code)
	}
	testutil.AssertLogged(t, buf, "encode")
}
