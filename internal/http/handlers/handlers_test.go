package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/preston-bernstein/gaffer-service/internal/app/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	domainsquads "github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
	"github.com/preston-bernstein/gaffer-service/internal/feed"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/teststubs"
	"github.com/preston-bernstein/gaffer-service/internal/testutil"
)

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/api/squad-status/{squadId}", h.SquadStatus)
	r.Post("/api/purchase/{squadId}", h.Purchase)
	r.Get("/api/players/{squadId}", h.Players)
	r.Post("/api/players/{squadId}", h.ReplacePlayers)
	r.Post("/api/squads/{squadId}/balance", h.Balance)
	r.Get("/api/squads/{squadId}/feed", h.Feed)
	return r
}

func newTestHandler(t *testing.T) (http.Handler, *squads.Service, *store.MemoryStore) {
	t.Helper()
	svc, ms := testutil.NewSquadService()
	return newTestRouter(NewHandler(svc, nil, nil)), svc, ms
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodGet, "/health", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	testutil.DecodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestHealthShuttingDownReturnsServiceUnavailable(t *testing.T) {
	h, _, _ := newTestHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	rr := testutil.ServeRequest(h, req)
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestReady(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rr := testutil.Serve(h, http.MethodGet, "/ready", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestReadyStoreDown(t *testing.T) {
	failing := &teststubs.FailingStore{
		Store: store.NewMemoryStore(),
		Err:   store.ErrUnavailable,
		Fail:  map[string]bool{"ping": true},
	}
	h := newTestRouter(NewHandler(squads.NewService(failing), nil, nil))

	rr := testutil.Serve(h, http.MethodGet, "/ready", nil)
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	var body errorBody
	testutil.DecodeJSON(t, rr, &body)
	if !strings.HasPrefix(body.Error, "store unavailable") {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestSquadStatusCreatesSquad(t *testing.T) {
	h, _, ms := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodGet, "/api/squad-status/123", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var status domainsquads.Status
	testutil.DecodeJSON(t, rr, &status)
	if status.SquadID != "123" || status.IsLicensed || !status.HasAccess {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.CreatedAt != testutil.Epoch.UnixMilli() {
		t.Fatalf("expected created_at at epoch, got %d", status.CreatedAt)
	}
	if _, err := ms.GetSquad(context.Background(), "123"); err != nil {
		t.Fatalf("expected squad stored, got %v", err)
	}
}

func TestSquadStatusInvalidID(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodGet, "/api/squad-status/abc", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var body errorBody
	testutil.DecodeJSON(t, rr, &body)
	if body.Error != "invalid squad id" {
		t.Fatalf("unexpected error %q", body.Error)
	}
}

func TestPurchaseLicensesSquad(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodPost, "/api/purchase/77", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var resp map[string]bool
	testutil.DecodeJSON(t, rr, &resp)
	if !resp["success"] {
		t.Fatalf("expected success, got %+v", resp)
	}

	rr = testutil.Serve(h, http.MethodGet, "/api/squad-status/77", nil)
	var status domainsquads.Status
	testutil.DecodeJSON(t, rr, &status)
	if !status.IsLicensed || !status.HasAccess {
		t.Fatalf("expected licensed squad, got %+v", status)
	}
}

func TestPlayersEmptyRosterIsArray(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodGet, "/api/players/5", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestReplacePlayersRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `[{"id":"a","name":"Alex","rating":9,"position":"DEFENCE","isSelected":true},` +
		`{"id":"b","name":"Billie","rating":4,"position":"ATTACK","isSelected":false}]`

	rr := testutil.Serve(h, http.MethodPost, "/api/players/5", strings.NewReader(body))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.Serve(h, http.MethodGet, "/api/players/5", nil)
	var got []players.Player
	testutil.DecodeJSON(t, rr, &got)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" || got[1].IsSelected {
		t.Fatalf("unexpected roster %+v", got)
	}
}

func TestReplacePlayersAcceptsPositionLabels(t *testing.T) {
	h, _, ms := newTestHandler(t)
	body := `[{"id":"a","name":"Alex","rating":9,"position":"Defence","isSelected":true},` +
		`{"id":"b","name":"Billie","rating":4,"position":"mid","isSelected":true}]`

	rr := testutil.Serve(h, http.MethodPost, "/api/players/5", strings.NewReader(body))
	testutil.AssertStatus(t, rr, http.StatusOK)

	list, _ := ms.Players(context.Background(), "5")
	if len(list) != 2 || list[0].Position != players.Defence || list[1].Position != players.Midfield {
		t.Fatalf("expected canonical positions stored, got %+v", list)
	}
}

func TestReplacePlayersRejectsInvalidRoster(t *testing.T) {
	h, _, ms := newTestHandler(t)
	body := `[{"id":"a","name":"Alex","rating":11,"position":"DEFENCE","isSelected":true}]`

	rr := testutil.Serve(h, http.MethodPost, "/api/players/5", strings.NewReader(body))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var resp errorBody
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Error != "invalid roster" || len(resp.Details) == 0 {
		t.Fatalf("expected validation details, got %+v", resp)
	}
	if list, _ := ms.Players(context.Background(), "5"); len(list) != 0 {
		t.Fatalf("expected nothing stored, got %+v", list)
	}
}

func TestReplacePlayersRejectsBadJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)

	cases := []string{"", "{", `{"id":"a"}`, `[{"rating":"high"}]`, "[] []"}
	for _, body := range cases {
		rr := testutil.Serve(h, http.MethodPost, "/api/players/5", strings.NewReader(body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestReplacePlayersInvalidIDSkipsBody(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rr := testutil.Serve(h, http.MethodPost, "/api/players/x1", strings.NewReader("not json"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var resp errorBody
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Error != "invalid squad id" {
		t.Fatalf("expected squad id error first, got %q", resp.Error)
	}
}

func TestBalanceInsufficientPlayers(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	if err := svc.ReplacePlayers(context.Background(), "9", []players.Player{testutil.SamplePlayer("solo")}); err != nil {
		t.Fatalf("seed roster: %v", err)
	}

	rr := testutil.Serve(h, http.MethodPost, "/api/squads/9/balance", nil)
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestBalanceWithSeedIsReproducible(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	if err := svc.ReplacePlayers(context.Background(), "9", testutil.SampleRoster()); err != nil {
		t.Fatalf("seed roster: %v", err)
	}

	var first, second balanceResponse
	rr := testutil.Serve(h, http.MethodPost, "/api/squads/9/balance?seed=42", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.DecodeJSON(t, rr, &first)
	rr = testutil.Serve(h, http.MethodPost, "/api/squads/9/balance?seed=42", nil)
	testutil.DecodeJSON(t, rr, &second)

	for i := range first.Teams {
		if teamKey(first.Teams[i]) != teamKey(second.Teams[i]) {
			t.Fatalf("team %d differs between runs: %v vs %v", i, teamKey(first.Teams[i]), teamKey(second.Teams[i]))
		}
	}
	one, two := first.Teams[0], first.Teams[1]
	if len(one.Players) != 3 || len(two.Players) != 3 {
		t.Fatalf("expected 3v3, got %d v %d", len(one.Players), len(two.Players))
	}
	if one.TotalRating+two.TotalRating != 45 {
		t.Fatalf("expected all ratings assigned, got %d+%d", one.TotalRating, two.TotalRating)
	}
	if one.Name == two.Name {
		t.Fatalf("expected distinct team names, got %s", one.Name)
	}
}

func TestBalanceInvalidSeed(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rr := testutil.Serve(h, http.MethodPost, "/api/squads/9/balance?seed=abc", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestFeedDisabledWithoutHub(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rr := testutil.Serve(h, http.MethodGet, "/api/squads/9/feed", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestFeedInvalidID(t *testing.T) {
	svc, _ := testutil.NewSquadService()
	hub := feed.NewHub()
	defer hub.Close()
	h := newTestRouter(NewHandler(svc, hub, nil))

	rr := testutil.Serve(h, http.MethodGet, "/api/squads/nine/feed", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := testutil.Serve(h, http.MethodGet, "/nope", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json 404, got %s", got)
	}

	rr = testutil.Serve(h, http.MethodDelete, "/api/players/5", nil)
	testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"unavailable", store.ErrUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"validation", &players.ValidationError{Problems: []string{"x"}}, http.StatusBadRequest},
		{"other", context.Canceled, http.StatusServiceUnavailable},
	}
	logger, _ := testutil.NewBufferLogger()
	h := &Handler{logger: logger}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rr.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rr.Code)
		}
	}

	logger, buf := testutil.NewBufferLogger()
	h = &Handler{logger: logger}
	rr := httptest.NewRecorder()
	h.writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errUnexpected)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "request failed") {
		t.Fatalf("expected unexpected errors logged, got %q", buf.String())
	}
	if strings.Contains(rr.Body.String(), errUnexpected.Error()) {
		t.Fatalf("expected internal error detail hidden, got %s", rr.Body.String())
	}
}

type unexpectedError struct{}

func (unexpectedError) Error() string { return "disk on fire" }

var errUnexpected error = unexpectedError{}

func teamKey(team teams.Team) string {
	ids := make([]string, 0, len(team.Players))
	for _, p := range team.Players {
		ids = append(ids, p.ID)
	}
	return team.Name + ":" + strings.Join(ids, ",")
}
