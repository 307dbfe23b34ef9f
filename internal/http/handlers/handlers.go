package handlers

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/preston-bernstein/gaffer-service/internal/app/squads"
	"github.com/preston-bernstein/gaffer-service/internal/balance"
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	domainsquads "github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
	"github.com/preston-bernstein/gaffer-service/internal/feed"
	"github.com/preston-bernstein/gaffer-service/internal/http/requestutil"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/store"
)

// ParamSquadID is the chi URL parameter carrying the squad id.
const ParamSquadID = "squadId"

const readyTimeout = 2 * time.Second

// Handler wires HTTP routes to the squad service.
type Handler struct {
	svc    *squads.Service
	feed   *feed.Hub
	logger *slog.Logger
}

// NewHandler constructs a Handler. hub may be nil, which disables the feed route.
func NewHandler(svc *squads.Service, hub *feed.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		feed:   hub,
		logger: logger,
	}
}

// Health reports the service health.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports whether the store answers.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		logging.Warn(loggerFromContext(r, h.logger), "readiness check failed", "err", err)
		writeError(w, r, nethttp.StatusServiceUnavailable, "store unavailable: "+err.Error(), h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready"}, h.logger)
}

// SquadStatus returns licence metadata, creating the squad on first visit.
func (h *Handler) SquadStatus(w nethttp.ResponseWriter, r *nethttp.Request) {
	status, err := h.svc.Status(r.Context(), chi.URLParam(r, ParamSquadID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, status, h.logger)
}

// Purchase marks the squad as licensed.
func (h *Handler) Purchase(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := h.svc.Purchase(r.Context(), chi.URLParam(r, ParamSquadID)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]bool{"success": true}, h.logger)
}

// Players returns the stored roster in insertion order.
func (h *Handler) Players(w nethttp.ResponseWriter, r *nethttp.Request) {
	list, err := h.svc.Players(r.Context(), chi.URLParam(r, ParamSquadID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []players.Player{}
	}
	writeJSON(w, nethttp.StatusOK, list, h.logger)
}

// ReplacePlayers overwrites the stored roster with the posted list.
func (h *Handler) ReplacePlayers(w nethttp.ResponseWriter, r *nethttp.Request) {
	squadID := chi.URLParam(r, ParamSquadID)
	if _, err := domainsquads.NormalizeID(squadID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var list []players.Player
	if err := requestutil.DecodeJSON(w, r, &list); err != nil {
		status := nethttp.StatusBadRequest
		if errors.Is(err, requestutil.ErrBodyTooLarge) {
			status = nethttp.StatusRequestEntityTooLarge
		}
		writeError(w, r, status, err.Error(), h.logger)
		return
	}

	if err := h.svc.ReplacePlayers(r.Context(), squadID, list); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	logging.Info(loggerFromContext(r, h.logger), "roster replaced",
		logging.FieldSquadID, squadID,
		logging.FieldCount, len(list),
	)
	writeJSON(w, nethttp.StatusOK, map[string]bool{"success": true}, h.logger)
}

type balanceResponse struct {
	Teams [2]teams.Team `json:"teams"`
}

// Balance splits the stored selection into two teams. An optional seed query
// parameter makes the split reproducible.
func (h *Handler) Balance(w nethttp.ResponseWriter, r *nethttp.Request) {
	var seed *int64
	if raw := r.URL.Query().Get("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, nethttp.StatusBadRequest, "invalid seed (expected an integer)", h.logger)
			return
		}
		seed = &v
	}

	one, two, err := h.svc.Balance(r.Context(), chi.URLParam(r, ParamSquadID), seed)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, balanceResponse{Teams: [2]teams.Team{one, two}}, h.logger)
}

// Feed upgrades to a websocket that receives roster replacements for the squad.
func (h *Handler) Feed(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.feed == nil {
		writeError(w, r, nethttp.StatusNotFound, "feed disabled", h.logger)
		return
	}
	id, err := domainsquads.NormalizeID(chi.URLParam(r, ParamSquadID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.feed.ServeWS(w, r, id)
}

// NotFound is the router fallback.
func (h *Handler) NotFound(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
}

// MethodNotAllowed is the router fallback for known paths.
func (h *Handler) MethodNotAllowed(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeError(w, r, nethttp.StatusMethodNotAllowed, "method not allowed", h.logger)
}

func (h *Handler) writeServiceError(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	var vErr *players.ValidationError
	switch {
	case errors.Is(err, domainsquads.ErrInvalidSquadID):
		writeError(w, r, nethttp.StatusBadRequest, "invalid squad id", h.logger)
	case errors.As(err, &vErr):
		writeErrorDetails(w, r, nethttp.StatusBadRequest, "invalid roster", vErr.Problems, h.logger)
	case errors.Is(err, balance.ErrInsufficientPlayers):
		writeError(w, r, nethttp.StatusUnprocessableEntity, err.Error(), h.logger)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, nethttp.StatusNotFound, "squad not found", h.logger)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, store.ErrUnavailable):
		writeError(w, r, nethttp.StatusServiceUnavailable, "store unavailable", h.logger)
	default:
		logging.Error(loggerFromContext(r, h.logger), "request failed", err)
		writeError(w, r, nethttp.StatusInternalServerError, "internal error", h.logger)
	}
}
