package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/preston-bernstein/gaffer-service/internal/http/handlers"
	"github.com/preston-bernstein/gaffer-service/internal/http/middleware"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
)

// RouterConfig carries the cross-cutting pieces the router wraps around handlers.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	AllowedOrigins []string
}

// NewRouter registers HTTP routes on a chi router.
func NewRouter(handler *handlers.Handler, cfg RouterConfig) nethttp.Handler {
	r := chi.NewRouter()
	r.Use(func(next nethttp.Handler) nethttp.Handler {
		return middleware.LoggingMiddleware(cfg.Logger, cfg.Metrics, next)
	})
	r.Use(chimiddleware.Recoverer)
	r.Use(newCORS(cfg.AllowedOrigins).Handler)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Get("/squad-status/{squadId}", handler.SquadStatus)
		r.Post("/purchase/{squadId}", handler.Purchase)
		r.Get("/players/{squadId}", handler.Players)
		r.Post("/players/{squadId}", handler.ReplacePlayers)
		r.Post("/squads/{squadId}/balance", handler.Balance)
		r.Get("/squads/{squadId}/feed", handler.Feed)
	})
	return r
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{nethttp.MethodGet, nethttp.MethodPost, nethttp.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}
