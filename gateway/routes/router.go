package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakingcore/gateway/middleware"
)

// Rate limit groups.
const (
	RateLimitRead  = "read"
	RateLimitWrite = "write"
)

type Config struct {
	Service       StakingService
	Stream        *Stream
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Metrics       http.Handler
	Logger        *slog.Logger
}

// New assembles the gateway. Reads are public; writes require a bearer token
// whose subject becomes the acting identity.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := &stakingRoutes{service: cfg.Service, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	route := func(sr chi.Router, name, group string) chi.Router {
		return sr.With(func(next http.Handler) http.Handler {
			h := next
			if cfg.RateLimiter != nil {
				h = cfg.RateLimiter.Middleware(group)(h)
			}
			if cfg.Observability != nil {
				h = cfg.Observability.Middleware(name)(h)
			}
			return h
		})
	}

	r.Route("/v1", func(v1 chi.Router) {
		route(v1, "config", RateLimitRead).Get("/config", api.getConfig)
		route(v1, "account", RateLimitRead).Get("/accounts/{addr}", api.getAccount)
		route(v1, "account_positions", RateLimitRead).Get("/accounts/{addr}/positions", api.listPositions)
		route(v1, "position", RateLimitRead).Get("/positions/{id}", api.getPosition)
		route(v1, "preview", RateLimitRead).Get("/positions/{id}/preview", api.previewUnstake)
		if cfg.Stream != nil {
			route(v1, "events", RateLimitRead).Get("/events/ws", cfg.Stream.ServeHTTP)
		}

		v1.Group(func(w chi.Router) {
			if cfg.Authenticator != nil {
				w.Use(cfg.Authenticator.Middleware(middleware.ScopeStakeWrite))
			} else {
				w.Use(denyWrites)
			}
			route(w, "stake", RateLimitWrite).Post("/stake", api.stake)
			route(w, "unstake", RateLimitWrite).Post("/positions/{id}/unstake", api.unstake)
		})
	})

	return otelhttp.NewHandler(r, "stake-gateway")
}

func denyWrites(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusServiceUnavailable, errWritesDisabled)
	})
}
