/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the planner over HTTP: plan computation and export,
// cached plan reads, a websocket event stream, and the system surface
// (status and logs).
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/friendsincode/skuld/internal/auth"
	"github.com/friendsincode/skuld/internal/cache"
	"github.com/friendsincode/skuld/internal/eventbus"
	"github.com/friendsincode/skuld/internal/events"
	"github.com/friendsincode/skuld/internal/logbuffer"
	"github.com/friendsincode/skuld/internal/planner"
	"github.com/friendsincode/skuld/internal/scheduling"
	"github.com/friendsincode/skuld/internal/storage"
)

// API exposes HTTP handlers.
type API struct {
	service    *scheduling.Service
	bus        eventbus.Bus
	planCache  *cache.Cache
	store      storage.Store
	logBuffer  *logbuffer.Buffer
	jwtSecret  []byte
	version    string
	busBackend string
	limiter    *rate.Limiter
	started    time.Time
	logger     zerolog.Logger
}

// New creates the API router wrapper. rateLimit caps plan computations per
// second across all callers; zero disables limiting. An empty jwtSecret
// disables authentication entirely.
func New(service *scheduling.Service, bus eventbus.Bus, planCache *cache.Cache, store storage.Store, logBuf *logbuffer.Buffer, jwtSecret []byte, version, busBackend string, rateLimit float64, logger zerolog.Logger) *API {
	var limiter *rate.Limiter
	if rateLimit > 0 {
		burst := int(rateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}

	return &API{
		service:    service,
		bus:        bus,
		planCache:  planCache,
		store:      store,
		logBuffer:  logBuf,
		jwtSecret:  jwtSecret,
		version:    version,
		busBackend: busBackend,
		limiter:    limiter,
		started:    time.Now(),
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Get("/health", a.handleHealth)
		r.Get("/strategies", a.handleStrategies)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/plan", func(r chi.Router) {
				r.With(a.rateLimited()).Post("/", a.handlePlanCompute)
				r.With(a.rateLimited()).Post("/export", a.handlePlanExport)
				r.Get("/latest", a.handlePlanLatest)
				r.Get("/runs", a.handlePlanRuns)
				r.Get("/{runID}", a.handlePlanGet)
			})

			pr.Route("/system", func(r chi.Router) {
				r.Get("/status", a.handleSystemStatus)
				r.Get("/logs", a.handleSystemLogs)
				r.Get("/logs/components", a.handleLogComponents)
				r.Get("/logs/stats", a.handleLogStats)
				r.With(a.requireRoles("admin")).Delete("/logs", a.handleClearLogs)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

func (a *API) handleStrategies(w http.ResponseWriter, r *http.Request) {
	type strategyInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	descriptions := map[planner.Strategy]string{
		planner.StrategyImportance: "important tasks get the earliest slots their deadlines allow",
		planner.StrategyUrgency:    "deadline-driven order, compacted toward the present",
	}

	list := make([]strategyInfo, 0, len(planner.Strategies()))
	for _, s := range planner.Strategies() {
		list = append(list, strategyInfo{Name: s.String(), Description: descriptions[s]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": list,
		"default":    planner.StrategyImportance.String(),
	})
}

// authMiddleware requires a valid bearer token once a signing key is
// configured. Without one the API runs open.
func (a *API) authMiddleware() func(http.Handler) http.Handler {
	if len(a.jwtSecret) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return auth.Middleware(a.jwtSecret)
}

func (a *API) requireRoles(allowed ...string) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.jwtSecret) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// rateLimited applies the shared token bucket to plan computation.
func (a *API) rateLimited() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.limiter != nil && !a.limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		candidate := events.EventType(strings.TrimSpace(part))
		if !events.Valid(candidate) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
