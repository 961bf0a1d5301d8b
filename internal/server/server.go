/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, the event bus, cache, object storage
// and the scheduling service into one HTTP server with a managed lifecycle.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/api"
	"github.com/friendsincode/skuld/internal/cache"
	"github.com/friendsincode/skuld/internal/config"
	"github.com/friendsincode/skuld/internal/eventbus"
	"github.com/friendsincode/skuld/internal/events"
	"github.com/friendsincode/skuld/internal/logbuffer"
	"github.com/friendsincode/skuld/internal/scheduling"
	"github.com/friendsincode/skuld/internal/storage"
	"github.com/friendsincode/skuld/internal/telemetry"
	"github.com/friendsincode/skuld/internal/version"
)

// healthInterval is how often the server announces itself on the event bus.
const healthInterval = 30 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error
	started    time.Time

	bus       eventbus.Bus
	cache     *cache.Cache
	store     storage.Store
	service   *scheduling.Service
	api       *api.API
	logBuffer *logbuffer.Buffer
	checker   *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	// Skip the request timeout for websocket upgrades; the events stream is
	// long-lived by design.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
		started:   time.Now(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.router,
		// Keep the header deadline to protect against slowloris, but leave
		// the write deadline open so the events websocket is not cut off.
		// The middleware timeout (60s) still bounds plain requests.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	// Event bus: memory unless a distributed backend is configured. Redis
	// and NATS buses degrade to local delivery rather than failing startup.
	busCfg := eventbus.Config{Backend: s.cfg.BusBackend}
	busCfg.Redis = eventbus.DefaultRedisConfig()
	busCfg.Redis.Addr = s.cfg.RedisAddr
	busCfg.Redis.Password = s.cfg.RedisPassword
	busCfg.Redis.DB = s.cfg.RedisDB
	busCfg.NATS = eventbus.DefaultNATSConfig()
	busCfg.NATS.URL = s.cfg.NATSURL
	busCfg.NATS.Token = s.cfg.NATSToken

	bus, err := eventbus.New(busCfg, eventbus.NodeID(), s.logger)
	if err != nil {
		return err
	}
	s.bus = bus
	s.DeferClose(func() error { return s.bus.Close() })

	// Plan cache is optional; a failed connection downgrades to cacheless
	// operation instead of blocking startup.
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.MaxRuns = s.cfg.CacheMaxRuns
		planCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = planCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	// Object storage for exported plans.
	if s.cfg.StorageBackend != "none" {
		storeCfg := storage.Config{
			Backend: s.cfg.StorageBackend,
			FS:      storage.FSConfig{RootDir: s.cfg.StorageFSRoot},
			S3: storage.S3Config{
				Endpoint:        s.cfg.S3Endpoint,
				Region:          s.cfg.S3Region,
				Bucket:          s.cfg.S3Bucket,
				AccessKeyID:     s.cfg.S3AccessKeyID,
				SecretAccessKey: s.cfg.S3SecretAccessKey,
				UsePathStyle:    s.cfg.S3UsePathStyle,
				Prefix:          s.cfg.S3Prefix,
			},
		}
		store, err := storage.New(context.Background(), storeCfg, s.logger)
		if err != nil {
			return err
		}
		s.store = store
	}

	svcCfg := scheduling.DefaultConfig()
	svcCfg.MaxTasks = s.cfg.MaxPlanTasks
	s.service = scheduling.New(svcCfg, s.bus, s.cache, s.store, s.logger)

	s.api = api.New(s.service, s.bus, s.cache, s.store, s.logBuffer,
		[]byte(s.cfg.JWTSigningKey), version.Version, s.cfg.BusBackend, s.cfg.APIRateLimit, s.logger)

	if s.cfg.JWTSigningKey == "" {
		s.logger.Warn().Msg("no JWT signing key configured, API authentication is disabled")
	}

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the configured route tree, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Heartbeat for websocket listeners and distributed peers.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.bus.Publish(events.EventHealth, events.Payload{
					"status":         "ok",
					"version":        version.Version,
					"uptime_seconds": int64(time.Since(s.started).Seconds()),
				})
			}
		}
	}()

	// When the Redis bus drops to local-only delivery, keep probing so
	// distributed delivery resumes without a restart.
	if rb, ok := s.bus.(*eventbus.RedisBus); ok {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if rb.Healthy() {
						continue
					}
					if err := rb.TryReconnect(); err != nil {
						s.logger.Debug().Err(err).Msg("redis event bus still in fallback mode")
					}
				}
			}
		}()
	}

	// Periodic release check against GitHub.
	if s.cfg.UpdateCheckEnabled {
		s.checker = version.NewChecker(s.logger)
		s.checker.Start(ctx)
		s.DeferClose(func() error {
			s.checker.Stop()
			return nil
		})
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
