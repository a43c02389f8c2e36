/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the jukebox together: play log, library, media
// engine, playout controller, event fan-out and the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_jukebox/internal/api"
	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/db"
	"github.com/friendsincode/grimnir_jukebox/internal/eventbus"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/history"
	"github.com/friendsincode/grimnir_jukebox/internal/library"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/mediaengine"
	"github.com/friendsincode/grimnir_jukebox/internal/playlist"
	"github.com/friendsincode/grimnir_jukebox/internal/playlog"
	"github.com/friendsincode/grimnir_jukebox/internal/playout"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

const remoteConnectTimeout = 10 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	bus        *events.Bus
	logBuffer  *logbuffer.Buffer
	playLog    *playlog.Log
	database   *gorm.DB
	history    *history.Store
	library    *library.Library
	engine     *mediaengine.MPV
	notifier   *eventbus.Notifier
	controller *playout.Controller
	api        *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. Setup errors are
// returned before anything is started.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.HTTPMiddleware("jukebox-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware(60 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Websocket handlers manage their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// timeoutMiddleware applies a request timeout to everything except websocket
// upgrades.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		limited := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	ctx, cancel := context.WithTimeout(context.Background(), remoteConnectTimeout)
	defer cancel()

	playLog, err := playlog.Open(s.cfg.PlaylistDir, time.Now())
	if err != nil {
		return fmt.Errorf("open play log: %w", err)
	}
	s.playLog = playLog
	s.DeferClose(playLog.Close)
	s.logger.Info().
		Str("play_log", playLog.PlayPath()).
		Str("report_log", playLog.ReportPath()).
		Msg("play log opened")

	if s.cfg.HistoryEnabled() {
		database, err := db.Connect(s.cfg)
		if err != nil {
			return fmt.Errorf("connect history database: %w", err)
		}
		s.DeferClose(func() error { return db.Close(database) })
		if err := db.Migrate(database); err != nil {
			return fmt.Errorf("migrate history database: %w", err)
		}
		s.database = database
		s.history = history.NewStore(database)
	}

	remotes, err := s.connectRemotes(ctx)
	if err != nil {
		return err
	}
	nodeID := s.cfg.InstanceID
	if nodeID == "" {
		nodeID = eventbus.DefaultNodeID()
	}
	s.notifier = eventbus.NewNotifier(s.bus, nodeID, s.logger, remotes...)
	s.DeferClose(s.notifier.Close)

	s.library = library.New(library.Config{
		MediaRoot: s.cfg.MediaRoot,
		Manifest:  s.cfg.LibraryManifest,
		Workers:   s.cfg.LibraryWorkers,
		Probe:     s.cfg.LibraryProbe,
	}, s.logger)
	s.library.OnRefresh(func(count int) {
		s.notifier.Publish(events.EventLibraryUpdated, events.Payload{"items": count})
	})
	if s.cfg.MediaRoot != "" || s.cfg.LibraryManifest != "" {
		if err := s.library.Refresh(context.Background()); err != nil {
			return fmt.Errorf("load library: %w", err)
		}
	} else {
		s.logger.Warn().Msg("no media root or library manifest configured, library is empty")
	}

	s.engine = mediaengine.NewMPV(mediaengine.MPVConfig{
		Bin:       s.cfg.MPVBin,
		Socket:    s.cfg.MPVSocket,
		ExtraArgs: s.cfg.MPVArgs,
	}, s.logger)
	s.engine.OnConnectionChange(func(connected bool) {
		if connected {
			// Drain anything submitted while the player was down.
			go s.controller.RequestNext(context.Background())
		} else {
			// A restarted player comes up idle and never reports the end of
			// the item it was playing.
			s.controller.HandleEngineDisconnect(context.Background())
		}
		s.notifier.Publish(events.EventEngineConnected, events.Payload{"connected": connected})
	})

	opts := []playout.Option{
		playout.WithSuppressWindow(s.cfg.SuppressWindow),
		playout.WithCommandTimeout(s.cfg.EngineCommandTimeout),
	}
	if s.history != nil {
		opts = append(opts, playout.WithHistory(s.history))
	}
	s.controller = playout.New(playlist.NewStore(), s.engine, s.notifier, s.playLog, s.logger, opts...)

	s.api = api.New(s.controller, s.library, s.bus, s.logBuffer, s.logger)
	if s.history != nil {
		s.api.SetHistory(s.history)
	}
	return nil
}

func (s *Server) connectRemotes(ctx context.Context) ([]eventbus.Remote, error) {
	var remotes []eventbus.Remote

	if s.cfg.RedisAddr != "" {
		rcfg := eventbus.DefaultRedisConfig()
		rcfg.Addr = s.cfg.RedisAddr
		rcfg.Password = s.cfg.RedisPassword
		rcfg.DB = s.cfg.RedisDB
		remote, err := eventbus.NewRedisRemote(ctx, rcfg, s.logger.With().Str("component", "redis").Logger())
		if err != nil {
			return nil, fmt.Errorf("connect redis event fan-out: %w", err)
		}
		s.DeferClose(remote.Close)
		remotes = append(remotes, remote)
	}

	if s.cfg.NATSURL != "" {
		ncfg := eventbus.DefaultNATSConfig()
		ncfg.URL = s.cfg.NATSURL
		remote, err := eventbus.NewNATSRemote(ncfg, s.logger.With().Str("component", "nats").Logger())
		if err != nil {
			return nil, fmt.Errorf("connect nats event fan-out: %w", err)
		}
		s.DeferClose(remote.Close)
		remotes = append(remotes, remote)
	}

	return remotes, nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		state := s.controller.Snapshot()
		status := http.StatusOK
		engine := "connected"
		if !s.engine.Connected() {
			engine = "disconnected"
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, map[string]any{
			"status":   http.StatusText(status),
			"engine":   engine,
			"playback": string(s.controller.State()),
			"pending":  len(state.Pending),
			"library":  s.library.Len(),
		})
	})

	metrics := telemetry.Handler()
	s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if s.database != nil {
			db.UpdateConnectionMetrics(s.database)
		}
		metrics.ServeHTTP(w, r)
	})

	s.api.Routes(s.router)
}

func writeHealth(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start launches background workers: the media engine supervisor, the
// playout event loop, remote event fan-out, the optional library watcher and
// the optional startup play log reload.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.goBackground("media engine", func() error { return s.engine.Run(ctx) })
	s.goBackground("playout", func() error { return s.controller.Run(ctx) })
	s.goBackground("event fan-out", func() error { return s.notifier.Run(ctx) })
	s.goBackground("event relay", func() error {
		s.notifier.Relay(ctx)
		return nil
	})

	if s.cfg.LibraryWatch {
		s.goBackground("library watch", func() error { return s.library.Watch(ctx) })
	}

	if s.cfg.LoadPlaylist != "" {
		s.goBackground("play log reload", func() error {
			_, err := s.controller.LoadFromFile(ctx, s.cfg.LoadPlaylist, s.library)
			return err
		})
	}
}

func (s *Server) goBackground(name string, fn func() error) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("worker", name).Msg("background worker exited")
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close stops background workers and releases owned resources in reverse
// order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
