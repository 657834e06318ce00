package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/alerts"
	"github.com/dennisdiepolder/queuemonitor/internal/api"
	"github.com/dennisdiepolder/queuemonitor/internal/auth"
	"github.com/dennisdiepolder/queuemonitor/internal/cache"
	"github.com/dennisdiepolder/queuemonitor/internal/classifier"
	"github.com/dennisdiepolder/queuemonitor/internal/config"
	"github.com/dennisdiepolder/queuemonitor/internal/event"
	"github.com/dennisdiepolder/queuemonitor/internal/export"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/monitor"
	"github.com/dennisdiepolder/queuemonitor/internal/notify"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/storage"
	"github.com/dennisdiepolder/queuemonitor/internal/ticker"
	"github.com/dennisdiepolder/queuemonitor/internal/websocket"
	"github.com/dennisdiepolder/queuemonitor/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Dur("refresh_interval", cfg.RefreshInterval).
		Msg("starting queue monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	storeCfg := storage.LoadConfig()
	store, err := storage.NewStore(ctx, storeCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("mode", string(storeCfg.Mode)).Msg("failed to open storage")
	}
	defer store.Close()

	// Status vocabulary
	vocab := classifier.DefaultVocabulary()
	if cfg.VocabularyFile != "" {
		v, err := classifier.LoadVocabulary(cfg.VocabularyFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.VocabularyFile).Msg("failed to load vocabulary, using defaults")
		} else {
			vocab = v
		}
	}

	// Viewer hub
	hub := websocket.NewHub(log.Logger)

	// Alert fan-out
	dispatcher := notify.NewDispatcher(64, log.Logger, notify.NewLogSink(log.Logger), notify.NewBroadcastSink(hub))
	if cfg.NATSURL != "" {
		sink, err := notify.NewNATSSink(cfg.NATSURL, cfg.NATSSubject, log.Logger)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("NATS unavailable, alerts stay local")
		} else {
			defer sink.Close()
			dispatcher.AddSink(sink)
		}
	}
	go dispatcher.Run(ctx)

	st := state.New(store, state.Options{
		Session: session.Config{
			ClearTicks:      cfg.CallClearTicks,
			ChatCapacity:    cfg.ChatCapacity,
			JitterTolerance: session.DefaultJitterTolerance,
		},
		Alerts: alerts.Config{
			Enabled:       cfg.AlertsEnabled,
			CallThreshold: cfg.CallAlert,
			ChatThreshold: cfg.ChatAlert,
		},
		HistoryLimit: cfg.HistoryLimit,
	}, dispatcher, time.Now, log.Logger)

	// Snapshot cache fed by HTTP and websocket feeders
	snapshots := cache.NewSnapshotCache()

	mon := monitor.New(monitor.Config{
		Interval:           cfg.RefreshInterval,
		HiddenInterval:     cfg.RefreshIntervalHidden,
		HiddenBackoffAfter: cfg.HiddenBackoffAfter,
		Debounce:           cfg.MenuDebounce,
		ChatMultiplier:     cfg.ShowChatMultiplier,
		SlotMaxAge:         cfg.SlotMaxAge,
	}, st, snapshots, classifier.New(vocab), hub, log.Logger)

	if cfg.ExportBucket != "" {
		exporter, err := export.NewS3Exporter(ctx, export.Config{
			Bucket:    cfg.ExportBucket,
			Prefix:    cfg.ExportPrefix,
			Region:    cfg.ExportRegion,
			Endpoint:  cfg.ExportEndpoint,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
		}, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("daily report export disabled")
		} else {
			mon.SetExporter(exporter)
		}
	}

	hub.SetBoardSource(mon)
	go hub.Run()

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		mon.Run(ctx)
	}()

	tickerService := ticker.NewTicker(mon, hub, cfg.TickInterval, cfg.CallAlert, log.Logger)
	go tickerService.Start(ctx)

	feeders := websocket.NewFeederHub(snapshots, log.Logger)
	go feeders.Run()

	authenticator := auth.New(auth.Options{
		SkipAuth:        cfg.SkipAuth,
		VerifySignature: cfg.VerifySignature,
		Issuer:          cfg.OIDCIssuer,
	}, log.Logger)

	r := newRouter(routerDeps{
		cfg:      cfg,
		auth:     authenticator.Middleware,
		ctrl:     mon,
		hub:      hub,
		feeders:  feeders,
		receiver: event.NewReceiver(snapshots, log.Logger),
		logger:   log.Logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the loop; it saves state on the way out
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	select {
	case <-monitorDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("processing loop did not stop in time")
	}

	log.Info().Msg("server stopped")
}

type routerDeps struct {
	cfg      *config.Config
	auth     func(http.Handler) http.Handler
	ctrl     api.Controller
	hub      *websocket.Hub
	feeders  *websocket.FeederHub
	receiver *event.Receiver
	logger   zerolog.Logger
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for feeders inside the cluster)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/snapshot", d.receiver.HandleSnapshot)
		r.Get("/snapshot/stats", d.receiver.GetStats)
		r.Get("/feed", websocket.NewFeederHandler(d.feeders, d.logger).ServeHTTP)
	})

	boards := api.NewBoardHandler(d.ctrl, d.logger)
	history := api.NewHistoryHandler(d.ctrl, d.logger)
	controls := api.NewControlsHandler(d.ctrl, d.logger)
	admin := api.NewAdminHandler(d.ctrl, d.logger)

	r.Group(func(r chi.Router) {
		r.Use(d.auth)

		r.Get("/ws", websocket.NewHandler(d.hub, d.cfg, d.logger).ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/board", boards.GetBoard)
			r.Post("/refresh", boards.Refresh)
			r.Post("/presence", boards.Presence)

			r.Get("/entities/{name}/history", history.GetHistory)
			r.Get("/aggregates", history.GetAggregates)
			r.Get("/days", history.GetDays)

			r.Post("/alerts/mute", controls.Mute)
			r.Post("/alerts/snooze", controls.Snooze)
			r.Get("/favorites", controls.GetFavorites)
			r.Put("/favorites/{name}", controls.AddFavorite)
			r.Delete("/favorites/{name}", controls.RemoveFavorite)
			r.Get("/preferences", controls.GetPreferences)
			r.Put("/preferences", controls.PutPreferences)

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Post("/reset", admin.Reset)
				r.Post("/export", admin.Export)
			})
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"queuemonitor"}`)
}
