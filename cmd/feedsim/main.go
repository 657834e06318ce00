package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/control"
	"github.com/dennisdiepolder/queuemonitor/internal/feedsim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type App struct {
	agents     []feedsim.Agent
	simulator  *feedsim.Simulator
	closer     func() error
	cancelRun  context.CancelFunc
	mu         sync.Mutex
	logger     zerolog.Logger
	backendURL string
	feederID   string
}

func main() {
	var (
		controlPort = flag.String("control-port", "8081", "Control API port")
		backendURL  = flag.String("backend-url", "http://localhost:8080", "Monitor URL")
		agentCount  = flag.Int("agents", 200, "Total number of agents to generate")
		interval    = flag.Duration("interval", 1500*time.Millisecond, "Snapshot interval")
		transport   = flag.String("transport", "http", "Snapshot transport (http or ws)")
		feederID    = flag.String("feeder-id", "feedsim", "Feeder id announced over websocket")
		busyRate    = flag.Float64("busy-rate", 0.02, "Fraction of snapshots flagged busy")
		autoStart   = flag.Bool("auto-start", false, "Automatically start simulation")
		active      = flag.Int("active", 100, "Number of connected agents (if auto-start is true)")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "feedsim").
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{
		agents:     feedsim.NewGenerator(*seed).Generate(*agentCount, time.Now()),
		logger:     logger,
		backendURL: *backendURL,
		feederID:   *feederID,
	}
	logger.Info().Int("generated", len(app.agents)).Msg("agents generated")

	api := control.NewAPI(control.SimulationConfig{
		TotalAgents: len(app.agents),
		IntervalMs:  int(interval.Milliseconds()),
		Transport:   *transport,
		BusyRate:    *busyRate,
	}, logger)
	api.SetHandlers(
		func(n int, cfg control.SimulationConfig) error { return app.start(n, cfg, *seed) },
		app.stop,
		app.scale,
		app.stats,
	)

	go func() {
		if err := api.Start(ctx, ":"+*controlPort); err != nil {
			logger.Error().Err(err).Msg("control API stopped")
		}
	}()

	if *autoStart {
		if err := app.start(*active, api.GetConfig(), *seed); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start simulation")
		}
	}

	logger.Info().
		Str("control_api", fmt.Sprintf("http://localhost:%s", *controlPort)).
		Str("backend_url", *backendURL).
		Str("transport", *transport).
		Msg("feedsim ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down feedsim")
	app.stop()
}

func (app *App) start(active int, cfg control.SimulationConfig, seed int64) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.cancelRun != nil {
		return errors.New("simulation already running")
	}

	var pub feedsim.Publisher
	switch cfg.Transport {
	case "ws":
		ws := feedsim.NewWSPublisher(app.backendURL, app.feederID, app.logger)
		pub, app.closer = ws, ws.Close
	default:
		pub, app.closer = feedsim.NewHTTPPublisher(app.backendURL), nil
	}

	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	app.simulator = feedsim.NewSimulator(app.agents, pub, interval, cfg.BusyRate, seed, app.logger)
	app.simulator.SetActive(active, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	app.cancelRun = cancel
	go app.simulator.Run(ctx)
	return nil
}

func (app *App) stop() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.cancelRun == nil {
		return nil
	}
	app.cancelRun()
	app.cancelRun = nil
	if app.closer != nil {
		app.closer()
		app.closer = nil
	}
	return nil
}

func (app *App) scale(active int) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.simulator == nil {
		return errors.New("simulation not started")
	}
	app.simulator.SetActive(active, time.Now())
	return nil
}

func (app *App) stats() feedsim.Stats {
	app.mu.Lock()
	sim := app.simulator
	app.mu.Unlock()

	if sim == nil {
		return feedsim.Stats{TotalAgents: len(app.agents)}
	}
	return sim.Stats()
}
