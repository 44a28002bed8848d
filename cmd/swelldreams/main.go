package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/adapters/actuator"
	"github.com/Airegasm/SwellDreams-sub006/adapters/flow"
	genaiadapter "github.com/Airegasm/SwellDreams-sub006/adapters/genai"
	"github.com/Airegasm/SwellDreams-sub006/adapters/snapshot"
	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/api"
	"github.com/Airegasm/SwellDreams-sub006/internal/auth"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/character"
	"github.com/Airegasm/SwellDreams-sub006/internal/config"
	"github.com/Airegasm/SwellDreams-sub006/internal/cycle"
	"github.com/Airegasm/SwellDreams-sub006/internal/estop"
	"github.com/Airegasm/SwellDreams-sub006/internal/orchestrator"
	"github.com/Airegasm/SwellDreams-sub006/internal/pipeline"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Local env file is optional
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded .env file")
	}
	cfg := config.Load()

	char, err := character.Load(cfg.CharacterFile)
	if err != nil {
		logger.Fatal("Failed to load character", zap.Error(err))
	}
	devices, err := character.LoadDevices(cfg.DevicesFile)
	if err != nil {
		logger.Fatal("Failed to load device registry", zap.Error(err))
	}

	session := entities.NewSessionState(cfg.PersonaName, char.Name)

	// Generation backend: real Gemini when a key is configured, a
	// scripted mock otherwise so the rig still runs offline.
	var backend repositories.Backend
	if cfg.GeminiAPIKey != "" {
		gemini, err := genaiadapter.NewGemini(context.Background(), genaiadapter.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.Model,
			TimeoutSeconds: cfg.GenTimeoutSeconds,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini backend", zap.Error(err))
		}
		backend = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock backend")
		backend = genaiadapter.NewMockBackend()
	}

	// Actuator: exec bridge when helpers are configured, in-memory
	// otherwise.
	var driver repositories.Actuator
	if scripts := cfg.ActuatorScripts(); len(scripts) > 0 {
		driver = actuator.NewBridge(cfg.ActuatorInterpreter, scripts, logger)
	} else {
		logger.Warn("No actuator helpers configured, using in-memory driver")
		driver = actuator.NewMemory()
	}

	flowEngine := flow.NewNop(logger)

	hub := bus.NewHub(nil, logger)

	scheduler := cycle.NewScheduler(clock.New(), driver, hub, flowEngine, session, logger)
	for _, d := range devices {
		scheduler.RegisterDevice(d)
	}

	pipe := pipeline.New(backend, hub, session, char, pipeline.Settings{
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}, logger)

	var snapshots repositories.SnapshotStore
	store, err := snapshot.NewSQLite(cfg.SnapshotPath)
	if err != nil {
		logger.Error("Snapshot store unavailable, running without persistence", zap.Error(err))
	} else {
		snapshots = store
		defer store.Close()
	}

	orch := orchestrator.New(session, pipe, scheduler, hub, flowEngine, driver, snapshots, char, orchestrator.Config{
		Streaming:        cfg.Streaming,
		SnapshotInterval: cfg.SnapshotInterval,
	}, logger)
	hub.SetSink(orch)

	stopper := estop.NewCoordinator(scheduler, driver, backend, hub, session, snapshots, logger)
	orch.SetStopper(stopper)

	go hub.Run()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go orch.Run(runCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Deps{
		Hub:         hub,
		Session:     session,
		Scheduler:   scheduler,
		Stopper:     stopper,
		Tokens:      auth.New(cfg.JWTSecret),
		OperatorKey: cfg.OperatorKey,
		Logger:      logger,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("character", char.Name))

	// Termination signals funnel into the same idempotent emergency
	// stop as API requests and uncaught faults.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	stopper.Stop("termination signal")
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
