package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/playscope/playkit/internal/analytics"
	"github.com/playscope/playkit/internal/catalog"
	"github.com/playscope/playkit/internal/config"
	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/engine/sim"
	"github.com/playscope/playkit/internal/history"
	"github.com/playscope/playkit/internal/loader"
	"github.com/playscope/playkit/internal/logging"
	"github.com/playscope/playkit/internal/metrics"
	"github.com/playscope/playkit/internal/middleware"
	"github.com/playscope/playkit/internal/prefs"
	"github.com/playscope/playkit/internal/scheduler"
	"github.com/playscope/playkit/internal/session"
	"github.com/playscope/playkit/internal/state"
	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/internal/tracing"
	"github.com/playscope/playkit/internal/webhook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zl := logger.Zerolog()

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			zl.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
		} else {
			defer closer.Close()
			zl.Info().Str("service", cfg.Tracing.ServiceName).Msg("Tracing initialized")
		}
	}

	// Preference store; the daemon still runs when Redis is down, selections
	// just stop surviving restarts
	var prefStore *prefs.Store
	if store, err := prefs.NewStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PrefTTL); err != nil {
		zl.Warn().Err(err).Msg("Preference store unavailable, selections will not persist")
	} else {
		prefStore = store
		defer prefStore.Close()
	}

	// Telemetry sinks
	stats := analytics.NewService(256)
	sinks := []telemetry.Publisher{stats}

	if cfg.Telemetry.LogEvents {
		sinks = append(sinks, &telemetry.LogPublisher{Log: zl})
	}

	if cfg.Queue.Enabled {
		qp, err := telemetry.NewQueuePublisher(cfg.Queue)
		if err != nil {
			zl.Warn().Err(err).Msg("Event queue unavailable, continuing without it")
		} else {
			sinks = append(sinks, qp)
		}
	}

	var hist *history.Repository
	if cfg.Database.Enabled {
		repo, err := history.New(cfg.Database)
		if err != nil {
			zl.Warn().Err(err).Msg("Session history unavailable, continuing without it")
		} else {
			hist = repo
			sinks = append(sinks, hist)
			defer hist.Close()
		}
	}

	if len(cfg.Telemetry.Webhooks) > 0 {
		endpoints := make([]webhook.Endpoint, 0, len(cfg.Telemetry.Webhooks))
		for _, ep := range cfg.Telemetry.Webhooks {
			endpoints = append(endpoints, webhook.Endpoint{URL: ep.URL, Secret: ep.Secret, Events: ep.Events})
		}
		sinks = append(sinks, webhook.NewNotifier(endpoints, zl))
	}

	publisher := &telemetry.Fanout{Sinks: sinks, Log: zl}
	defer publisher.Close()

	// Source catalog
	var cat *catalog.Catalog
	if cfg.Catalog.Enabled {
		c, err := catalog.New(cfg.Catalog)
		if err != nil {
			zl.Warn().Err(err).Msg("Source catalog unavailable, continuing without it")
		} else {
			cat = c
		}
	}

	// Engine registry: the daemon plays against simulated engines with a
	// standard bitrate ladder
	registry := loader.NewRegistry()
	registry.RegisterLoader(loader.LibraryHLS, func(ctx context.Context) (any, error) {
		return engine.HLSLib(&sim.HLSLib{Manifest: defaultManifest(), AutoParse: true}), nil
	})
	registry.RegisterLoader(loader.LibraryDASH, func(ctx context.Context) (any, error) {
		return engine.DASHLib(&sim.DASHLib{Manifest: defaultManifest(), AutoFirstFrame: true}), nil
	})

	var persister state.Persister
	var prefLoader session.PreferenceLoader
	if prefStore != nil {
		persister = prefStore
		prefLoader = prefStore
	}

	manager := session.NewManager(session.ManagerDeps{
		Registry:  registry,
		Prefs:     prefLoader,
		Persister: persister,
		Publisher: publisher,
		Log:       zl,
	})
	defer manager.CloseAll()

	janitor := scheduler.NewJanitor(manager, cfg.Session.SweepInterval, cfg.Session.MaxIdle, zl)
	janitor.Start()
	defer janitor.Stop()

	// Metrics server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				zl.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}()
	}

	api := &API{
		cfg:     cfg,
		manager: manager,
		stats:   stats,
		catalog: cat,
		history: hist,
		prefs:   prefStore,
		log:     zl,
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zl.Info().Str("addr", addr).Msg("Starting playback daemon")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zl.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error().Err(err).Msg("Server forced to shutdown")
	}

	zl.Info().Msg("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.log))
	router.Use(middleware.Profile(api.cfg.Player.Profile))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(api.cfg.Server.RateLimitRPS, api.cfg.Server.RateLimitBurst)))

	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	{
		// Players
		v1.POST("/players", api.createPlayer)
		v1.GET("/players/:id", api.getPlayer)
		v1.DELETE("/players/:id", api.closePlayer)

		// Switch commands
		v1.POST("/players/:id/quality", api.selectQuality)
		v1.POST("/players/:id/audio", api.selectAudio)
		v1.POST("/players/:id/subtitle", api.selectSubtitle)
		v1.POST("/players/:id/retry", api.retry)

		// Simulated surface controls
		v1.POST("/players/:id/canplay", api.fireCanPlay)
		v1.POST("/players/:id/advance", api.advance)

		// Catalog
		v1.GET("/catalog/titles", api.listTitles)
		v1.GET("/catalog/titles/:title/sources", api.titleSources)

		// Stats and history
		v1.GET("/stats", api.statsSummary)
		v1.GET("/stats/sessions", api.statsSessions)
		v1.GET("/sessions/:id/events", api.sessionEvents)
	}

	return router
}

func defaultManifest() sim.Manifest {
	return sim.Manifest{
		Levels: []engine.QualityLevel{
			{Index: 0, Height: 360, Bitrate: 500_000},
			{Index: 1, Height: 480, Bitrate: 800_000},
			{Index: 2, Height: 720, Bitrate: 1_500_000},
			{Index: 3, Height: 1080, Bitrate: 3_000_000},
		},
		Audios: []engine.RawAudioTrack{
			{Lang: "en", Name: "English"},
			{Lang: "es", Name: "Spanish"},
		},
		Subtitles: []engine.RawSubtitleTrack{
			{Lang: "en", Name: "English", URL: "https://cdn.example.com/subs/en.vtt"},
			{Lang: "es", Name: "Spanish", URL: "https://cdn.example.com/subs/es.vtt"},
		},
	}
}
