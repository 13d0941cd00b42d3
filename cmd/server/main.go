package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/adapter/cache"
	"github.com/electra-charge/ems/internal/adapter/fabric"
	"github.com/electra-charge/ems/internal/adapter/http/fiber/handlers"
	"github.com/electra-charge/ems/internal/adapter/http/fiber/middleware"
	"github.com/electra-charge/ems/internal/adapter/queue"
	"github.com/electra-charge/ems/internal/adapter/storage/postgres"
	wsAdapter "github.com/electra-charge/ems/internal/adapter/websocket"
	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/ems/bess"
	"github.com/electra-charge/ems/internal/ems/bootstrap"
	"github.com/electra-charge/ems/internal/ems/coordinator"
	"github.com/electra-charge/ems/internal/ems/registry"
	"github.com/electra-charge/ems/internal/infrastructure/circuitbreaker"
	"github.com/electra-charge/ems/internal/observability/telemetry"
	"github.com/electra-charge/ems/internal/ports"
	"github.com/electra-charge/ems/pkg/config"
)

const (
	serviceName    = "electra-ems"
	serviceVersion = "v1.0.0"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("starting energy management system",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	// 3. Distributed tracing
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Station topology
	topo, err := domain.LoadTopology(cfg.Station.ConfigPath)
	if err != nil {
		logger.Fatal("Failed to load station topology", zap.Error(err))
	}
	logger.Info("topology loaded",
		zap.String("stationId", topo.StationID),
		zap.Float64("gridCapacity", topo.GridCapacity),
		zap.Int("chargers", len(topo.Chargers)),
		zap.Bool("battery", topo.Battery != nil),
	)

	// 5. PostgreSQL
	db, err := postgres.NewConnection(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	repo := postgres.NewEMSRepository(db, logger)

	// Seed the topology tables so read endpoints have rows from the start.
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := bootstrap.SeedTopology(seedCtx, repo, topo, logger); err != nil {
		cancelSeed()
		logger.Fatal("Failed to seed topology", zap.Error(err))
	}
	cancelSeed()

	// 6. Redis (in-memory fallback when disabled or unreachable)
	var statusStore ports.Cache
	if cfg.Redis.Enabled {
		statusStore, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, using local cache", zap.Error(err))
			statusStore = cache.NewLocalCache(time.Minute, logger)
		}
	} else {
		statusStore = cache.NewLocalCache(time.Minute, logger)
	}
	defer statusStore.Close()

	// 7. Message fabric (NATS)
	messageQueue, err := queue.NewNATSQueue(cfg.NATS.URL, cfg.NATS.ReconnectWait, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer messageQueue.Close()

	// 8. Persistence sink behind a circuit breaker
	var sink ports.PersistenceSink = repo
	if cfg.CircuitBreaker.Enabled {
		settings := circuitbreaker.DefaultSinkSettings()
		if cfg.CircuitBreaker.MaxRequests > 0 {
			settings.MaxRequests = uint32(cfg.CircuitBreaker.MaxRequests)
		}
		if cfg.CircuitBreaker.Interval > 0 {
			settings.Interval = cfg.CircuitBreaker.Interval
		}
		if cfg.CircuitBreaker.Timeout > 0 {
			settings.Timeout = cfg.CircuitBreaker.Timeout
		}
		if cfg.CircuitBreaker.FailureThreshold > 0 {
			settings.FailureThreshold = uint32(cfg.CircuitBreaker.FailureThreshold)
		}
		sink = circuitbreaker.NewSink(repo, settings, logger)
	}

	// 9. Core engine: registry, battery controller, coordinator
	reg := registry.New()

	var bessCtrl *bess.Controller
	if topo.Battery != nil {
		bessCtrl = bess.NewController(*topo.Battery, logger)
		if cfg.LoadManagement.BESSMinChargeKW > 0 {
			bessCtrl.SetMinChargePower(cfg.LoadManagement.BESSMinChargeKW)
		}
	}

	fabricAdapter := fabric.NewAdapter(topo.StationID, messageQueue, nil, logger)

	coord := coordinator.New(topo, reg, bessCtrl, sink, fabricAdapter, logger, coordinator.Options{
		HysteresisKW:      cfg.LoadManagement.HysteresisKW,
		QueueSize:         cfg.LoadManagement.QueueSize,
		MetricSampleEvery: cfg.LoadManagement.MetricSampleEvery,
		PersistTimeout:    cfg.LoadManagement.PersistTimeout,
	})
	fabricAdapter.SetCoordinator(coord)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(rootCtx)

	if err := fabricAdapter.Subscribe(); err != nil {
		logger.Fatal("Failed to subscribe to fabric", zap.Error(err))
	}

	// 10. WebSocket hub and live status broadcast
	wsHub := wsAdapter.NewHub()
	go wsHub.Run()

	statuses := cache.NewStatusCache(statusStore)
	broadcaster := wsAdapter.NewStatusBroadcaster(wsHub, coord, statuses, cfg.Station.BroadcastInterval, logger)
	go broadcaster.Run(rootCtx)

	// 11. HTTP server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get underlying SQL DB", zap.Error(err))
	}

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		if err := sqlDB.Ping(); err != nil {
			return c.Status(503).SendString("Database not ready")
		}
		if !messageQueue.IsConnected() {
			return c.Status(503).SendString("Fabric not ready")
		}
		return c.SendString("Ready")
	})

	if cfg.Prometheus.Enabled {
		metricsPath := cfg.Prometheus.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		app.Get(metricsPath, func(c *fiber.Ctx) error {
			handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
			handler(c.Context())
			return nil
		})
	}

	v1 := app.Group("/api/v1")

	sessionHandler := handlers.NewSessionHandler(coord, repo, logger)
	v1.Post("/sessions", sessionHandler.Start)
	v1.Post("/sessions/:id/stop", sessionHandler.Stop)
	v1.Post("/sessions/:id/power-update", sessionHandler.PowerUpdate)
	v1.Get("/sessions", sessionHandler.ListActive)
	v1.Get("/sessions/:id", sessionHandler.Get)

	stationHandler := handlers.NewStationHandler(coord, repo, topo.StationID, logger)
	v1.Get("/station/status", stationHandler.Status)
	v1.Get("/station/chargers", stationHandler.Chargers)
	v1.Get("/chargers/:id/connectors", stationHandler.Connectors)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(func(c *websocket.Conn) {
		wsHub.AddClient(c)
	}))

	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("server exited gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.App.Environment == "development" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
