package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"climate-monitor/analytics"
	"climate-monitor/bus"
	"climate-monitor/config"
	"climate-monitor/handlers"
	"climate-monitor/ingest"
	"climate-monitor/logging"
	"climate-monitor/models"
	"climate-monitor/mqtt"
	"climate-monitor/store"

	"github.com/go-redis/redis/v8"
)

const appName = "climate-monitor"

// Overridden with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"timezone", cfg.Location.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

func run(parent context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancelRun := context.WithCancel(parent)
	defer cancelRun()

	readings, err := store.OpenSQLite(ctx, store.SQLiteOptions{
		DSN:          cfg.SQLiteDSN,
		Path:         cfg.SQLitePath,
		MaxOpenConns: cfg.SQLiteMaxOpenConns,
	}, logger.With("component", "sqlite"))
	if err != nil {
		return fmt.Errorf("open reading store: %w", err)
	}
	defer readings.Close()
	logger.Info("reading store ready", "path", cfg.SQLitePath)

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = store.NewRedisClient(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	var thresholds store.ThresholdStore
	switch cfg.ThresholdBackend {
	case config.BackendRedis:
		thresholds = store.NewRedisThresholdStore(redisClient)
	default:
		thresholds = store.NewMemoryThresholdStore()
	}
	defer thresholds.Close()

	hub := bus.NewHub(logger.With("component", "websocket"))
	defer hub.Close()
	alerts := bus.NewFanout(bus.Sink{Name: "websocket", Publisher: hub})
	if redisClient != nil && cfg.RedisAlertChannel != "" {
		alerts.Add("redis", bus.NewRedisPublisher(redisClient, cfg.RedisAlertChannel))
	}

	pipeline := ingest.NewPipeline(readings, cfg.IngestBuffer, logger.With("component", "ingest"))
	pipeline.OnDrop(handlers.CountIngestDrop)
	// Writes outlive ctx so Close can drain the queue after a signal.
	pipeline.Start(context.WithoutCancel(ctx), cfg.IngestWorkers)
	defer pipeline.Close()

	if cfg.MQTTEnabled() {
		mq := mqtt.NewClient(mqtt.Options{
			Broker:     cfg.MQTTBroker,
			Port:       cfg.MQTTPort,
			ClientID:   cfg.MQTTClientID,
			Topic:      cfg.MQTTTopic,
			AlertTopic: cfg.MQTTAlertTopic,
		}, logger.With("component", "mqtt"))
		mq.SetMessageHandler(func(rec models.RawRecord) error {
			_, err := pipeline.Submit(rec)
			return err
		})
		alerts.Add("mqtt", mq)
		go func() {
			if err := mq.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mqtt connect failed", "error", err)
			}
		}()
		defer mq.Disconnect()
	}
	logger.Info("alert sinks configured", "sinks", alerts.Names())

	normalizer := analytics.NewNormalizer(cfg.Location)
	engine := analytics.NewEngine(readings, normalizer, logger.With("component", "engine"))

	monitor := analytics.NewMonitor(engine, thresholds, alerts,
		analytics.WithInterval(cfg.MonitorInterval),
		analytics.WithLogger(logger.With("component", "monitor")),
		analytics.WithAlertHook(func(a models.Alert) { handlers.CountAlert(string(a.Kind)) }),
		analytics.WithCycleHook(func(o analytics.Outcome) { handlers.CountCycle(string(o)) }),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = monitor.Run(ctx)
	}()

	deps := handlers.Deps{
		Readings:     engine,
		Thresholds:   thresholds,
		Ingest:       pipeline,
		Alerts:       hub,
		MonitorState: func() string { return monitor.State().String() },
		Logger:       logger.With("component", "http"),
		CORSOrigins:  cfg.CORSOrigins,
	}
	if cfg.HTTPAccessLog {
		deps.AccessLog = os.Stdout
	}

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handlers.NewRouter(deps),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
		cancelRun()
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	wg.Wait()
	if runErr != nil {
		return runErr
	}
	return parent.Err()
}
