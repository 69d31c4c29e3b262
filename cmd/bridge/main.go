package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	httpapi "salus-bridge/internal/adapters/input/http"
	"salus-bridge/internal/adapters/output/it600"
	"salus-bridge/internal/adapters/output/mqtt"
	"salus-bridge/internal/adapters/output/persistence"
	"salus-bridge/internal/adapters/output/telemetry"
	"salus-bridge/internal/domain/service"
	"salus-bridge/internal/domain/translator"
	"salus-bridge/internal/logging"
	"salus-bridge/internal/observability"
	"salus-bridge/internal/ports"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("salus-bridge stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/app/config.yaml"
	}
	cfg, err := service.NewConfigService(persistence.NewYAMLConfigRepository(configPath), os.LookupEnv).Load(context.Background())
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.Log, version)
	slog.SetDefault(logger)

	tracer, shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.Tracing.OTLPEndpoint, version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, reg)

	calibrator, err := translator.NewCalibrator(cfg.TemperatureFormulas)
	if err != nil {
		return err
	}
	client := it600.NewClient(it600.Options{
		Host:    cfg.Gateway.Host,
		Port:    cfg.Gateway.Port,
		EUID:    cfg.Gateway.EUID,
		Timeout: cfg.Gateway.RequestTimeout,
	}, translator.NewFactory(calibrator), logger.With("component", "it600"))
	gateway := telemetry.NewGateway(client, metrics, tracer)

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.RequestTimeout)
	err = gateway.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to gateway %s: %w", cfg.Gateway.Host, err)
	}
	defer gateway.Close()
	logger.Info("gateway connected", "host", cfg.Gateway.Host, "port", cfg.Gateway.Port)

	var publisher ports.StatePublisher
	if cfg.MQTT.Broker != "" {
		pub := mqtt.NewPublisher(cfg.MQTT, logger.With("component", "mqtt"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pub.Connect(ctx)
		cancel()
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = pub
	}

	bridge := service.NewBridgeService(gateway, publisher, service.Options{
		GatewayHost:     cfg.Gateway.Host,
		Version:         version,
		CacheTTL:        cfg.CacheTTL,
		ZoneConcurrency: cfg.ZoneConcurrency,
	}, logger)

	router := httpapi.NewServer(bridge, httpapi.Options{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Metrics:     metrics,
		Tracer:      tracer,
	}, logger.With("component", "http")).Routes()

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		// zone routes lift this per request
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("salus-bridge started", "listen", cfg.HTTP.Listen, "version", version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-serveErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpSrv.Shutdown(ctx)
}
