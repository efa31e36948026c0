// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/homerelay/internal/api"
	"github.com/tomtom215/homerelay/internal/config"
	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/readinglog"
	"github.com/tomtom215/homerelay/internal/supervisor"
	"github.com/tomtom215/homerelay/internal/supervisor/services"
	ws "github.com/tomtom215/homerelay/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("reading_log", cfg.ReadingLog.Path).
		Strs("producer_devices", cfg.Ingest.ProducerDevices).
		Dur("liveness_interval", cfg.Liveness.Interval).
		Int("liveness_max_missed", cfg.Liveness.MaxMissed).
		Msg("Starting Homerelay with supervisor tree")

	writer := newReadingLog(cfg)
	hub := ws.NewHub(ws.HubConfig{
		DefaultDeviceID: cfg.Ingest.DefaultDeviceID,
		ProducerDevices: cfg.Ingest.ProducerDevices,
		Recorder:        writer,
	})
	server := newHTTPServer(cfg, hub)

	tree, err := buildTree(cfg, writer, hub, server)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

func newReadingLog(cfg *config.Config) *readinglog.Writer {
	return readinglog.New(readinglog.Config{
		Path:            cfg.ReadingLog.Path,
		QueueSize:       cfg.ReadingLog.QueueSize,
		BreakerFailures: cfg.ReadingLog.BreakerFailures,
		BreakerTimeout:  cfg.ReadingLog.BreakerTimeout,
	})
}

func newHTTPServer(cfg *config.Config, hub *ws.Hub) *http.Server {
	handler := api.NewHandler(cfg, hub)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(cfg.Security)))

	return &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logging.NewSlogHandler(), slog.LevelWarn),
	}
}

// buildTree places every long-running component in its supervisor layer.
func buildTree(cfg *config.Config, writer *readinglog.Writer, hub *ws.Hub, server *http.Server) (*supervisor.SupervisorTree, error) {
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return nil, err
	}

	tree.AddDataService(services.NewReadingLogService(writer))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	if cfg.Stats.ReportInterval > 0 {
		tree.AddMessagingService(services.NewStatsReporterService(hub, cfg.Stats.ReportInterval))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	return tree, nil
}
