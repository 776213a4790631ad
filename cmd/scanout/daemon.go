package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/config"
	"github.com/1broseidon/scanout/internal/daemon"
	"github.com/1broseidon/scanout/internal/ipc"
	"github.com/1broseidon/scanout/internal/logging"
	"github.com/1broseidon/scanout/internal/metrics"
	"github.com/1broseidon/scanout/internal/platform"
	"github.com/1broseidon/scanout/internal/runtimepath"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (default: ~/.config/scanout/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scanout daemon [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Start a seat session, take over its primary GPU and drive connected")
		fmt.Fprintln(os.Stderr, "displays until interrupted.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	res, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg := res.Config

	logger, closer, err := logging.New(os.Stderr, logging.Options{
		Level:     cfg.LogLevel,
		FilePath:  cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
		MaxFiles:  cfg.LogMaxFiles,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return 1
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if res.File != "" {
		logger.Info("loaded config", "path", res.File)
	}

	if err := serve(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	assembly, err := platform.New(cfg, logger)
	if err != nil {
		return err
	}
	defer assembly.Close()

	b, err := backend.New(assembly.Platform, backend.Config{
		Logger:  logger,
		Metrics: metrics.NewBackend(reg),
	})
	if err != nil {
		return err
	}
	loop := b.Loop()
	ctrl := daemon.NewController(b)

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		ctrl.Stop()
		b.Shutdown()
		return err
	}
	ipcServer := ipc.NewServer(socketPath, ctrl, logger)
	if err := ipcServer.Start(); err != nil {
		ctrl.Stop()
		b.Shutdown()
		return fmt.Errorf("failed to start IPC server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsListen != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListen, reg, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Warn("metrics server not started", "error", err)
			metricsServer = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconcileDone := make(chan struct{})
	if interval := cfg.RescanInterval(); interval > 0 {
		reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval: interval,
			Logger:   logger,
		}, func(ctx context.Context) (bool, error) {
			res, err := ctrl.Rescan(ctx)
			return len(res.Added)+len(res.Removed) > 0, err
		})
		go func() {
			defer close(reconcileDone)
			reconciler.Run(ctx)
		}()
	} else {
		close(reconcileDone)
	}

	logger.Info("backend ready",
		"seat", b.Seat(),
		"device", b.DevicePath(),
		"renderer", b.RendererName(),
		"displays", len(b.Displays()))

	runErr := loop.Run(ctx)
	if runErr != nil {
		logger.Error("event loop stopped", "error", runErr)
	}

	logger.Info("shutting down")
	stop()
	ctrl.Stop()
	ipcServer.Stop()
	if metricsServer != nil {
		metricsServer.Stop()
	}

	select {
	case <-reconcileDone:
	case <-time.After(5 * time.Second):
		logger.Warn("reconciler did not stop in time")
	}

	b.Shutdown()
	logger.Info("backend shut down")

	return runErr
}
