// Command orchestratord is the main entry point for the AI provider
// orchestrator HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillmind/orchestrator/internal/config"
	"github.com/quillmind/orchestrator/internal/health"
	"github.com/quillmind/orchestrator/internal/httpapi"
	"github.com/quillmind/orchestrator/internal/observe"
	"github.com/quillmind/orchestrator/pkg/orchestrator"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "orchestratord: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "orchestratord: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("orchestratord starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"providers", len(cfg.Providers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "orchestrator"})
	if err != nil {
		slog.Error("failed to init observability provider", "err", err)
		return 1
	}
	defer shutdownObserve(context.Background())
	metrics := observe.DefaultMetrics()

	factory := &orchestrator.Factory{Logger: logger, Metrics: metrics}
	svc, err := factory.CreateOrchestrationService(cfg)
	if err != nil {
		slog.Error("failed to build orchestration service", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	handler := httpapi.New(httpapi.Deps{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
		HealthCheckers: []health.Checker{
			{Name: "providers", Check: func(ctx context.Context) error {
				results := svc.HealthCheckAllProviders(ctx)
				for name, ok := range results {
					if !ok {
						return fmt.Errorf("provider %q failed health probe", name)
					}
				}
				return nil
			}},
		},
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "listen_addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     orchestrator — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	for name, pc := range cfg.Providers {
		value := name
		if pc.Model != "" {
			value = name + " / " + pc.Model
		}
		if len(value) > 19 {
			value = value[:16] + "…"
		}
		fmt.Printf("║  %-12s    : %-19s ║\n", pc.Kind, value)
	}
	fmt.Printf("║  fallback order  : %-19s ║\n", fmt.Sprintf("%v", cfg.Fallback))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
