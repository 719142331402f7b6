package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/searchparams/internal/config"
	"github.com/vango-dev/searchparams/pkg/middleware"
	"github.com/vango-dev/searchparams/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		dir      string
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP and WebSocket",
		Long: `Serve the parameter engine.

Configuration is read from searchparams.json or searchparams.yaml in the
config directory, then from .env and SEARCHPARAMS_* variables, then from
flags.

Endpoints:
  GET  /healthz      liveness
  GET  /api/state    read a page URL (?url=...&parse=1)
  POST /api/apply    run one operation against a URL
  GET  /ws           client router sessions
  GET  /metrics      Prometheus metrics

Examples:
  searchparams serve
  searchparams serve --addr :9000
  searchparams serve --config ./deploy --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(dir, addr, logLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", ".", "Directory containing searchparams.json or searchparams.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, host:port (default from config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	return cmd
}

// loadServeConfig layers file, environment and flags, then validates.
func loadServeConfig(dir, addr, logLevel string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if addr != "" {
		if err := cfg.SetAddress(addr); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, _ := cfg.LogLevel()
	logger := newLogger(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics(middleware.WithNamespace(cfg.Metrics.Namespace))
	}
	var tracing *middleware.Tracing
	if cfg.Tracing.Enabled {
		tracing = middleware.NewTracing(middleware.WithTracerName(cfg.Tracing.TracerName))
	}

	mode, _ := cfg.RouterMode()
	readTimeout, _ := cfg.ReadTimeout()
	writeTimeout, _ := cfg.WriteTimeout()

	srv := server.New(&server.Config{
		Address:      cfg.Address(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		URLHeader:    cfg.Server.URLHeader,
		RouterMode:   mode,
		MetricsPath:  cfg.Metrics.Path,
		Metrics:      metrics,
		Tracing:      tracing,
		Logger:       logger.With("component", "server"),
	})

	logger.Info("searchparams serving",
		"address", cfg.Address(),
		"provider", cfg.Provider,
		"metrics", cfg.Metrics.Enabled,
		"tracing", cfg.Tracing.Enabled,
	)
	success(os.Stderr, "listening on http://%s", cfg.Address())
	return srv.ListenAndServe(ctx)
}
