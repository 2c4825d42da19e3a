// Command logpipeline runs the logging pipeline as a standalone
// process: it loads configuration, starts every enabled sink, serves
// /healthz and /metrics, and watches the config file for hot reload
// until it receives a termination signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"logpipeline"
	"logpipeline/internal/config"
	"logpipeline/internal/health"
	"logpipeline/internal/perf"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "logpipeline",
		Short: "Run the structured logging pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := viper.GetString("config")
			if resolved == "" {
				resolved = configPath
			}
			return run(resolved, healthAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to logging.config.json (defaults to ./logging.config.json if present)")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":9090", "address to serve /healthz and /metrics on")

	viper.SetEnvPrefix("LOG")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", cmd.Flags().Lookup("config"))

	return cmd
}

func run(configPath, healthAddr string) error {
	diag := logrus.StandardLogger()
	diag.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, _, err := logpipeline.Build(cfg, diag)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	healthSrv := health.NewServer(healthAddr, logger, diag)
	healthSrv.Start()
	diag.WithField("addr", healthAddr).Info("health server started")

	sampler, err := perf.NewSampler(cfg.Performance, diag)
	if err != nil {
		return fmt.Errorf("build perf sampler: %w", err)
	}
	sampler.Start()
	defer sampler.Stop()

	reloader := config.NewReloader(configPath, cfg, diag)
	reloader.OnReloadError(func(err error) {
		diag.WithError(err).Warn("config reload rejected, previous config retained")
	})
	reloader.OnCriticalChange(func(old, next *config.Config) {
		diag.Info("critical config change detected, rebuilding sinks")
		newProc, err := logpipeline.BuildProcessor(next, diag)
		if err != nil {
			diag.WithError(err).Error("rebuild pipeline after critical config change failed, keeping previous sinks")
			return
		}
		oldProc := logger.SwapProcessor(newProc)
		go func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := oldProc.Close(closeCtx); err != nil {
				diag.WithError(err).Warn("closing superseded sinks after config reload failed")
			}
		}()
	})
	reloader.OnReload(func(next *config.Config) {
		diag.Info("config reloaded")
	})
	if err := reloader.Start(); err != nil {
		return fmt.Errorf("start config reloader: %w", err)
	}
	defer reloader.Stop()

	logger.Info("logpipeline started", map[string]any{"service": cfg.Service, "environment": cfg.Environment})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	diag.Info("shutdown signal received, draining sinks")
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutMs) * time.Millisecond
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	dropped, closeErr := logger.Close(ctx)
	if dropped > 0 {
		diag.WithField("dropped", dropped).Warn("shutdown deadline reached with records still queued")
	}

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer healthCancel()
	_ = healthSrv.Stop(healthCtx)

	return closeErr
}
