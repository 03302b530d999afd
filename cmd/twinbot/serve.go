package main

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rhuss/twinbot/pkg/auth"
	"github.com/rhuss/twinbot/pkg/relay"
	transporthttp "github.com/rhuss/twinbot/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  "Train the chatbot if needed, then serve POST /query until SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	bot, store, err := newBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := newRunner(cfg.Simulation)
	mode, err := relay.ParseFailureMode(cfg.Simulation.FailureMode)
	if err != nil {
		return err
	}
	rl, err := relay.New(bot, runner, relay.Config{FailureMode: mode}, slog.Default())
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	chain, err := newAuthChain(cfg.Auth)
	if err != nil {
		return err
	}

	metricsPath := ""
	bypass := []string{transporthttp.HealthPath, transporthttp.ReadyPath}
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
		bypass = append(bypass, metricsPath)
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := transporthttp.NewServer(rl,
		transporthttp.WithAddr(addr),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithCompression(cfg.Server.Compress),
		transporthttp.WithReadiness(store),
		transporthttp.WithHTTPMiddleware(auth.Middleware(chain, newLimiter(cfg.Auth.RateLimit), bypass)),
	)

	sim := runner.Config()
	slog.Info("twinbot configured",
		"version", version,
		"addr", addr,
		"storage", cfg.Storage.Type,
		"simulation", sim.Command,
		"simulation_timeout", sim.Timeout,
		"failure_mode", mode,
		"auth", cfg.Auth.Type,
	)
	return srv.Run(cmd.Context())
}
