// Command twinbot runs the digital twin chatbot relay.
//
// Each POST /query is answered with the chatbot reply for the query and
// the JSON output of one run of the external simulation:
//
//	{"reply": "...", "digitalTwin": {...}}
//
// Configuration is read from a YAML or TOML file and TWINBOT_* environment
// variables; see package config.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/twinbot/pkg/config"
	"github.com/rhuss/twinbot/pkg/debug"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "twinbot",
	Short:         "Chatbot relay in front of a digital twin simulation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML or TOML)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("twinbot failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	for _, w := range cfg.Warnings() {
		slog.Warn("questionable configuration", "detail", w)
	}
	return cfg, nil
}
