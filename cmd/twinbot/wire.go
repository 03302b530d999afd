package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/twinbot/pkg/auth"
	"github.com/rhuss/twinbot/pkg/auth/apikey"
	"github.com/rhuss/twinbot/pkg/auth/jwt"
	"github.com/rhuss/twinbot/pkg/auth/noop"
	"github.com/rhuss/twinbot/pkg/chatbot"
	"github.com/rhuss/twinbot/pkg/config"
	"github.com/rhuss/twinbot/pkg/corpus"
	"github.com/rhuss/twinbot/pkg/simulation"
	"github.com/rhuss/twinbot/pkg/storage"
	"github.com/rhuss/twinbot/pkg/storage/memory"
	"github.com/rhuss/twinbot/pkg/storage/postgres"
	"github.com/rhuss/twinbot/pkg/storage/sqlite"
)

// openStore opens the configured statement store.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.StatementStore, error) {
	switch cfg.Type {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("storage enabled", "type", "sqlite", "path", s.Path())
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return s, nil
	case "memory":
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// prepareStore trains the store from the configured corpora when required.
func prepareStore(ctx context.Context, store storage.StatementStore, cfg config.ChatbotConfig) error {
	if !cfg.TrainOnStart && !cfg.Retrain {
		return nil
	}
	corpora, err := corpus.Load(cfg.Corpus...)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	trainer := chatbot.NewTrainer(store, slog.Default())
	if cfg.Retrain {
		if _, err := trainer.Retrain(ctx, corpora); err != nil {
			return fmt.Errorf("retraining: %w", err)
		}
		return nil
	}
	if _, err := trainer.EnsureTrained(ctx, corpora); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	return nil
}

// newBot opens the store, trains it if needed and builds the matcher.
// The returned store must be closed by the caller.
func newBot(ctx context.Context, cfg *config.Config) (*chatbot.Bot, storage.StatementStore, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if err := prepareStore(ctx, store, cfg.Chatbot); err != nil {
		store.Close()
		return nil, nil, err
	}
	bot, err := chatbot.New(ctx, store, chatbot.Config{
		Name:            cfg.Chatbot.Name,
		DefaultResponse: cfg.Chatbot.DefaultResponse,
		MinConfidence:   cfg.Chatbot.MinConfidence,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("building chatbot: %w", err)
	}
	statements, inputs := bot.Size()
	slog.Info("chatbot ready", "name", bot.Name(), "statements", statements, "inputs", inputs)
	return bot, store, nil
}

func newRunner(cfg config.SimulationConfig) *simulation.ProcessRunner {
	return simulation.NewProcessRunner(simulation.Config{
		Name:           cfg.Name,
		Command:        cfg.Command,
		Args:           cfg.Args,
		Dir:            cfg.Dir,
		Env:            cfg.Env,
		Timeout:        cfg.Timeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
		MaxConcurrent:  cfg.MaxConcurrent,
	}, slog.Default())
}

// newAuthChain builds the authenticator chain for auth.type. "none"
// accepts everyone; the others reject requests without credentials.
func newAuthChain(cfg config.AuthConfig) (*auth.Chain, error) {
	switch cfg.Type {
	case "none", "":
		return auth.NewChain(auth.Yes, &noop.Authenticator{}), nil
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
					Scopes:      k.Scopes,
				},
			})
		}
		return auth.NewChain(auth.No, apikey.New(entries)), nil
	case "jwt":
		return auth.NewChain(auth.No, jwt.New(jwt.Config{
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			JWKSURL:       cfg.JWT.JWKSURL,
			UserClaim:     cfg.JWT.UserClaim,
			TierClaim:     cfg.JWT.TierClaim,
			ScopesClaim:   cfg.JWT.ScopesClaim,
			RequiredScope: cfg.JWT.RequiredScope,
			Leeway:        cfg.JWT.Leeway,
			CacheTTL:      cfg.JWT.CacheTTL,
		})), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// newLimiter returns nil when no limits are configured.
func newLimiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if cfg.DefaultRPM == 0 && len(cfg.Tiers) == 0 {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: t.RequestsPerMinute, Burst: t.Burst}
	}
	return auth.NewTokenBucketLimiter(tiers, cfg.DefaultRPM)
}
