package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/twinbot/pkg/auth"
	"github.com/rhuss/twinbot/pkg/config"
)

func TestNewAuthChain(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.AuthConfig
		header string
		want   auth.Decision
	}{
		{
			name: "none accepts anonymous",
			cfg:  config.AuthConfig{Type: "none"},
			want: auth.Yes,
		},
		{
			name: "apikey rejects missing key",
			cfg: config.AuthConfig{Type: "apikey", APIKeys: []config.APIKeyConfig{
				{Key: "sk-1", Subject: "alice"},
			}},
			want: auth.No,
		},
		{
			name: "apikey accepts known key",
			cfg: config.AuthConfig{Type: "apikey", APIKeys: []config.APIKeyConfig{
				{Key: "sk-1", Subject: "alice", ServiceTier: "gold"},
			}},
			header: "Bearer sk-1",
			want:   auth.Yes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := newAuthChain(tt.cfg)
			if err != nil {
				t.Fatalf("newAuthChain() error: %v", err)
			}
			req := httptest.NewRequest("POST", "/query", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got := chain.Authenticate(context.Background(), req)
			if got.Decision != tt.want {
				t.Errorf("decision = %v, want %v", got.Decision, tt.want)
			}
		})
	}

	if _, err := newAuthChain(config.AuthConfig{Type: "kerberos"}); err == nil {
		t.Error("newAuthChain(kerberos) expected error")
	}
}

func TestNewLimiter(t *testing.T) {
	if l := newLimiter(config.RateLimitConfig{}); l != nil {
		t.Errorf("newLimiter(empty) = %v, want nil", l)
	}

	l := newLimiter(config.RateLimitConfig{DefaultRPM: 1})
	if l == nil {
		t.Fatal("newLimiter(default_rpm=1) = nil")
	}
	id := &auth.Identity{Subject: "bob"}
	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("first Allow() error: %v", err)
	}
	if err := l.Allow(context.Background(), id); err == nil {
		t.Error("second Allow() within a minute should be rejected")
	}
}

func TestNewBotMemoryStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Type = "memory"

	bot, store, err := newBot(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("newBot() error: %v", err)
	}
	defer store.Close()

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n == 0 {
		t.Error("store is empty after training from the builtin corpus")
	}

	first, _ := bot.GetResponse(context.Background(), "Hello")
	second, _ := bot.GetResponse(context.Background(), "Hello")
	if first == "" || first != second {
		t.Errorf("GetResponse(Hello) = %q then %q, want the same non-empty reply", first, second)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "twinbot ") {
		t.Errorf("output = %q, want it to start with \"twinbot \"", out.String())
	}
}
