package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/twinbot/pkg/api"
	"github.com/rhuss/twinbot/pkg/auth"
	"github.com/rhuss/twinbot/pkg/chatbot"
	"github.com/rhuss/twinbot/pkg/debug"
	"github.com/rhuss/twinbot/pkg/observability"
	"github.com/rhuss/twinbot/pkg/simulation"
	"github.com/rhuss/twinbot/pkg/transport"
)

// FailureMode decides how simulation invocation failures are reported.
type FailureMode string

const (
	// FailureModeMarker embeds {"error": "<message>"} and responds normally.
	FailureModeMarker FailureMode = "marker"

	// FailureModeError fails the request with an upstream_error (HTTP 502).
	FailureModeError FailureMode = "error"
)

// ErrInvalidFailureMode is returned by ParseFailureMode.
var ErrInvalidFailureMode = errors.New("invalid failure mode")

// ParseFailureMode parses "marker" or "error". The empty string selects
// FailureModeMarker.
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case "", FailureModeMarker:
		return FailureModeMarker, nil
	case FailureModeError:
		return FailureModeError, nil
	}
	return "", fmt.Errorf("%w %q (must be %q or %q)", ErrInvalidFailureMode, s, FailureModeMarker, FailureModeError)
}

// Config holds relay settings.
type Config struct {
	FailureMode FailureMode
}

// matcher is implemented by providers that can explain their choice;
// *chatbot.Bot does.
type matcher interface {
	Respond(ctx context.Context, query string) chatbot.Match
}

// Relay orchestrates one query between the chatbot and the simulation.
// It implements transport.QueryHandler and is safe for concurrent use.
type Relay struct {
	provider chatbot.ResponseProvider
	runner   simulation.Runner
	cfg      Config
	logger   *slog.Logger
}

// Ensure Relay implements transport.QueryHandler at compile time.
var _ transport.QueryHandler = (*Relay)(nil)

// New creates a Relay. The provider and runner must not be nil.
func New(p chatbot.ResponseProvider, r simulation.Runner, cfg Config, logger *slog.Logger) (*Relay, error) {
	if p == nil {
		return nil, fmt.Errorf("relay: response provider must not be nil")
	}
	if r == nil {
		return nil, fmt.Errorf("relay: simulation runner must not be nil")
	}
	mode, err := ParseFailureMode(string(cfg.FailureMode))
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	cfg.FailureMode = mode
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{provider: p, runner: r, cfg: cfg, logger: logger}, nil
}

// HandleQuery computes the reply for req.Query, then runs the simulation
// and assembles {reply, digitalTwin}. A missing query is treated as "".
func (r *Relay) HandleQuery(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
	var query string
	if req != nil {
		query = req.Query
	}

	reply, err := r.reply(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting reply: %w", err)
	}

	res := r.runner.Run(ctx)
	observability.ObserveSimulation(res.Outcome(), res.Duration)
	debug.Log("simulation", "result",
		"request_id", transport.RequestIDFromContext(ctx),
		"outcome", res.Outcome(),
		"duration", res.Duration,
	)

	if res.Failure != nil && r.cfg.FailureMode == FailureModeError {
		r.logger.Info("answering query with upstream error",
			"request_id", transport.RequestIDFromContext(ctx),
			"subject", auth.SubjectFromContext(ctx),
			"kind", res.Failure.Kind,
		)
		return nil, api.NewUpstreamError(string(res.Failure.Kind), res.Marker)
	}

	return &api.QueryResponse{
		Reply:       reply,
		DigitalTwin: res.JSON(),
	}, nil
}

func (r *Relay) reply(ctx context.Context, query string) (string, error) {
	if m, ok := r.provider.(matcher); ok {
		match := m.Respond(ctx, query)
		observability.ObserveReply(match.Confidence, !match.Default)
		return match.Text, nil
	}
	return r.provider.GetResponse(ctx, query)
}
