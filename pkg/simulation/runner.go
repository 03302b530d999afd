package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/twinbot/pkg/debug"
)

// Runner executes one simulation and reports its result. Run never
// returns a Go error: failures are encoded in the Result.
type Runner interface {
	Run(ctx context.Context) Result
}

// RunnerFunc adapts an ordinary function to the Runner interface.
type RunnerFunc func(ctx context.Context) Result

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) Result {
	return f(ctx)
}

// Config describes the external process.
type Config struct {
	// Name labels the simulation in markers and logs (default "MATLAB").
	Name string

	// Command is the executable (default "matlab"). It is resolved via PATH.
	Command string

	// Args are the fixed arguments (default ["-batch", "digitalTwin"]).
	Args []string

	// Dir is the working directory; empty means the server's.
	Dir string

	// Env entries ("KEY=value") are appended to the server environment.
	Env []string

	// Timeout bounds a single run (default 60s).
	Timeout time.Duration

	// MaxOutputBytes caps captured stdout (default 1 MiB).
	MaxOutputBytes int64

	// MaxConcurrent bounds concurrent processes; zero means unlimited.
	MaxConcurrent int64
}

// DefaultConfig returns the stock deployment configuration:
// `matlab -batch digitalTwin`.
func DefaultConfig() Config {
	return Config{
		Name:           "MATLAB",
		Command:        "matlab",
		Args:           []string{"-batch", "digitalTwin"},
		Timeout:        60 * time.Second,
		MaxOutputBytes: 1 << 20,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Command == "" {
		c.Command = d.Command
		if c.Args == nil {
			c.Args = d.Args
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
}

const maxStderrBytes = 64 << 10

// ProcessRunner runs the simulation as a child process.
type ProcessRunner struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// Ensure ProcessRunner implements Runner at compile time.
var _ Runner = (*ProcessRunner)(nil)

// NewProcessRunner creates a runner, filling unset fields from DefaultConfig.
func NewProcessRunner(cfg Config, logger *slog.Logger) *ProcessRunner {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &ProcessRunner{cfg: cfg, logger: logger}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return r
}

// Config returns the effective configuration.
func (r *ProcessRunner) Config() Config {
	return r.cfg
}

// Run starts the process, waits for it within the timeout and decodes its
// stdout. Cancelling ctx kills the process.
func (r *ProcessRunner) Run(ctx context.Context) Result {
	start := time.Now()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			res := failed(r.cfg.Name, &Failure{Kind: FailureCanceled, Err: fmt.Errorf("%w: waiting for a free slot: %v", ErrCanceled, err)}, r.cfg.Timeout)
			res.Duration = time.Since(start)
			return res
		}
		defer r.sem.Release(1)
	}

	res := r.run(ctx)
	res.Duration = time.Since(start)

	if res.Failure != nil {
		r.logger.Warn("simulation failed",
			"command", r.cfg.Command,
			"kind", res.Failure.Kind,
			"exit_code", res.Failure.ExitCode,
			"error", res.Failure.Err,
			"stderr", debug.Truncate(res.Stderr, 512),
			"duration", res.Duration,
		)
	} else if !res.OK() {
		r.logger.Warn("simulation output not parsed", "command", r.cfg.Command, "duration", res.Duration)
	}
	debug.Log("simulation", "run finished", "outcome", res.Outcome(), "duration", res.Duration)
	return res
}

func (r *ProcessRunner) run(parent context.Context) Result {
	ctx, cancel := context.WithTimeout(parent, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.Dir
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	// Give the child's pipes a moment to drain after it is killed.
	cmd.WaitDelay = 2 * time.Second

	stdout := &limitedBuffer{max: r.cfg.MaxOutputBytes}
	stderr := &limitedBuffer{max: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	debug.Log("simulation", "starting process", "command", r.cfg.Command, "args", r.cfg.Args)
	err := cmd.Run()

	if debug.TraceIsEnabled("simulation") {
		debug.Trace("simulation", "process output", "stdout", stdout.String(), "stderr", stderr.String())
	}

	if f := classify(err, ctx, parent, stdout.overflowed()); f != nil {
		res := failed(r.cfg.Name, f, r.cfg.Timeout)
		res.Stderr = stderr.String()
		return res
	}

	res := Decode(r.cfg.Name, stdout.Bytes())
	res.Stderr = stderr.String()
	return res
}

// classify maps the outcome of cmd.Run to a Failure, or nil on success.
func classify(err error, runCtx, parent context.Context, overflow bool) *Failure {
	switch {
	case err == nil && overflow:
		return &Failure{Kind: FailureOutputTooLarge, Err: ErrOutputTooLarge}
	case err == nil:
		return nil
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return &Failure{Kind: FailureNotFound, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	case parent.Err() != nil:
		return &Failure{Kind: FailureCanceled, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrCanceled, parent.Err())}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, ExitCode: -1, Err: ErrTimeout}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Failure{Kind: FailureExitStatus, ExitCode: exitErr.ExitCode(), Err: fmt.Errorf("%w: %d", ErrExitStatus, exitErr.ExitCode())}
	}
	return &Failure{Kind: FailureStart, ExitCode: -1, Err: err}
}

// limitedBuffer keeps the first max bytes written and discards the rest,
// remembering that it did. It never returns a write error, so a chatty
// child is not killed by a broken pipe.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.max - int64(len(b.buf))
	switch {
	case room <= 0:
		b.truncated = true
	case int64(len(p)) > room:
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
	default:
		b.buf = append(b.buf, p...)
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

func (b *limitedBuffer) String() string {
	return string(b.Bytes())
}

func (b *limitedBuffer) overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
