// Package debug adds opt-in, per-subsystem debug output to slog.
//
// TWINBOT_DEBUG (or logging.debug) lists the subsystems to trace, comma
// separated: chatbot, corpus, simulation, storage, auth, transport or all.
// TWINBOT_LOG_LEVEL (or logging.level) sets the slog level. The extra
// TRACE level also dumps raw simulation stdout and stderr.
//
//	debug.Log("simulation", "process exited", "exit_code", code)
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

type categorySet map[string]struct{}

func (s categorySet) has(category string) bool {
	_, all := s["all"]
	_, ok := s[category]
	return all || ok
}

var active atomic.Pointer[categorySet]

func init() {
	setCategories(os.Getenv("TWINBOT_DEBUG"))
}

// Init installs the process-wide logger on stderr. TWINBOT_DEBUG and
// TWINBOT_LOG_LEVEL take precedence over the configured values.
func Init(categories, level, format string) {
	setCategories(firstNonEmpty(os.Getenv("TWINBOT_DEBUG"), categories))
	lvl := parseLevel(firstNonEmpty(os.Getenv("TWINBOT_LOG_LEVEL"), level))
	slog.SetDefault(slog.New(newHandler(os.Stderr, lvl, format)))
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Enabled reports whether category is being traced.
func Enabled(category string) bool {
	s := active.Load()
	return s != nil && s.has(category)
}

// Log writes a DEBUG record tagged with category, if it is enabled.
func Log(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Debug(msg, append([]any{"debug", category}, args...)...)
	}
}

// Trace writes a TRACE record tagged with category, if it is enabled.
func Trace(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
	}
}

// TraceIsEnabled lets callers skip building expensive TRACE arguments.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Truncate shortens s to at most max bytes without splitting a UTF-8
// sequence, marking the cut with "...".
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func setCategories(list string) {
	s := categorySet{}
	for _, c := range strings.Split(list, ",") {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			s[c] = struct{}{}
		}
	}
	active.Store(&s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
