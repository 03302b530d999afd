// Package simulation runs the external digital twin process and turns its
// standard output into a [Result].
//
// The process is started with a fixed command line and no stdin, bounded
// by a timeout and optionally by a limit on concurrent runs. Its stdout
// must be a single JSON value. Anything else produces an error marker
// value instead of a Go error, so a reply can always be assembled:
//
//	{"error": "MATLAB output not parsed"}
//
// Invocation failures (missing executable, non-zero exit status, timeout,
// oversized output) also produce a marker, and additionally carry a
// classified [*Failure] so callers can decide how to surface them.
package simulation
