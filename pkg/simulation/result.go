package simulation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors wrapped by Failure.
var (
	ErrNotFound       = errors.New("simulation executable not found")
	ErrExitStatus     = errors.New("simulation exited with non-zero status")
	ErrTimeout        = errors.New("simulation timed out")
	ErrOutputTooLarge = errors.New("simulation output exceeds limit")
	ErrCanceled       = errors.New("simulation canceled")
)

// FailureKind classifies why the process could not produce output.
type FailureKind string

const (
	FailureNotFound       FailureKind = "not_found"
	FailureExitStatus     FailureKind = "exit_status"
	FailureTimeout        FailureKind = "timeout"
	FailureOutputTooLarge FailureKind = "output_too_large"
	FailureCanceled       FailureKind = "canceled"
	FailureStart          FailureKind = "start"
)

// Failure describes an invocation failure.
type Failure struct {
	Kind     FailureKind
	ExitCode int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("simulation %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome labels used for metrics and logs.
const (
	OutcomeOK          = "ok"
	OutcomeDecodeError = "decode_error"
)

// Result is the outcome of one simulation run: either a decoded JSON value
// or an error marker.
type Result struct {
	// Value holds the trimmed stdout when it is a single valid JSON value.
	Value json.RawMessage

	// Marker is the error message used when Value is empty.
	Marker string

	// Failure is set when the process itself failed. A decode failure of
	// otherwise successful output leaves Failure nil.
	Failure *Failure

	// Stderr holds the captured standard error, possibly truncated.
	Stderr string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// OK reports whether the run produced a decoded value.
func (r Result) OK() bool {
	return len(r.Value) > 0
}

// Outcome returns "ok", "decode_error" or the failure kind.
func (r Result) Outcome() string {
	switch {
	case r.OK():
		return OutcomeOK
	case r.Failure != nil:
		return string(r.Failure.Kind)
	default:
		return OutcomeDecodeError
	}
}

// JSON returns the value to embed in a reply: the decoded output, or
// {"error": Marker}.
func (r Result) JSON() json.RawMessage {
	if r.OK() {
		return r.Value
	}
	data, err := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: r.Marker})
	if err != nil {
		// Marshaling a string field cannot fail.
		panic(err)
	}
	return data
}

// NotParsedMarker returns the marker message for output that is not JSON.
func NotParsedMarker(name string) string {
	return name + " output not parsed"
}

// Decode interprets process output. Surrounding whitespace is ignored; the
// remainder must be exactly one JSON value.
func Decode(name string, stdout []byte) Result {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Result{Marker: NotParsedMarker(name)}
	}
	value := make(json.RawMessage, len(trimmed))
	copy(value, trimmed)
	return Result{Value: value}
}

// failed builds the marker result for an invocation failure.
func failed(name string, f *Failure, timeout time.Duration) Result {
	var marker string
	switch f.Kind {
	case FailureTimeout:
		marker = fmt.Sprintf("%s process timed out after %s", name, timeout)
	case FailureNotFound:
		marker = fmt.Sprintf("%s process failed: executable not found", name)
	case FailureExitStatus:
		marker = fmt.Sprintf("%s process failed: exit status %d", name, f.ExitCode)
	case FailureOutputTooLarge:
		marker = fmt.Sprintf("%s process failed: output too large", name)
	case FailureCanceled:
		marker = fmt.Sprintf("%s process canceled", name)
	default:
		marker = fmt.Sprintf("%s process failed: %v", name, f.Err)
	}
	return Result{Marker: marker, Failure: f}
}
