// Command mock-twin is a deterministic stand-in for the digital twin
// simulation. It writes a canned JSON state to stdout so twinbot can be
// run and tested without a MATLAB installation:
//
//	TWINBOT_SIM_COMMAND=mock-twin TWINBOT_SIM_ARGS='[]' twinbot serve
//
// Configuration:
//
//	MOCK_TWIN_MODE  - ok (default), garbage, fail or hang
//	MOCK_TWIN_DELAY - duration to sleep before answering (default: 0)
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// twinState is the simulated plant state.
type twinState struct {
	Status      string    `json:"status"`
	Timestamp   string    `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Pressure    float64   `json:"pressure"`
	Flow        []float64 `json:"flow"`
}

func main() {
	mode := os.Getenv("MOCK_TWIN_MODE")
	if mode == "" {
		mode = "ok"
	}

	if v := os.Getenv("MOCK_TWIN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_TWIN_DELAY", "value", v, "error", err)
			os.Exit(2)
		}
		time.Sleep(d)
	}

	switch mode {
	case "ok":
		state := twinState{
			Status:      "ok",
			Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
			Temperature: 21.5,
			Pressure:    1.013,
			Flow:        []float64{0.5, 0.75, 1},
		}
		if err := json.NewEncoder(os.Stdout).Encode(state); err != nil {
			slog.Error("writing state", "error", err)
			os.Exit(1)
		}
	case "garbage":
		fmt.Println("ERROR: license not found")
	case "fail":
		fmt.Fprintln(os.Stderr, "simulation aborted")
		os.Exit(3)
	case "hang":
		select {}
	default:
		slog.Error("unknown MOCK_TWIN_MODE", "mode", mode)
		os.Exit(2)
	}
}
