package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/twinbot/pkg/api"
	"github.com/rhuss/twinbot/pkg/chatbot"
	"github.com/rhuss/twinbot/pkg/corpus"
	"github.com/rhuss/twinbot/pkg/simulation"
	"github.com/rhuss/twinbot/pkg/storage/memory"
)

// recordingProvider returns a fixed reply and records the queries it saw.
type recordingProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	queries []string
	onCall  func()
}

func (p *recordingProvider) GetResponse(_ context.Context, query string) (string, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	if p.onCall != nil {
		p.onCall()
	}
	return p.reply, p.err
}

func stdoutRunner(stdout string) simulation.Runner {
	return simulation.RunnerFunc(func(context.Context) simulation.Result {
		return simulation.Decode("MATLAB", []byte(stdout))
	})
}

func timeoutRunner() simulation.Runner {
	return simulation.RunnerFunc(func(context.Context) simulation.Result {
		return simulation.Result{
			Marker:  "MATLAB process timed out after 1m0s",
			Failure: &simulation.Failure{Kind: simulation.FailureTimeout, ExitCode: -1, Err: simulation.ErrTimeout},
		}
	})
}

func newRelay(t *testing.T, p chatbot.ResponseProvider, r simulation.Runner, cfg Config) *Relay {
	t.Helper()
	rl, err := New(p, r, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rl
}

func builtinBot(t *testing.T) *chatbot.Bot {
	t.Helper()
	ctx := context.Background()
	corpora, err := corpus.Load(corpus.Builtin)
	if err != nil {
		t.Fatalf("loading builtin corpus: %v", err)
	}
	store := memory.New()
	if _, err := chatbot.NewTrainer(store, nil).Train(ctx, corpora); err != nil {
		t.Fatalf("Train: %v", err)
	}
	bot, err := chatbot.New(ctx, store, chatbot.Config{})
	if err != nil {
		t.Fatalf("chatbot.New: %v", err)
	}
	return bot
}

func marshal(t *testing.T, resp *api.QueryResponse) map[string]any {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return out
}

func TestHandleQueryHelloWithJSONOutput(t *testing.T) {
	bot := builtinBot(t)
	want, _ := bot.GetResponse(context.Background(), "hello")

	rl := newRelay(t, bot, stdoutRunner(`{"status":"ok"}`+"\n"), Config{})
	resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}

	got := marshal(t, resp)
	expected := map[string]any{
		"reply":       want,
		"digitalTwin": map[string]any{"status": "ok"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleQueryMissingQueryUsesEmptyString(t *testing.T) {
	p := &recordingProvider{reply: "I am sorry, but I do not understand."}
	rl := newRelay(t, p, stdoutRunner(`{"status":"ok"}`), Config{})

	for _, req := range []*api.QueryRequest{{}, nil} {
		resp, err := rl.HandleQuery(context.Background(), req)
		if err != nil {
			t.Fatalf("HandleQuery(%v): %v", req, err)
		}
		if resp.Reply != p.reply {
			t.Errorf("reply = %q, want %q", resp.Reply, p.reply)
		}
	}
	if diff := cmp.Diff([]string{"", ""}, p.queries); diff != "" {
		t.Errorf("provider queries (-want +got):\n%s", diff)
	}
}

func TestHandleQueryMalformedOutputYieldsMarker(t *testing.T) {
	p := &recordingProvider{reply: "Hi"}
	for _, mode := range []FailureMode{FailureModeMarker, FailureModeError} {
		rl := newRelay(t, p, stdoutRunner("ERROR: license not found\n"), Config{FailureMode: mode})

		resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "status"})
		if err != nil {
			t.Fatalf("mode %s: decode errors must not fail the request: %v", mode, err)
		}
		if got := string(resp.DigitalTwin); got != `{"error":"MATLAB output not parsed"}` {
			t.Errorf("mode %s: digitalTwin = %s, want literal marker", mode, got)
		}
		if resp.Reply != "Hi" {
			t.Errorf("mode %s: reply = %q, want Hi", mode, resp.Reply)
		}
	}
}

func TestHandleQueryPreservesOutputExactly(t *testing.T) {
	out := `{"sensors":[{"id":"t1","value":21.25},{"id":"t2","value":null}],"ok":true}`
	rl := newRelay(t, &recordingProvider{reply: "x"}, stdoutRunner("  "+out+"\n"), Config{})

	resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "sensors"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.DigitalTwin) != out {
		t.Errorf("digitalTwin = %s, want %s", resp.DigitalTwin, out)
	}
}

func TestHandleQueryRepeatableReply(t *testing.T) {
	rl := newRelay(t, builtinBot(t), stdoutRunner(`1`), Config{})

	var replies []string
	for i := 0; i < 3; i++ {
		resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "What is the digital twin?"})
		if err != nil {
			t.Fatal(err)
		}
		replies = append(replies, resp.Reply)
	}
	if replies[0] != replies[1] || replies[1] != replies[2] {
		t.Errorf("replies differ for the same query: %q", replies)
	}
}

func TestHandleQueryReplyBeforeSimulation(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	p := &recordingProvider{reply: "Hi", onCall: func() { record("reply") }}
	runner := simulation.RunnerFunc(func(context.Context) simulation.Result {
		record("simulation")
		return simulation.Decode("MATLAB", []byte(`{}`))
	})

	newRelay(t, p, runner, Config{}).HandleQuery(context.Background(), &api.QueryRequest{Query: "hi"})

	if diff := cmp.Diff([]string{"reply", "simulation"}, order); diff != "" {
		t.Errorf("call order (-want +got):\n%s", diff)
	}
}

func TestHandleQueryFailureMarkerMode(t *testing.T) {
	rl := newRelay(t, &recordingProvider{reply: "Hi"}, timeoutRunner(), Config{})

	resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("marker mode must not fail: %v", err)
	}
	if got := string(resp.DigitalTwin); got != `{"error":"MATLAB process timed out after 1m0s"}` {
		t.Errorf("digitalTwin = %s", got)
	}
}

func TestHandleQueryFailureErrorMode(t *testing.T) {
	rl := newRelay(t, &recordingProvider{reply: "Hi"}, timeoutRunner(), Config{FailureMode: FailureModeError})

	resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "hello"})
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	want := &api.APIError{
		Type:    api.ErrorTypeUpstreamError,
		Code:    "timeout",
		Message: "MATLAB process timed out after 1m0s",
	}
	if diff := cmp.Diff(want, apiErr); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleQueryProviderError(t *testing.T) {
	boom := errors.New("store unavailable")
	simulated := false
	runner := simulation.RunnerFunc(func(context.Context) simulation.Result {
		simulated = true
		return simulation.Result{}
	})

	_, err := newRelay(t, &recordingProvider{err: boom}, runner, Config{}).
		HandleQuery(context.Background(), &api.QueryRequest{Query: "hello"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
	if simulated {
		t.Error("simulation must not run when the reply fails")
	}
}

func TestHandleQueryConcurrent(t *testing.T) {
	rl := newRelay(t, builtinBot(t), stdoutRunner(`{"status":"ok"}`), Config{})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := rl.HandleQuery(context.Background(), &api.QueryRequest{Query: "hello"})
			if err != nil {
				errs <- err
				return
			}
			if string(resp.DigitalTwin) != `{"status":"ok"}` {
				errs <- errors.New("unexpected digitalTwin " + string(resp.DigitalTwin))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, stdoutRunner(`1`), Config{}, nil); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := New(&recordingProvider{}, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil runner")
	}
	if _, err := New(&recordingProvider{}, stdoutRunner(`1`), Config{FailureMode: "loud"}, nil); !errors.Is(err, ErrInvalidFailureMode) {
		t.Errorf("err = %v, want ErrInvalidFailureMode", err)
	}
}

func TestParseFailureMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FailureMode
		wantErr bool
	}{
		{"", FailureModeMarker, false},
		{"marker", FailureModeMarker, false},
		{"error", FailureModeError, false},
		{"ERROR", "", true},
		{"panic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFailureMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFailureMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFailureMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
