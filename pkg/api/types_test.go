package api

import (
	"encoding/json"
	"testing"
)

func TestQueryRequestMissingFieldDefaultsToEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"other":"x"}`, `{"query":null}`} {
		var req QueryRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("Unmarshal(%s): %v", body, err)
		}
		if req.Query != "" {
			t.Errorf("Unmarshal(%s): Query = %q, want empty", body, req.Query)
		}
	}
}

func TestQueryResponseEmbedsDigitalTwinVerbatim(t *testing.T) {
	resp := QueryResponse{
		Reply:       "Hi",
		DigitalTwin: json.RawMessage(`{"status":"ok","values":[1,2.5]}`),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"reply":"Hi","digitalTwin":{"status":"ok","values":[1,2.5]}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestQueryResponseWithoutDigitalTwin(t *testing.T) {
	data, err := json.Marshal(QueryResponse{Reply: "Hi"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"reply":"Hi","digitalTwin":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}
