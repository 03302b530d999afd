package api

import (
	"bytes"
	"encoding/json"
)

// QueryRequest is the body of POST /query.
//
// A missing "query" field decodes to the empty string. This is not an
// error: the chatbot is asked with "" like any other text.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the body returned by POST /query. Both fields are always
// present. DigitalTwin holds either the simulation output exactly as decoded
// or an error marker object such as {"error":"MATLAB output not parsed"}.
type QueryResponse struct {
	Reply       string          `json:"reply"`
	DigitalTwin json.RawMessage `json:"digitalTwin"`
}

// nullJSON is substituted when DigitalTwin is empty so the field is never
// serialized as invalid JSON.
var nullJSON = json.RawMessage("null")

// MarshalJSON keeps the "digitalTwin" key present even when no simulation
// value was attached.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	type alias QueryResponse
	out := alias(r)
	if len(bytes.TrimSpace(out.DigitalTwin)) == 0 {
		out.DigitalTwin = nullJSON
	}
	return json.Marshal(out)
}
