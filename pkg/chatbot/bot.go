package chatbot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rhuss/twinbot/pkg/debug"
	"github.com/rhuss/twinbot/pkg/storage"
)

// DefaultResponse is returned when no known input is close enough.
const DefaultResponse = "I am sorry, but I do not understand."

// ErrUntrained is returned by New when the store holds no statements.
var ErrUntrained = errors.New("chatbot has no trained statements")

// ResponseProvider produces a reply for free text.
type ResponseProvider interface {
	GetResponse(ctx context.Context, query string) (string, error)
}

// Config controls response selection.
type Config struct {
	// Name identifies the bot in logs.
	Name string

	// DefaultResponse is returned for input below MinConfidence.
	DefaultResponse string

	// MinConfidence is the lowest similarity accepted as a match. Zero
	// accepts any candidate.
	MinConfidence float64
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "DigitalTwinBot"
	}
	if c.DefaultResponse == "" {
		c.DefaultResponse = DefaultResponse
	}
}

// Match describes how a reply was chosen.
type Match struct {
	// Text is the reply.
	Text string

	// Confidence is the similarity between the query and the matched input.
	Confidence float64

	// Input is the known statement the query was matched to. Empty when
	// the default response was used.
	Input string

	// Default is true when the default response was returned.
	Default bool
}

// known is one input statement with every response recorded for it.
type known struct {
	text       string
	searchText string
	responses  []string
}

// Bot is a trained response matcher. It is immutable after New and safe for
// concurrent use.
type Bot struct {
	cfg        Config
	inputs     []known
	bySearch   map[string]int
	statements int
}

// Ensure Bot implements ResponseProvider at compile time.
var _ ResponseProvider = (*Bot)(nil)

// New loads every statement from store and builds the matching index.
func New(ctx context.Context, store storage.StatementStore, cfg Config) (*Bot, error) {
	cfg.defaults()

	statements, err := store.Statements(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading statements: %w", err)
	}
	if len(statements) == 0 {
		return nil, ErrUntrained
	}

	b := &Bot{
		cfg:        cfg,
		bySearch:   make(map[string]int),
		statements: len(statements),
	}
	for _, st := range statements {
		if st.InResponseTo == "" {
			continue
		}
		key := st.SearchInResponseTo
		if key == "" {
			key = SearchText(st.InResponseTo)
		}
		idx, ok := b.bySearch[key]
		if !ok {
			idx = len(b.inputs)
			b.bySearch[key] = idx
			b.inputs = append(b.inputs, known{text: st.InResponseTo, searchText: key})
		}
		b.inputs[idx].responses = append(b.inputs[idx].responses, st.Text)
	}
	if len(b.inputs) == 0 {
		return nil, fmt.Errorf("%w: no statement responds to another", ErrUntrained)
	}

	debug.Log("chatbot", "index built", "name", cfg.Name, "statements", len(statements), "inputs", len(b.inputs))
	return b, nil
}

// Name returns the configured bot name.
func (b *Bot) Name() string {
	return b.cfg.Name
}

// Size returns the number of statements and distinct known inputs.
func (b *Bot) Size() (statements, inputs int) {
	return b.statements, len(b.inputs)
}

// GetResponse returns the reply for query. It never fails for a built Bot;
// unmatched input yields the default response.
func (b *Bot) GetResponse(ctx context.Context, query string) (string, error) {
	return b.Respond(ctx, query).Text, nil
}

// Respond matches query against the known inputs.
func (b *Bot) Respond(_ context.Context, query string) Match {
	search := SearchText(query)

	best, confidence := -1, -1.0
	if idx, ok := b.bySearch[search]; ok {
		best, confidence = idx, 1
	} else {
		for i, in := range b.inputs {
			// Strict comparison keeps the earliest input on ties.
			if c := Similarity(search, in.searchText); c > confidence {
				best, confidence = i, c
			}
		}
	}

	if best < 0 || confidence < b.cfg.MinConfidence {
		debug.Log("chatbot", "no match", "query", debug.Truncate(query, 80), "confidence", confidence)
		return Match{Text: b.cfg.DefaultResponse, Confidence: max(confidence, 0), Default: true}
	}

	in := b.inputs[best]
	reply := mostFrequent(in.responses)
	debug.Log("chatbot", "matched",
		"query", debug.Truncate(query, 80),
		"input", in.text,
		"confidence", confidence,
		"candidates", len(in.responses),
	)
	return Match{Text: reply, Confidence: confidence, Input: in.text}
}

// mostFrequent returns the most common entry; ties go to the lexically
// smallest so repeated queries always get the same reply.
func mostFrequent(responses []string) string {
	counts := make(map[string]int, len(responses))
	for _, r := range responses {
		counts[r]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}
