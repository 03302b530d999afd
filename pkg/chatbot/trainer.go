package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/twinbot/pkg/corpus"
	"github.com/rhuss/twinbot/pkg/debug"
	"github.com/rhuss/twinbot/pkg/storage"
)

// Trainer writes corpus conversations into a statement store.
type Trainer struct {
	store  storage.StatementStore
	logger *slog.Logger
}

// NewTrainer creates a trainer for the given store.
func NewTrainer(store storage.StatementStore, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{store: store, logger: logger}
}

// Statements converts corpora into statements. Within a conversation each
// utterance responds to the one before it; the first responds to nothing.
func Statements(corpora []*corpus.Corpus) []storage.Statement {
	var out []storage.Statement
	now := time.Now().UTC()
	for _, c := range corpora {
		category := c.Category()
		for _, conv := range c.Conversations {
			previous := ""
			for _, text := range conv {
				out = append(out, storage.Statement{
					Text:               text,
					SearchText:         SearchText(text),
					InResponseTo:       previous,
					SearchInResponseTo: SearchText(previous),
					Conversation:       category,
					CreatedAt:          now,
				})
				previous = text
			}
		}
	}
	return out
}

// Train appends the statements of corpora to the store and returns how many
// were written.
func (t *Trainer) Train(ctx context.Context, corpora []*corpus.Corpus) (int, error) {
	statements := Statements(corpora)
	if len(statements) == 0 {
		return 0, fmt.Errorf("training: %w", corpus.ErrEmpty)
	}

	start := time.Now()
	if err := t.store.SaveStatements(ctx, statements); err != nil {
		return 0, fmt.Errorf("saving statements: %w", err)
	}

	t.logger.Info("training completed",
		"corpora", len(corpora),
		"statements", len(statements),
		"duration", time.Since(start),
	)
	debug.Log("corpus", "trained", "statements", len(statements))
	return len(statements), nil
}

// Retrain clears the store and trains from scratch.
func (t *Trainer) Retrain(ctx context.Context, corpora []*corpus.Corpus) (int, error) {
	if err := t.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clearing statements: %w", err)
	}
	return t.Train(ctx, corpora)
}

// EnsureTrained trains only when the store holds no statements. It reports
// whether training ran.
func (t *Trainer) EnsureTrained(ctx context.Context, corpora []*corpus.Corpus) (bool, error) {
	n, err := t.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("counting statements: %w", err)
	}
	if n > 0 {
		t.logger.Info("statement store already trained, skipping training", "statements", n)
		return false, nil
	}
	if _, err := t.Train(ctx, corpora); err != nil {
		return false, err
	}
	return true, nil
}
