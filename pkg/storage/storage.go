package storage

import (
	"context"
	"time"
)

// Statement is one utterance learned from the training corpus.
//
// InResponseTo holds the text of the utterance this one answers; it is
// empty for the first line of a conversation. SearchText and
// SearchInResponseTo hold the normalized forms used for matching.
type Statement struct {
	ID                 int64     `json:"id"`
	Text               string    `json:"text"`
	SearchText         string    `json:"search_text"`
	InResponseTo       string    `json:"in_response_to,omitempty"`
	SearchInResponseTo string    `json:"search_in_response_to,omitempty"`
	Conversation       string    `json:"conversation,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// StatementStore persists training statements.
type StatementStore interface {
	// SaveStatements appends statements in order. IDs are assigned by the
	// store and increase with insertion order.
	SaveStatements(ctx context.Context, statements []Statement) error

	// Statements returns every stored statement in insertion order.
	Statements(ctx context.Context) ([]Statement, error)

	// Count returns the number of stored statements.
	Count(ctx context.Context) (int, error)

	// Clear removes all statements so that training can start over.
	Clear(ctx context.Context) error

	// HealthCheck verifies the store is usable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and file handles.
	Close() error
}

// Validate checks the statements before they are written.
func Validate(statements []Statement) error {
	for _, st := range statements {
		if st.Text == "" {
			return ErrInvalidStatement
		}
	}
	return nil
}
