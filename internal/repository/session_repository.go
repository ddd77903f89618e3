// Package repository provides the data access layer: chat session state and
// the durable interaction log.
package repository

import (
	"context"
	"errors"

	"miba-assist-go/internal/model"
)

// HistoryWindow caps retained chat history at 10 question/answer pairs.
const HistoryWindow = 20

// Errors surfaced by feedback recording.
var (
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrFeedbackLocked      = errors.New("feedback already recorded")
)

// SessionRepository owns per-chat state: the bounded message history and the
// interaction table that sources/feedback callbacks refer back to. One
// implementation is in-process (single instance deployments), the other is
// Redis-backed (multi-instance deployments).
type SessionRepository interface {
	// History returns the chat's retained messages, oldest first.
	History(ctx context.Context, chatID string) ([]model.ChatMessage, error)
	// AppendTurn records one question/answer pair and trims to the window.
	AppendTurn(ctx context.Context, chatID, question, answer string) error
	// Reset clears the chat's history and interaction table.
	Reset(ctx context.Context, chatID string) error
	// SaveInteraction stores an answered interaction under its ID.
	SaveInteraction(ctx context.Context, chatID string, interaction model.Interaction) error
	// GetInteraction looks up a stored interaction.
	GetInteraction(ctx context.Context, chatID, interactionID string) (*model.Interaction, error)
	// RecordFeedback sets the feedback value once. A second attempt returns
	// ErrFeedbackLocked; an unknown ID returns ErrInteractionNotFound.
	RecordFeedback(ctx context.Context, chatID, interactionID, sentiment string) error
}
