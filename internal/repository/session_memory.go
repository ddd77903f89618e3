package repository

import (
	"context"
	"sync"
	"time"

	"miba-assist-go/internal/model"
)

// chatState is one chat's retained state. Its mutex serializes history and
// interaction mutation for that chat, since the hosting transport may
// dispatch overlapping events for the same chat.
type chatState struct {
	mu           sync.Mutex
	history      []model.ChatMessage
	interactions map[string]model.Interaction
}

type memorySessionRepository struct {
	mu    sync.Mutex
	chats map[string]*chatState
}

// NewMemorySessionRepository creates the in-process session store.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{chats: make(map[string]*chatState)}
}

func (r *memorySessionRepository) chat(chatID string) *chatState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.chats[chatID]
	if !ok {
		st = &chatState{interactions: make(map[string]model.Interaction)}
		r.chats[chatID] = st
	}
	return st
}

func (r *memorySessionRepository) History(_ context.Context, chatID string) ([]model.ChatMessage, error) {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]model.ChatMessage, len(st.history))
	copy(out, st.history)
	return out, nil
}

func (r *memorySessionRepository) AppendTurn(_ context.Context, chatID, question, answer string) error {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now()
	st.history = append(st.history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(st.history) > HistoryWindow {
		st.history = st.history[len(st.history)-HistoryWindow:]
	}
	return nil
}

func (r *memorySessionRepository) Reset(_ context.Context, chatID string) error {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.history = nil
	st.interactions = make(map[string]model.Interaction)
	return nil
}

func (r *memorySessionRepository) SaveInteraction(_ context.Context, chatID string, interaction model.Interaction) error {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.interactions[interaction.ID] = interaction
	return nil
}

func (r *memorySessionRepository) GetInteraction(_ context.Context, chatID, interactionID string) (*model.Interaction, error) {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	interaction, ok := st.interactions[interactionID]
	if !ok {
		return nil, ErrInteractionNotFound
	}
	return &interaction, nil
}

func (r *memorySessionRepository) RecordFeedback(_ context.Context, chatID, interactionID, sentiment string) error {
	st := r.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	interaction, ok := st.interactions[interactionID]
	if !ok {
		return ErrInteractionNotFound
	}
	if interaction.Feedback != model.FeedbackUnset {
		return ErrFeedbackLocked
	}
	interaction.Feedback = sentiment
	st.interactions[interactionID] = interaction
	return nil
}
