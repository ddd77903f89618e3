package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"miba-assist-go/internal/model"
)

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository creates the Redis-backed session store for
// multi-instance deployments. ttl bounds how long idle chat state survives.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisSessionRepository{client: client, ttl: ttl}
}

func historyKey(chatID string) string {
	return fmt.Sprintf("chat:%s:history", chatID)
}

func interactionsKey(chatID string) string {
	return fmt.Sprintf("chat:%s:interactions", chatID)
}

func (r *redisSessionRepository) History(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	jsonData, err := r.client.Get(ctx, historyKey(chatID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
	}
	return messages, nil
}

func (r *redisSessionRepository) AppendTurn(ctx context.Context, chatID, question, answer string) error {
	messages, err := r.History(ctx, chatID)
	if err != nil {
		return err
	}
	now := time.Now()
	messages = append(messages,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(messages) > HistoryWindow {
		messages = messages[len(messages)-HistoryWindow:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	if err := r.client.Set(ctx, historyKey(chatID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chat history: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Reset(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, historyKey(chatID), interactionsKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to reset chat state: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) SaveInteraction(ctx context.Context, chatID string, interaction model.Interaction) error {
	jsonData, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %w", err)
	}
	key := interactionsKey(chatID)
	if err := r.client.HSet(ctx, key, interaction.ID, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh interaction ttl: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) GetInteraction(ctx context.Context, chatID, interactionID string) (*model.Interaction, error) {
	jsonData, err := r.client.HGet(ctx, interactionsKey(chatID), interactionID).Result()
	if err == redis.Nil {
		return nil, ErrInteractionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	var interaction model.Interaction
	if err := json.Unmarshal([]byte(jsonData), &interaction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
	}
	return &interaction, nil
}

func (r *redisSessionRepository) RecordFeedback(ctx context.Context, chatID, interactionID, sentiment string) error {
	interaction, err := r.GetInteraction(ctx, chatID, interactionID)
	if err != nil {
		return err
	}
	if interaction.Feedback != model.FeedbackUnset {
		return ErrFeedbackLocked
	}
	interaction.Feedback = sentiment
	return r.SaveInteraction(ctx, chatID, *interaction)
}
