package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"miba-assist-go/internal/model"
	"miba-assist-go/internal/repository"
	"miba-assist-go/pkg/kafka"
	"miba-assist-go/pkg/log"
)

// ChatService orchestrates a full conversational turn: preprocessing, the
// RAG pipeline, session bookkeeping and analytics fan-out.
type ChatService interface {
	HandleQuery(ctx context.Context, chatID, query string) (*model.Interaction, error)
	ResetChat(ctx context.Context, chatID string)
	GetInteraction(ctx context.Context, chatID, interactionID string) (*model.Interaction, error)
	RecordFeedback(ctx context.Context, chatID, interactionID, feedback string) error
}

type chatService struct {
	preprocessor PreprocessService
	rag          RAGService
	sessions     repository.SessionRepository
	logRepo      repository.InteractionLogRepository // optional
	producer     *kafka.Producer                     // optional
}

// NewChatService wires the turn orchestrator. logRepo and producer may be
// nil when analytics is disabled.
func NewChatService(preprocessor PreprocessService, rag RAGService, sessions repository.SessionRepository,
	logRepo repository.InteractionLogRepository, producer *kafka.Producer) ChatService {
	return &chatService{
		preprocessor: preprocessor,
		rag:          rag,
		sessions:     sessions,
		logRepo:      logRepo,
		producer:     producer,
	}
}

func (s *chatService) HandleQuery(ctx context.Context, chatID, query string) (*model.Interaction, error) {
	preprocessed := s.preprocessor.Preprocess(ctx, query)

	history, err := s.sessions.History(ctx, chatID)
	if err != nil {
		log.Errorf("failed to load history for chat %s, answering without it: %v", chatID, err)
		history = nil
	}

	result, err := s.rag.Answer(ctx, preprocessed, history)
	if err != nil {
		return nil, err
	}

	interaction := &model.Interaction{
		ID:                   uuid.NewString(),
		Question:             query,
		PreprocessedQuestion: preprocessed,
		Answer:               result.Answer,
		ContextDocs:          result.ContextDocs,
		Feedback:             model.FeedbackUnset,
		Timestamp:            time.Now(),
	}

	// History keeps the user's original wording, not the expanded query.
	if err := s.sessions.AppendTurn(ctx, chatID, query, result.Answer); err != nil {
		log.Errorf("failed to append turn for chat %s: %v", chatID, err)
	}
	if err := s.sessions.SaveInteraction(ctx, chatID, *interaction); err != nil {
		log.Errorf("failed to save interaction %s: %v", interaction.ID, err)
	}

	s.publishAnalytics(ctx, chatID, interaction)
	return interaction, nil
}

func (s *chatService) ResetChat(ctx context.Context, chatID string) {
	if err := s.sessions.Reset(ctx, chatID); err != nil {
		log.Errorf("failed to reset chat %s: %v", chatID, err)
	}
}

func (s *chatService) GetInteraction(ctx context.Context, chatID, interactionID string) (*model.Interaction, error) {
	return s.sessions.GetInteraction(ctx, chatID, interactionID)
}

func (s *chatService) RecordFeedback(ctx context.Context, chatID, interactionID, feedback string) error {
	if err := s.sessions.RecordFeedback(ctx, chatID, interactionID, feedback); err != nil {
		return err
	}

	if s.logRepo != nil {
		if err := s.logRepo.UpdateFeedback(interactionID, feedback); err != nil {
			log.Errorf("failed to persist feedback for interaction %s: %v", interactionID, err)
		}
	}
	if s.producer != nil {
		event := kafka.InteractionEvent{
			InteractionID: interactionID,
			ChatID:        chatID,
			Feedback:      feedback,
			Timestamp:     time.Now(),
		}
		if err := s.producer.PublishInteraction(ctx, event); err != nil {
			log.Errorf("failed to publish feedback event for interaction %s: %v", interactionID, err)
		}
	}
	return nil
}

// publishAnalytics fans the finished turn out to the interaction log table
// and the event stream. Failures only log; the answer is already delivered.
func (s *chatService) publishAnalytics(ctx context.Context, chatID string, interaction *model.Interaction) {
	contexts := make([]string, 0, len(interaction.ContextDocs))
	sourceKeys := make([]string, 0, len(interaction.ContextDocs))
	for _, d := range interaction.ContextDocs {
		contexts = append(contexts, d.PageContent)
		sourceKeys = append(sourceKeys, d.SourceKey())
	}

	if s.logRepo != nil {
		entry := &model.InteractionLog{
			InteractionID:        interaction.ID,
			ChatID:               chatID,
			Question:             interaction.Question,
			PreprocessedQuestion: interaction.PreprocessedQuestion,
			Answer:               interaction.Answer,
			SourceKeys:           strings.Join(sourceKeys, ","),
		}
		if err := s.logRepo.Create(entry); err != nil {
			log.Errorf("failed to write interaction log %s: %v", interaction.ID, err)
		}
	}
	if s.producer != nil {
		event := kafka.InteractionEvent{
			InteractionID:        interaction.ID,
			ChatID:               chatID,
			Question:             interaction.Question,
			PreprocessedQuestion: interaction.PreprocessedQuestion,
			Answer:               interaction.Answer,
			Contexts:             contexts,
			SourceKeys:           sourceKeys,
			Timestamp:            interaction.Timestamp,
		}
		if err := s.producer.PublishInteraction(ctx, event); err != nil {
			log.Errorf("failed to publish interaction event %s: %v", interaction.ID, err)
		}
	}
}
