package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miba-assist-go/internal/model"
)

// Both implementations must satisfy the same behavioral contract, so every
// test runs against both.
func repositories(t *testing.T) map[string]SessionRepository {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]SessionRepository{
		"memory": NewMemorySessionRepository(),
		"redis":  NewRedisSessionRepository(client, time.Hour),
	}
}

func TestHistory_EmptyForNewChat(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			history, err := repo.History(context.Background(), "chat-1")
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestAppendTurn_RecordsBothRoles(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.AppendTurn(ctx, "chat-1", "question?", "answer."))

			history, err := repo.History(ctx, "chat-1")
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, "user", history[0].Role)
			assert.Equal(t, "question?", history[0].Content)
			assert.Equal(t, "assistant", history[1].Role)
			assert.Equal(t, "answer.", history[1].Content)
		})
	}
}

func TestAppendTurn_TrimsToWindow(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < HistoryWindow; i++ {
				require.NoError(t, repo.AppendTurn(ctx, "chat-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
			}

			history, err := repo.History(ctx, "chat-1")
			require.NoError(t, err)
			require.Len(t, history, HistoryWindow)

			// Oldest turns were dropped; the window ends with the newest.
			assert.Equal(t, fmt.Sprintf("q%d", HistoryWindow/2), history[0].Content)
			assert.Equal(t, fmt.Sprintf("a%d", HistoryWindow-1), history[len(history)-1].Content)
		})
	}
}

func TestHistory_IsolatedPerChat(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.AppendTurn(ctx, "chat-1", "q", "a"))

			other, err := repo.History(ctx, "chat-2")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestReset_ClearsHistoryAndInteractions(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.AppendTurn(ctx, "chat-1", "q", "a"))
			require.NoError(t, repo.SaveInteraction(ctx, "chat-1", model.Interaction{ID: "i-1", Answer: "a"}))

			require.NoError(t, repo.Reset(ctx, "chat-1"))

			history, err := repo.History(ctx, "chat-1")
			require.NoError(t, err)
			assert.Empty(t, history)

			_, err = repo.GetInteraction(ctx, "chat-1", "i-1")
			assert.ErrorIs(t, err, ErrInteractionNotFound)
		})
	}
}

func TestSaveAndGetInteraction(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved := model.Interaction{
				ID:       "i-1",
				Question: "q",
				Answer:   "a",
				ContextDocs: []model.Document{
					{PageContent: "ctx", Metadata: map[string]string{model.MetaSourceKey: "docs/a.txt"}},
				},
			}
			require.NoError(t, repo.SaveInteraction(ctx, "chat-1", saved))

			got, err := repo.GetInteraction(ctx, "chat-1", "i-1")
			require.NoError(t, err)
			assert.Equal(t, "q", got.Question)
			require.Len(t, got.ContextDocs, 1)
			assert.Equal(t, "docs/a.txt", got.ContextDocs[0].SourceKey())
		})
	}
}

func TestGetInteraction_UnknownID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetInteraction(context.Background(), "chat-1", "missing")
			assert.ErrorIs(t, err, ErrInteractionNotFound)
		})
	}
}

func TestRecordFeedback_SetsOnce(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.SaveInteraction(ctx, "chat-1", model.Interaction{ID: "i-1"}))

			require.NoError(t, repo.RecordFeedback(ctx, "chat-1", "i-1", model.FeedbackPositive))

			got, err := repo.GetInteraction(ctx, "chat-1", "i-1")
			require.NoError(t, err)
			assert.Equal(t, model.FeedbackPositive, got.Feedback)
		})
	}
}

func TestRecordFeedback_SecondAttemptLocked(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.SaveInteraction(ctx, "chat-1", model.Interaction{ID: "i-1"}))
			require.NoError(t, repo.RecordFeedback(ctx, "chat-1", "i-1", model.FeedbackPositive))

			err := repo.RecordFeedback(ctx, "chat-1", "i-1", model.FeedbackNegative)
			assert.ErrorIs(t, err, ErrFeedbackLocked)

			// The first sentiment must survive.
			got, err := repo.GetInteraction(ctx, "chat-1", "i-1")
			require.NoError(t, err)
			assert.Equal(t, model.FeedbackPositive, got.Feedback)
		})
	}
}

func TestRecordFeedback_UnknownInteraction(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.RecordFeedback(context.Background(), "chat-1", "missing", model.FeedbackPositive)
			assert.ErrorIs(t, err, ErrInteractionNotFound)
		})
	}
}
