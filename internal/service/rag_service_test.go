package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/llm"
)

// scriptedLLM returns canned responses in call order.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     [][]llm.Message
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []llm.Message, params *llm.GenerationParams) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, messages)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	resp := ""
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func newTestRAG(llmClient llm.Client, store *fakeSearchStore) RAGService {
	retriever := NewHybridRetriever(store, &fakeEmbedder{}, 5)
	return NewRAGService(llmClient, retriever)
}

func TestAnswer_NoHistorySkipsRewrite(t *testing.T) {
	llmClient := &scriptedLLM{responses: []string{"The deadline is June 1."}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}

	result, err := newTestRAG(llmClient, store).Answer(context.Background(), "when is the deadline", nil)
	require.NoError(t, err)
	assert.Equal(t, "The deadline is June 1.", result.Answer)
	assert.Len(t, result.ContextDocs, 2)

	// Only the synthesis call was made; the standalone query went straight
	// to retrieval.
	require.Len(t, llmClient.calls, 1)
	assert.Equal(t, "when is the deadline", store.lastQuery)
}

func TestAnswer_HistoryTriggersRewrite(t *testing.T) {
	llmClient := &scriptedLLM{responses: []string{
		"when is the MiBA application deadline", // rewrite
		"The application deadline is June 1.",   // synthesis
	}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}
	history := []model.ChatMessage{
		{Role: "user", Content: "tell me about MiBA applications"},
		{Role: "assistant", Content: "Applications open in spring."},
	}

	result, err := newTestRAG(llmClient, store).Answer(context.Background(), "and when is the deadline", history)
	require.NoError(t, err)
	assert.Equal(t, "The application deadline is June 1.", result.Answer)

	require.Len(t, llmClient.calls, 2)
	// Retrieval used the rewritten standalone question.
	assert.Equal(t, "when is the MiBA application deadline", store.lastQuery)
	// The rewrite call carried the history.
	assert.Len(t, llmClient.calls[0], 4)
}

func TestAnswer_ZeroMatchesReturnsFallback(t *testing.T) {
	llmClient := &scriptedLLM{}
	store := &fakeSearchStore{hybrid: true} // no chunks

	result, err := newTestRAG(llmClient, store).Answer(context.Background(), "unknown topic", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.Empty(t, result.ContextDocs)
	assert.Empty(t, llmClient.calls)
}

func TestAnswer_RetrievalFailureReturnsFallback(t *testing.T) {
	llmClient := &scriptedLLM{}
	store := &fakeSearchStore{hybrid: true, queryErr: errors.New("search down")}

	result, err := newTestRAG(llmClient, store).Answer(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer)
}

func TestAnswer_SynthesisFailureIsGeneric(t *testing.T) {
	llmClient := &scriptedLLM{errs: []error{errors.New("model down")}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}

	_, err := newTestRAG(llmClient, store).Answer(context.Background(), "question", nil)
	require.ErrorIs(t, err, ErrPipelineFailure)
}

func TestAnswer_RewriteFailureIsGeneric(t *testing.T) {
	llmClient := &scriptedLLM{errs: []error{errors.New("model down")}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}
	history := []model.ChatMessage{{Role: "user", Content: "hi"}}

	_, err := newTestRAG(llmClient, store).Answer(context.Background(), "question", history)
	require.ErrorIs(t, err, ErrPipelineFailure)
}

func TestAnswer_EmptySynthesisFallsBack(t *testing.T) {
	llmClient := &scriptedLLM{responses: []string{"   "}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}

	result, err := newTestRAG(llmClient, store).Answer(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer)
}

func TestAnswer_ContextBlockCarriesTitlesAndContent(t *testing.T) {
	llmClient := &scriptedLLM{responses: []string{"answer"}}
	store := &fakeSearchStore{hybrid: true, chunks: sampleChunks()}

	_, err := newTestRAG(llmClient, store).Answer(context.Background(), "question", nil)
	require.NoError(t, err)

	system := llmClient.calls[0][0].Content
	assert.Contains(t, system, "Doc A")
	assert.Contains(t, system, "content a")
	assert.Contains(t, system, "Doc B")
	assert.Contains(t, system, FallbackAnswer)
}
