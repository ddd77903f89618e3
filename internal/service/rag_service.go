package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/llm"
	"miba-assist-go/pkg/log"
)

// FallbackAnswer is emitted whenever no grounded answer can be produced.
const FallbackAnswer = "Based on my knowledge database, I could not find specific information about that. Please, push the Help button and contact the Office."

// ErrPipelineFailure is the generic signal surfaced to callers when an
// internal pipeline step fails. Details stay in the logs.
var ErrPipelineFailure = errors.New("rag pipeline failure")

const rewriteInstruction = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone " +
	"question which can be understood without the chat history. Do NOT answer " +
	"the question, just reformulate it if needed and otherwise return it as is."

const answerInstruction = `You are Mibi, an assistant for students of the Master in Business Analytics and Big Data (MiBA) program. Answer the question using ONLY the provided context below. Answer in the language the question was asked in. Be concise and specific.

If the context does not contain the information needed to answer, reply exactly with:
"` + FallbackAnswer + `"

Context:
%s`

// RAGResult carries the generated answer together with the chunks that
// grounded it, in retrieval order.
type RAGResult struct {
	Answer      string
	ContextDocs []model.Document
}

// RAGService runs the three-stage pipeline: history-aware rewrite, hybrid
// retrieval, grounded answer synthesis.
type RAGService interface {
	Answer(ctx context.Context, query string, history []model.ChatMessage) (*RAGResult, error)
}

type ragService struct {
	llmClient llm.Client
	retriever *HybridRetriever
}

// NewRAGService assembles the pipeline over a chat LLM and a retriever.
func NewRAGService(llmClient llm.Client, retriever *HybridRetriever) RAGService {
	return &ragService{llmClient: llmClient, retriever: retriever}
}

func (s *ragService) Answer(ctx context.Context, query string, history []model.ChatMessage) (*RAGResult, error) {
	standalone, err := s.rewrite(ctx, query, history)
	if err != nil {
		log.Errorf("question rewrite failed: %v", err)
		return nil, ErrPipelineFailure
	}

	docs := s.retriever.Retrieve(ctx, standalone)
	if len(docs) == 0 {
		// Zero matches must still yield the fallback sentence.
		log.Warnf("no context retrieved for %q, returning fallback", standalone)
		return &RAGResult{Answer: FallbackAnswer}, nil
	}

	answer, err := s.synthesize(ctx, standalone, history, docs)
	if err != nil {
		log.Errorf("answer synthesis failed: %v", err)
		return nil, ErrPipelineFailure
	}
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}
	return &RAGResult{Answer: answer, ContextDocs: docs}, nil
}

// rewrite folds the chat history into a standalone question. With no history
// the query passes through untouched and no LLM call is made.
func (s *ragService) rewrite(ctx context.Context, query string, history []model.ChatMessage) (string, error) {
	if len(history) == 0 {
		return query, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: rewriteInstruction})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})

	temp := 0.0
	standalone, err := s.llmClient.Complete(ctx, messages, &llm.GenerationParams{Temperature: &temp})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(standalone) == "" {
		return query, nil
	}
	log.Infof("rewrote %q into standalone question %q", query, standalone)
	return standalone, nil
}

func (s *ragService) synthesize(ctx context.Context, question string, history []model.ChatMessage, docs []model.Document) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: fmt.Sprintf(answerInstruction, buildContextBlock(docs)),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	return s.llmClient.Complete(ctx, messages, nil)
}

// buildContextBlock flattens the retrieved chunks into the prompt, labeling
// each with its source document title.
func buildContextBlock(docs []model.Document) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, d.Title(), d.PageContent)
	}
	return strings.TrimRight(b.String(), "\n")
}
