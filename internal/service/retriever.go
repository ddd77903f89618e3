package service

import (
	"context"

	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/embedding"
	"miba-assist-go/pkg/es"
	"miba-assist-go/pkg/log"
)

// HybridRetriever embeds the query and runs the combined keyword/vector
// search. Retrieval failures are absorbed: callers always get a slice,
// possibly empty, never an error.
type HybridRetriever struct {
	store    es.SearchStore
	embedder embedding.Client
	topK     int
}

// NewHybridRetriever wires the retriever to an attached search store.
func NewHybridRetriever(store es.SearchStore, embedder embedding.Client, topK int) *HybridRetriever {
	return &HybridRetriever{store: store, embedder: embedder, topK: topK}
}

// Retrieve returns up to topK fused chunks for the query, without scores.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) []model.Document {
	if !r.store.HybridEnabled() {
		log.Warnf("hybrid search flag was off at query time, re-enabling")
		r.store.EnableHybrid()
	}

	vector, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("failed to embed query %q: %v", query, err)
		return nil
	}

	chunks, _, err := r.store.HybridQuery(ctx, query, vector, r.topK)
	if err != nil {
		log.Errorf("hybrid query failed for %q: %v", query, err)
		return nil
	}

	docs := make([]model.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, c.ToDocument())
	}
	log.Infof("retrieved %d chunks for query %q", len(docs), query)
	return docs
}

// RetrieveAsync runs Retrieve in a goroutine and delivers the result on the
// returned channel, which is closed after the single send.
func (r *HybridRetriever) RetrieveAsync(ctx context.Context, query string) <-chan []model.Document {
	out := make(chan []model.Document, 1)
	go func() {
		defer close(out)
		out <- r.Retrieve(ctx, query)
	}()
	return out
}
