package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/embedding"
	"miba-assist-go/pkg/es"
	"miba-assist-go/pkg/log"
)

// embedBatchSize bounds how many chunk texts go into one embedding request.
const embedBatchSize = 32

// IndexBuilder ensures the hybrid index exists and is populated, returning a
// store handle ready for query-time use.
type IndexBuilder struct {
	store        es.SearchStore
	embedder     embedding.Client
	modelVersion string
	forceRebuild bool
}

// NewIndexBuilder wires an index builder.
func NewIndexBuilder(store es.SearchStore, embedder embedding.Client, modelVersion string, forceRebuild bool) *IndexBuilder {
	return &IndexBuilder{
		store:        store,
		embedder:     embedder,
		modelVersion: modelVersion,
		forceRebuild: forceRebuild,
	}
}

// EnsureIndex applies the build policy: create-and-load when the index is
// missing, delete-recreate-reload on a forced rebuild, attach without
// reloading otherwise. Hybrid mode is asserted on the handle in every case.
func (b *IndexBuilder) EnsureIndex(ctx context.Context, chunks []model.Document) error {
	exists, err := b.store.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}

	switch {
	case exists && !b.forceRebuild:
		log.Info("attaching to existing index without reloading")
	case exists && b.forceRebuild:
		log.Info("force rebuild requested, deleting existing index")
		if err := b.store.DeleteIndex(ctx); err != nil {
			return fmt.Errorf("failed to delete index for rebuild: %w", err)
		}
		fallthrough
	default:
		if err := b.store.CreateIndex(ctx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := b.loadChunks(ctx, chunks); err != nil {
			return err
		}
	}

	b.store.EnableHybrid()
	return nil
}

// loadChunks embeds chunk texts in batches and bulk-indexes them.
func (b *IndexBuilder) loadChunks(ctx context.Context, chunks []model.Document) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}
	log.Infof("embedding and indexing %d chunks", len(chunks))

	for offset := 0; offset < len(chunks); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.PageContent
		}
		vectors, err := b.embedder.CreateEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch at offset %d: %w", offset, err)
		}

		docs := make([]model.ChunkDocument, len(batch))
		for i, c := range batch {
			chunkIndex, _ := strconv.Atoi(c.Metadata[model.MetaChunkIndex])
			docs[i] = model.ChunkDocument{
				ChunkKey:     fmt.Sprintf("%s_%d", c.SourceKey(), chunkIndex),
				SourceKey:    c.SourceKey(),
				ChunkIndex:   chunkIndex,
				Title:        c.Metadata[model.MetaTitle],
				Topics:       c.Metadata[model.MetaTopics],
				TextContent:  c.PageContent,
				Vector:       vectors[i],
				ModelVersion: b.modelVersion,
			}
		}
		if err := b.store.BulkIndex(ctx, docs); err != nil {
			return fmt.Errorf("failed to bulk index chunk batch at offset %d: %w", offset, err)
		}
	}

	log.Infof("index population complete, %d chunks", len(chunks))
	return nil
}
