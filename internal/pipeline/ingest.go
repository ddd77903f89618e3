package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/llm"
	"miba-assist-go/pkg/log"
	"miba-assist-go/pkg/storage"
	"miba-assist-go/pkg/tika"
)

// metadataPromptLimit caps how much document text the metadata-extraction
// prompt sees. The full content is still indexed.
const metadataPromptLimit = 1800

const metadataInstruction = "Extract the title of the document and summarize the main topics. " +
	`Respond in JSON format with keys "title" (string) and "topics" (string, comma-separated). ` +
	`Example: {"title": "Document Name", "topics": "topic1, topic2, topic3"}. ` +
	`If extraction fails, use {"title": "Default Title", "topics": "not defined"}.`

// Ingestor produces the enriched document set, either from the local cache
// artifact or by a full pass over object storage.
type Ingestor struct {
	store     storage.ObjectStorage
	llmClient llm.Client
	tika      *tika.Client
	cacheFile string
	force     bool
}

// NewIngestor wires an ingestor.
func NewIngestor(store storage.ObjectStorage, llmClient llm.Client, tikaClient *tika.Client, cacheFile string, force bool) *Ingestor {
	return &Ingestor{
		store:     store,
		llmClient: llmClient,
		tika:      tikaClient,
		cacheFile: cacheFile,
		force:     force,
	}
}

// Documents returns the enriched corpus. The cache artifact is used when it
// is present, non-empty, and parseable, unless a forced refresh is requested.
func (ing *Ingestor) Documents(ctx context.Context) ([]model.Document, error) {
	if !ing.force {
		docs, err := ing.loadCache()
		if err == nil {
			log.Infof("loaded %d documents from cache '%s'", len(docs), ing.cacheFile)
			return docs, nil
		}
		log.Warnf("document cache unusable (%v), ingesting from object storage", err)
	}

	keys, err := ing.store.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus objects: %w", err)
	}
	log.Infof("found %d corpus objects to process", len(keys))
	if len(keys) == 0 {
		return nil, errors.New("no corpus objects found in object storage")
	}

	docs := make([]model.Document, 0, len(keys))
	for _, key := range keys {
		docs = append(docs, ing.processObject(ctx, key))
	}

	if err := ing.saveCache(docs); err != nil {
		// Cache write failure costs a re-ingest on next start, nothing more.
		log.Errorf("failed to save document cache: %v", err)
	}
	return docs, nil
}

// processObject turns one storage object into an enriched Document. Any
// failure is confined to this object: the result is then a placeholder
// document recording the error.
func (ing *Ingestor) processObject(ctx context.Context, key string) model.Document {
	log.Infof("processing corpus object '%s'", key)

	data, err := ing.store.FetchObject(ctx, key)
	if err != nil {
		log.Errorf("failed to fetch object '%s': %v", key, err)
		return placeholderDocument(key, err)
	}

	content, err := ing.extractText(data, key)
	if err != nil {
		log.Errorf("failed to extract text from '%s': %v", key, err)
		return placeholderDocument(key, err)
	}

	md := ing.extractMetadata(ctx, key, content)
	return model.Document{
		PageContent: content,
		Metadata: map[string]string{
			model.MetaTitle:     md.Title,
			model.MetaTopics:    md.Topics,
			model.MetaSourceKey: key,
		},
	}
}

// extractText runs Tika when configured, otherwise treats the object bytes
// as UTF-8 text.
func (ing *Ingestor) extractText(data []byte, key string) (string, error) {
	if ing.tika != nil && ing.tika.Enabled() {
		return ing.tika.ExtractText(bytes.NewReader(data), key)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("object '%s' is not valid UTF-8 and no text extractor is configured", key)
	}
	return string(data), nil
}

// extractMetadata asks the LLM for a title/topics summary of the document's
// head. Every failure path degrades to a deterministic default.
func (ing *Ingestor) extractMetadata(ctx context.Context, key, content string) Metadata {
	head := content
	if runes := []rune(head); len(runes) > metadataPromptLimit {
		head = string(runes[:metadataPromptLimit])
	}

	temp := 0.0
	maxTokens := 200
	raw, err := ing.llmClient.Complete(ctx, []llm.Message{
		{Role: "user", Content: metadataInstruction + "\n\n" + head},
	}, &llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		log.Errorf("metadata extraction call failed for '%s': %v", key, err)
		return DefaultMetadata(key)
	}

	md, err := ParseMetadata(raw)
	if err != nil {
		log.Warnf("metadata parse failed for '%s': %v", key, err)
		return DefaultMetadata(key)
	}
	if md.Title == "" {
		md.Title = DefaultMetadata(key).Title
	}
	log.Infof("extracted metadata for '%s': title=%q topics=%q", key, md.Title, md.Topics)
	return md
}

func placeholderDocument(key string, cause error) model.Document {
	return model.Document{
		PageContent: fmt.Sprintf("Error processing content from %s. Error: %v", key, cause),
		Metadata: map[string]string{
			model.MetaTitle:     "Error Document",
			model.MetaTopics:    "error",
			model.MetaSourceKey: key,
		},
	}
}

// loadCache reads the serialized document artifact. Missing, empty, or
// corrupt artifacts are reported as errors so ingestion re-runs.
func (ing *Ingestor) loadCache() ([]model.Document, error) {
	data, err := os.ReadFile(ing.cacheFile)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("cache artifact is empty")
	}
	var docs []model.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("cache artifact is corrupt: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("cache artifact holds no documents")
	}
	return docs, nil
}

// saveCache replaces the artifact wholesale after a full ingestion run.
func (ing *Ingestor) saveCache(docs []model.Document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(ing.cacheFile, data, 0o644); err != nil {
		return err
	}
	log.Infof("saved %d documents to cache '%s' at %s", len(docs), ing.cacheFile, time.Now().Format(time.RFC3339))
	return nil
}
