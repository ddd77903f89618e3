// Package model holds the data structures shared across the application.
package model

// Metadata keys set during ingestion.
const (
	MetaTitle      = "title"
	MetaTopics     = "topics"
	MetaSourceKey  = "source_file_key"
	MetaChunkIndex = "chunk_index"
)

// Document is one corpus document: raw text content plus string metadata.
// Ingestion creates it and enriches the metadata; afterwards it is immutable.
type Document struct {
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata"`
}

// Title returns the LLM-extracted title, or an empty string.
func (d Document) Title() string {
	return d.Metadata[MetaTitle]
}

// SourceKey returns the object storage key the document came from.
func (d Document) SourceKey() string {
	return d.Metadata[MetaSourceKey]
}

// CloneMetadata returns a copy of the metadata map so chunks can extend it
// without aliasing the source document.
func (d Document) CloneMetadata() map[string]string {
	m := make(map[string]string, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		m[k] = v
	}
	return m
}
