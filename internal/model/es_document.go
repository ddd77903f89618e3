package model

// ChunkDocument is the shape stored in the Elasticsearch hybrid index:
// one chunk of a corpus document plus its embedding vector.
type ChunkDocument struct {
	ChunkKey     string    `json:"chunk_key"` // sourceKey_chunkIndex
	SourceKey    string    `json:"source_key"`
	ChunkIndex   int       `json:"chunk_index"`
	Title        string    `json:"title"`
	Topics       string    `json:"topics"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// ToDocument converts an index hit back into the retrieval Document shape.
func (c ChunkDocument) ToDocument() Document {
	return Document{
		PageContent: c.TextContent,
		Metadata: map[string]string{
			MetaTitle:     c.Title,
			MetaTopics:    c.Topics,
			MetaSourceKey: c.SourceKey,
		},
	}
}
