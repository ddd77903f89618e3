package pipeline

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Metadata is the LLM-extracted document summary.
type Metadata struct {
	Title  string `json:"title"`
	Topics string `json:"topics"`
}

// MetadataParseError reports an LLM metadata response that could not be
// parsed. The raw response is retained for logging.
type MetadataParseError struct {
	Raw string
	Err error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("could not parse metadata response %q: %v", e.Raw, e.Err)
}

func (e *MetadataParseError) Unwrap() error {
	return e.Err
}

// ParseMetadata parses the model's JSON answer, tolerating Markdown code
// fences around the payload. An empty response or invalid JSON yields a
// *MetadataParseError; callers substitute DefaultMetadata.
func ParseMetadata(raw string) (Metadata, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return Metadata{}, &MetadataParseError{Raw: raw, Err: fmt.Errorf("empty response")}
	}

	var md Metadata
	if err := json.Unmarshal([]byte(cleaned), &md); err != nil {
		return Metadata{}, &MetadataParseError{Raw: raw, Err: err}
	}
	if md.Topics == "" {
		md.Topics = "not defined"
	}
	return md, nil
}

// DefaultMetadata derives a deterministic fallback from the object key.
func DefaultMetadata(objectKey string) Metadata {
	return Metadata{
		Title:  fmt.Sprintf("File %s", path.Base(objectKey)),
		Topics: "not defined",
	}
}
