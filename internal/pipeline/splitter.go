// Package pipeline implements the build-time document flow: ingestion from
// object storage, metadata enrichment, chunking, and index population.
package pipeline

import (
	"fmt"
	"strings"

	"miba-assist-go/internal/model"
)

// separators, in preference order, used to place chunk boundaries:
// paragraph break, line break, word break, then sentence/clause punctuation.
var separators = []string{"\n\n", "\n", " ", ".", ","}

// SplitText splits text into chunks of at most chunkSize runes, with
// consecutive chunks overlapping by chunkOverlap runes. Boundaries prefer the
// highest-priority separator found in the second half of the window so chunks
// break at natural points rather than mid-word.
func SplitText(text string, chunkSize, chunkOverlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Look for a separator in the back half of the window.
		window := string(runes[start:end])
		cut := -1
		for _, sep := range separators {
			idx := strings.LastIndex(window, sep)
			if idx >= 0 && idx > len(window)/2 {
				cut = idx + len(sep)
				break
			}
		}
		if cut > 0 {
			end = start + len([]rune(window[:cut]))
		}

		chunks = append(chunks, string(runes[start:end]))

		next := end - chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// SplitDocuments chunks every document, inheriting its metadata and recording
// the chunk position under the chunk_index key.
func SplitDocuments(docs []model.Document, chunkSize, chunkOverlap int) []model.Document {
	var out []model.Document
	for _, doc := range docs {
		pieces := SplitText(doc.PageContent, chunkSize, chunkOverlap)
		for i, piece := range pieces {
			meta := doc.CloneMetadata()
			meta[model.MetaChunkIndex] = fmt.Sprintf("%d", i)
			out = append(out, model.Document{PageContent: piece, Metadata: meta})
		}
	}
	return out
}
