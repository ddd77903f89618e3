package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miba-assist-go/internal/model"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("short text", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplitText_EmptyText(t *testing.T) {
	assert.Nil(t, SplitText("", 100, 10))
}

func TestSplitText_RespectsMaxSize(t *testing.T) {
	text := strings.Repeat("word word word. ", 200)
	chunks := SplitText(text, 150, 20)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 150, "chunk %d exceeds size", i)
	}
}

func TestSplitText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	chunks := SplitText(text, 120, 30)
	require.NotEmpty(t, chunks)

	// Every chunk must appear in the original, and the last chunk must end
	// where the text ends.
	for _, c := range chunks {
		assert.Contains(t, text, c)
	}
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplitText_ConsecutiveChunksOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 100)
	chunks := SplitText(text, 100, 25)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		head := []rune(chunks[i])
		if len(head) > 25 {
			head = head[:25]
		}
		assert.True(t, strings.Contains(chunks[i-1], string(head)),
			"chunk %d does not overlap its predecessor", i)
	}
}

func TestSplitText_PrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	chunks := SplitText(text, 100, 0)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"))
}

func TestSplitText_RuneSafeWithCyrillic(t *testing.T) {
	text := strings.Repeat("расписание занятий на осенний семестр. ", 40)
	chunks := SplitText(text, 100, 10)
	for _, c := range chunks {
		assert.True(t, strings.ContainsAny(c, "абвгдежзиклмнопрстуфхцчшщыьэюя. "))
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}

func TestSplitDocuments_InheritsMetadataAndNumbersChunks(t *testing.T) {
	docs := []model.Document{
		{
			PageContent: strings.Repeat("sentence one. sentence two. ", 20),
			Metadata: map[string]string{
				model.MetaTitle:     "Academic Calendar",
				model.MetaSourceKey: "docs/calendar.pdf",
			},
		},
	}

	chunks := SplitDocuments(docs, 100, 10)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, "Academic Calendar", c.Title())
		assert.Equal(t, "docs/calendar.pdf", c.SourceKey())
		assert.Equal(t, fmt.Sprintf("%d", i), c.Metadata[model.MetaChunkIndex])
	}

	// Mutating a chunk's metadata must not leak into the source document.
	chunks[0].Metadata[model.MetaTitle] = "changed"
	assert.Equal(t, "Academic Calendar", docs[0].Metadata[model.MetaTitle])
}
