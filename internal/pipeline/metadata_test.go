package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata_PlainJSON(t *testing.T) {
	md, err := ParseMetadata(`{"title": "Academic Calendar 2025", "topics": "schedule, exams"}`)
	require.NoError(t, err)
	assert.Equal(t, "Academic Calendar 2025", md.Title)
	assert.Equal(t, "schedule, exams", md.Topics)
}

func TestParseMetadata_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"title\": \"Exchange Guide\", \"topics\": \"exchange\"}\n```"
	md, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "Exchange Guide", md.Title)
}

func TestParseMetadata_StripsBareFences(t *testing.T) {
	raw := "```\n{\"title\": \"T\", \"topics\": \"x\"}\n```"
	md, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "T", md.Title)
}

func TestParseMetadata_EmptyTopicsDefaulted(t *testing.T) {
	md, err := ParseMetadata(`{"title": "Something"}`)
	require.NoError(t, err)
	assert.Equal(t, "not defined", md.Topics)
}

func TestParseMetadata_InvalidJSONReturnsParseError(t *testing.T) {
	_, err := ParseMetadata("this is not json")
	require.Error(t, err)

	var parseErr *MetadataParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "this is not json", parseErr.Raw)
}

func TestParseMetadata_EmptyResponseReturnsParseError(t *testing.T) {
	_, err := ParseMetadata("   ")
	var parseErr *MetadataParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestDefaultMetadata_UsesBaseName(t *testing.T) {
	md := DefaultMetadata("miba/docs/calendar.pdf")
	assert.Equal(t, "File calendar.pdf", md.Title)
	assert.Equal(t, "not defined", md.Topics)
}
