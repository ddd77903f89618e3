package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"miba-assist-go/pkg/llm"
)

type fakeLLM struct {
	response string
	err      error
	lastReq  []llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, params *llm.GenerationParams) (string, error) {
	f.lastReq = messages
	return f.response, f.err
}

var testSynonyms = map[string][]string{
	"deadline": {"due date", "submission date"},
	"MiBA":     {"Master in Business Analytics and Big Data", "Миба"},
	"exam":     {"examination", "test", "экзамен"},
}

func TestContainsCyrillic(t *testing.T) {
	assert.True(t, ContainsCyrillic("когда экзамен"))
	assert.True(t, ContainsCyrillic("when is экзамен"))
	assert.False(t, ContainsCyrillic("when is the exam"))
	assert.False(t, ContainsCyrillic(""))
}

func TestExpandSynonyms_AppendsMatches(t *testing.T) {
	out := ExpandSynonyms("what is the deadline", testSynonyms)
	assert.Equal(t, "what is the deadline due date submission date", out)
}

func TestExpandSynonyms_CaseInsensitiveWithPunctuation(t *testing.T) {
	out := ExpandSynonyms("What is the Deadline?", testSynonyms)
	assert.Contains(t, out, "due date")
	assert.Contains(t, out, "submission date")
	assert.True(t, strings.HasPrefix(out, "What is the Deadline?"))
}

func TestExpandSynonyms_NoMatchLeavesQueryUntouched(t *testing.T) {
	assert.Equal(t, "hello there", ExpandSynonyms("hello there", testSynonyms))
}

func TestExpandSynonyms_Idempotent(t *testing.T) {
	once := ExpandSynonyms("exam deadline", testSynonyms)
	twice := ExpandSynonyms(once, testSynonyms)
	assert.Equal(t, once, twice)
}

func TestExpandSynonyms_SkipsTermsAlreadyPresent(t *testing.T) {
	out := ExpandSynonyms("exam test schedule", testSynonyms)
	// "test" is already in the query and must not be appended again.
	assert.Equal(t, 1, strings.Count(strings.ToLower(out), "test"))
}

func TestExpandSynonyms_PluralTokenMatchesSingularKey(t *testing.T) {
	table := map[string][]string{
		"deadline":    {"due date", "submission date"},
		"application": {"admission", "enrollment"},
	}
	out := ExpandSynonyms("What is the deadline for applications?", table)
	assert.Contains(t, out, "due date")
	assert.Contains(t, out, "submission date")
	assert.Contains(t, out, "admission")
	assert.Contains(t, out, "enrollment")
}

func TestExpandSynonyms_EmptyTable(t *testing.T) {
	assert.Equal(t, "deadline", ExpandSynonyms("deadline", nil))
}

func TestPreprocess_EnglishQueryGetsTranslationAppended(t *testing.T) {
	svc := NewPreprocessService(&fakeLLM{response: "когда дедлайн"}, testSynonyms)
	out := svc.Preprocess(context.Background(), "what is the deadline")
	assert.Equal(t, "what is the deadline due date submission date, когда дедлайн", out)
}

func TestPreprocess_RussianQueryTranslatedToEnglish(t *testing.T) {
	f := &fakeLLM{response: "when is the exam"}
	svc := NewPreprocessService(f, testSynonyms)
	out := svc.Preprocess(context.Background(), "когда экзамен")
	assert.Equal(t, "когда экзамен, when is the exam", out)
	assert.Contains(t, f.lastReq[0].Content, "Russian text to English")
}

func TestPreprocess_TranslationFailureDegradesGracefully(t *testing.T) {
	svc := NewPreprocessService(&fakeLLM{err: errors.New("model down")}, testSynonyms)
	out := svc.Preprocess(context.Background(), "what is the deadline")
	assert.Equal(t, "what is the deadline due date submission date", out)
}

func TestPreprocess_WhitespaceResultFallsBackToOriginal(t *testing.T) {
	svc := NewPreprocessService(&fakeLLM{response: ""}, nil)
	assert.Equal(t, "   ", svc.Preprocess(context.Background(), "   "))
}
