// Package service contains the application's business logic layer.
package service

import (
	"context"
	"strings"
	"unicode"

	"miba-assist-go/pkg/llm"
	"miba-assist-go/pkg/log"
)

// PreprocessService turns raw user text into a retrieval query with higher
// recall: the primary-language text, matched synonyms appended, then the
// cross-language translation after a comma.
type PreprocessService interface {
	// Preprocess never fails: on any internal error the original text is
	// returned unchanged.
	Preprocess(ctx context.Context, query string) string
}

type preprocessService struct {
	llmClient llm.Client
	synonyms  map[string][]string
}

// NewPreprocessService creates a preprocessor over the static synonym table.
func NewPreprocessService(llmClient llm.Client, synonyms map[string][]string) PreprocessService {
	return &preprocessService{llmClient: llmClient, synonyms: synonyms}
}

func (s *preprocessService) Preprocess(ctx context.Context, query string) (result string) {
	// Preprocessing must never abort the request.
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("query preprocessing panicked: %v", r)
			result = query
		}
	}()

	log.Infof("preprocessing query: %q", query)

	translated := s.translate(ctx, query, !ContainsCyrillic(query))
	expanded := ExpandSynonyms(query, s.synonyms)

	final := expanded
	if translated != "" {
		final = expanded + ", " + translated
	}
	if strings.TrimSpace(final) == "" {
		return query
	}

	final = strings.TrimSpace(final)
	log.Infof("final preprocessed query: %q", final)
	return final
}

// translate asks the LLM for the cross-language rendering of the query.
// Failure degrades to an empty translation.
func (s *preprocessService) translate(ctx context.Context, query string, toRussian bool) string {
	instruction := "Translate the following Russian text to English. Output only the translation: "
	if toRussian {
		instruction = "Translate the following English text to Russian. Output only the translation: "
	}

	temp := 0.0
	maxTokens := 300
	translated, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: "user", Content: instruction + query},
	}, &llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		log.Warnf("translation call failed, continuing without translation: %v", err)
		return ""
	}
	return translated
}

// ContainsCyrillic reports whether the text holds at least one Cyrillic
// letter, which classifies the query as Russian.
func ContainsCyrillic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// ExpandSynonyms appends synonyms for every query token that matches a key
// of the table. Matching is case-insensitive with punctuation stripped from
// tokens; appends preserve encounter order and never duplicate a term already
// present in the query or already appended, so the expansion is idempotent.
func ExpandSynonyms(query string, table map[string][]string) string {
	if len(table) == 0 {
		return query
	}

	// Lowercased table keyed once per call.
	keys := make(map[string][]string, len(table))
	for k, v := range table {
		keys[strings.ToLower(k)] = v
	}

	present := strings.ToLower(query)
	var appended []string
	for _, token := range strings.Fields(query) {
		cleaned := strings.ToLower(stripPunct(token))
		if cleaned == "" {
			continue
		}
		syns, ok := keys[cleaned]
		if !ok && strings.HasSuffix(cleaned, "s") {
			// Fold plain plurals back onto the singular table key.
			syns = keys[strings.TrimSuffix(cleaned, "s")]
		}
		for _, syn := range syns {
			if strings.Contains(present, strings.ToLower(syn)) {
				continue
			}
			appended = append(appended, syn)
			present += " " + strings.ToLower(syn)
		}
	}

	if len(appended) == 0 {
		return query
	}
	return query + " " + strings.Join(appended, " ")
}

// stripPunct removes everything except letters and digits.
func stripPunct(token string) string {
	var b strings.Builder
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
