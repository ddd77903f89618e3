package model

import "time"

// ChatMessage is one message in a chat session's history.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Feedback values recorded on an interaction.
const (
	FeedbackUnset    = ""
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Interaction is one answered query, kept per chat so the sources and
// feedback callbacks can refer back to it by ID.
type Interaction struct {
	ID                   string     `json:"id"`
	Question             string     `json:"question"`
	PreprocessedQuestion string     `json:"preprocessed_question"`
	Answer               string     `json:"answer"`
	ContextDocs          []Document `json:"context_docs"`
	Feedback             string     `json:"feedback"`
	Timestamp            time.Time  `json:"timestamp"`
}
