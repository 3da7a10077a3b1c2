package domain

import "time"

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// IsKnownSentiment reports whether s is one of the three expected labels.
// Model output is stored as-is, so callers must tolerate other values.
func IsKnownSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	default:
		return false
	}
}

// ParseMode tags which branch produced a parsed list.
type ParseMode string

const (
	ParseStructured ParseMode = "structured"
	ParseLineSplit  ParseMode = "line_split"
)

type Insight struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Summary    string    `json:"summary"`
	KeyPoints  []string  `json:"key_points"`
	Entities   []string  `json:"entities"`
	Sentiment  string    `json:"sentiment"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsightDraft is what the requester produces before anything is persisted.
type InsightDraft struct {
	Summary        string
	KeyPoints      []string
	Entities       []string
	Sentiment      string
	WordCount      int
	KeyPointsParse ParseMode
	EntitiesParse  ParseMode
}

type InsightView struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Entities  []string `json:"entities"`
	Sentiment string   `json:"sentiment"`
	WordCount int      `json:"word_count"`
}

func (i Insight) View() InsightView {
	keyPoints := i.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	entities := i.Entities
	if entities == nil {
		entities = []string{}
	}
	return InsightView{
		Summary:   i.Summary,
		KeyPoints: keyPoints,
		Entities:  entities,
		Sentiment: i.Sentiment,
		WordCount: i.WordCount,
	}
}

// CompletionRequest is a single role-scoped query against a language model.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
}
