package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

const (
	DefaultMaxInputChars    = 10000
	DefaultTruncationMarker = "..."
)

// InsightConfig carries every knob of the insight requester. The zero value is
// completed with defaults by NewInsightRequester.
type InsightConfig struct {
	MaxInputChars      int
	TruncationMarker   string
	SummaryMaxTokens   int
	KeyPointsMaxTokens int
	EntitiesMaxTokens  int
	SentimentMaxTokens int
	// ParallelQueries runs key points, entities and sentiment concurrently
	// once the summary has been produced.
	ParallelQueries bool
}

func DefaultInsightConfig() InsightConfig {
	return InsightConfig{
		MaxInputChars:      DefaultMaxInputChars,
		TruncationMarker:   DefaultTruncationMarker,
		SummaryMaxTokens:   200,
		KeyPointsMaxTokens: 300,
		EntitiesMaxTokens:  200,
		SentimentMaxTokens: 10,
	}
}

func (c InsightConfig) normalize() InsightConfig {
	out := c
	def := DefaultInsightConfig()
	if out.MaxInputChars <= 0 {
		out.MaxInputChars = def.MaxInputChars
	}
	if out.TruncationMarker == "" {
		out.TruncationMarker = def.TruncationMarker
	}
	if out.SummaryMaxTokens <= 0 {
		out.SummaryMaxTokens = def.SummaryMaxTokens
	}
	if out.KeyPointsMaxTokens <= 0 {
		out.KeyPointsMaxTokens = def.KeyPointsMaxTokens
	}
	if out.EntitiesMaxTokens <= 0 {
		out.EntitiesMaxTokens = def.EntitiesMaxTokens
	}
	if out.SentimentMaxTokens <= 0 {
		out.SentimentMaxTokens = def.SentimentMaxTokens
	}
	return out
}

type insightQuery struct {
	name      string
	system    string
	user      string
	maxTokens int
}

func (q insightQuery) request(text string) domain.CompletionRequest {
	return domain.CompletionRequest{
		System:    q.system,
		User:      q.user + "\n\n" + text,
		MaxTokens: q.maxTokens,
	}
}

type InsightRequester struct {
	llm    ports.LanguageModel
	cfg    InsightConfig
	logger *slog.Logger

	summary   insightQuery
	keyPoints insightQuery
	entities  insightQuery
	sentiment insightQuery
}

func NewInsightRequester(llm ports.LanguageModel, cfg InsightConfig, logger *slog.Logger) *InsightRequester {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()
	return &InsightRequester{
		llm:    llm,
		cfg:    cfg,
		logger: logger,
		summary: insightQuery{
			name:      "summary",
			system:    "You are a helpful assistant that summarizes documents.",
			user:      "Please provide a concise summary of the following document:",
			maxTokens: cfg.SummaryMaxTokens,
		},
		keyPoints: insightQuery{
			name:      "key_points",
			system:    "You are a helpful assistant that extracts key points from documents. Return only a JSON array of strings.",
			user:      "Extract 5-7 key points from this document as a JSON array:",
			maxTokens: cfg.KeyPointsMaxTokens,
		},
		entities: insightQuery{
			name:      "entities",
			system:    "You are a helpful assistant that extracts named entities from documents. Return only a JSON array of strings.",
			user:      "Extract important named entities (people, organizations, locations, dates) from this document as a JSON array:",
			maxTokens: cfg.EntitiesMaxTokens,
		},
		sentiment: insightQuery{
			name:      "sentiment",
			system:    "You are a helpful assistant that analyzes document sentiment. Respond with only one word: positive, negative, or neutral.",
			user:      "What is the overall sentiment of this document?",
			maxTokens: cfg.SentimentMaxTokens,
		},
	}
}

func (r *InsightRequester) RequestInsights(ctx context.Context, text string) (domain.InsightDraft, error) {
	if strings.TrimSpace(text) == "" {
		return domain.InsightDraft{}, domain.WrapError(domain.ErrEmptyInput, "request insights", errors.New("extracted text is blank"))
	}

	draft := domain.InsightDraft{WordCount: CountWords(text)}
	prompt := TruncateText(text, r.cfg.MaxInputChars, r.cfg.TruncationMarker)

	summary, err := r.query(ctx, r.summary, prompt)
	if err != nil {
		return domain.InsightDraft{}, err
	}
	draft.Summary = summary

	var keyPoints, entities ListParse
	var sentiment string
	if r.cfg.ParallelQueries {
		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() (err error) {
			keyPoints, err = r.queryList(groupCtx, r.keyPoints, prompt)
			return err
		})
		group.Go(func() (err error) {
			entities, err = r.queryList(groupCtx, r.entities, prompt)
			return err
		})
		group.Go(func() (err error) {
			sentiment, err = r.querySentiment(groupCtx, prompt)
			return err
		})
		if err := group.Wait(); err != nil {
			return domain.InsightDraft{}, err
		}
	} else {
		if keyPoints, err = r.queryList(ctx, r.keyPoints, prompt); err != nil {
			return domain.InsightDraft{}, err
		}
		if entities, err = r.queryList(ctx, r.entities, prompt); err != nil {
			return domain.InsightDraft{}, err
		}
		if sentiment, err = r.querySentiment(ctx, prompt); err != nil {
			return domain.InsightDraft{}, err
		}
	}

	draft.KeyPoints = keyPoints.Items
	draft.KeyPointsParse = keyPoints.Mode
	draft.Entities = entities.Items
	draft.EntitiesParse = entities.Mode
	draft.Sentiment = sentiment
	return draft, nil
}

func (r *InsightRequester) queryList(ctx context.Context, q insightQuery, prompt string) (ListParse, error) {
	raw, err := r.query(ctx, q, prompt)
	if err != nil {
		return ListParse{}, err
	}
	parsed := ParseStringList(raw)
	if parsed.Mode == domain.ParseLineSplit {
		r.logger.Warn("llm_list_fallback", "query", q.name, "items", len(parsed.Items))
	}
	return parsed, nil
}

func (r *InsightRequester) querySentiment(ctx context.Context, prompt string) (string, error) {
	raw, err := r.query(ctx, r.sentiment, prompt)
	if err != nil {
		return "", err
	}
	sentiment := strings.ToLower(strings.TrimSpace(raw))
	if !domain.IsKnownSentiment(sentiment) {
		r.logger.Warn("llm_unexpected_sentiment", "value", sentiment)
	}
	return sentiment, nil
}

func (r *InsightRequester) query(ctx context.Context, q insightQuery, prompt string) (string, error) {
	start := time.Now()
	out, err := r.llm.Complete(ctx, q.request(prompt))
	if err != nil {
		return "", domain.WrapError(domain.ErrModelQuery, "query "+q.name, err)
	}
	r.logger.Debug("llm_query_done",
		"query", q.name,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		"response_chars", len(out),
	)
	return out, nil
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// TruncateText cuts text to maxChars runes and appends marker when it had to
// cut. The limit is character based, not token aware.
func TruncateText(text string, maxChars int, marker string) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + marker
}
