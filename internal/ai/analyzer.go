package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/mindjournal/internal/metrics"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// 感情内訳の取得結果
const (
	OutcomeParsed   = "parsed"
	OutcomeFallback = "fallback"
)

// TextGenerator は文章生成のインターフェース。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

// SentimentAnalyzer は感情分析APIのインターフェース。
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (*SentimentResult, error)
	AnalyzeEntitySentiment(ctx context.Context, text string) ([]Entity, error)
}

// Emotions は感情ごとの強さ(0.0〜1.0)。
type Emotions struct {
	Joy      float64 `json:"joy"`
	Sadness  float64 `json:"sadness"`
	Anger    float64 `json:"anger"`
	Fear     float64 `json:"fear"`
	Surprise float64 `json:"surprise"`
	Disgust  float64 `json:"disgust"`
}

func (e Emotions) values() []float64 {
	return []float64{e.Joy, e.Sadness, e.Anger, e.Fear, e.Surprise, e.Disgust}
}

// Breakdown は生成AIによる感情の内訳。
type Breakdown struct {
	Overall    string   `json:"overall"`
	Confidence float64  `json:"confidence"`
	Emotions   Emotions `json:"emotions"`
	Keywords   []string `json:"keywords"`
}

// FallbackBreakdown は内訳を取得できなかった場合の既定値。
func FallbackBreakdown() Breakdown {
	return Breakdown{
		Overall:    stats.SentimentNeutral,
		Confidence: 0.5,
		Emotions: Emotions{
			Joy:      0.3,
			Sadness:  0.2,
			Anger:    0.1,
			Fear:     0.1,
			Surprise: 0.1,
			Disgust:  0.1,
		},
		Keywords: []string{"reflection", "thoughts", "feelings"},
	}
}

// ParseBreakdown は生成AIの出力をBreakdownとして解釈する。
// Markdownのコードフェンスは取り除く。値域外の値や未知のoverallはパース失敗とする。
func ParseBreakdown(raw string) (Breakdown, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var b Breakdown
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return Breakdown{}, fmt.Errorf("invalid breakdown JSON: %w", err)
	}

	switch b.Overall {
	case stats.SentimentPositive, stats.SentimentNeutral, stats.SentimentNegative:
	default:
		return Breakdown{}, fmt.Errorf("unknown overall label: %q", b.Overall)
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		return Breakdown{}, fmt.Errorf("confidence out of range: %v", b.Confidence)
	}
	for _, v := range b.Emotions.values() {
		if v < 0 || v > 1 {
			return Breakdown{}, fmt.Errorf("emotion value out of range: %v", v)
		}
	}
	if b.Keywords == nil {
		b.Keywords = []string{}
	}
	return b, nil
}

// Report は感情分析の結果。
type Report struct {
	DocumentSentiment Sentiment  `json:"documentSentiment"`
	Sentences         []Sentence `json:"sentences"`
	Entities          []Entity   `json:"entities"`
	Language          string     `json:"language"`
	Label             string     `json:"label"`
	Breakdown         Breakdown  `json:"breakdown"`
	Outcome           string     `json:"outcome"`
}

// Analyzer はエントリ本文の感情分析を行う。
type Analyzer struct {
	sentiment SentimentAnalyzer
	generator TextGenerator
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewAnalyzer はAnalyzerを生成する。sentimentがnilの場合、AI機能は未設定として扱う。
func NewAnalyzer(sentiment SentimentAnalyzer, generator TextGenerator, logger *slog.Logger, m metrics.MetricsCollector) *Analyzer {
	return &Analyzer{sentiment: sentiment, generator: generator, logger: logger, metrics: m}
}

const breakdownPrompt = `Analyze the sentiment and emotions in the following journal entry. Provide a detailed analysis in JSON format with the following structure:

{
  "overall": "positive" | "neutral" | "negative",
  "confidence": 0.0-1.0,
  "emotions": {
    "joy": 0.0-1.0,
    "sadness": 0.0-1.0,
    "anger": 0.0-1.0,
    "fear": 0.0-1.0,
    "surprise": 0.0-1.0,
    "disgust": 0.0-1.0
  },
  "keywords": ["array", "of", "key", "emotional", "themes"]
}

Guidelines:
- overall: Determine if the overall sentiment is positive, neutral, or negative
- confidence: How confident you are in the overall sentiment (0.0 = not confident, 1.0 = very confident)
- emotions: Rate each emotion from 0.0 (not present) to 1.0 (very strong)
- keywords: Extract 3-8 key emotional themes or important words that capture the essence

Text to analyze: %q

Return only the JSON object, no additional text:`

var breakdownConfig = GenerationConfig{Temperature: 0.2, TopK: 40, TopP: 0.95, MaxOutputTokens: 400}

// Analyze は文書の感情分析、エンティティ感情分析、感情内訳を取得する。
// 文書の感情分析に失敗した場合は上流エラー、エンティティ分析の失敗は空リスト、
// 内訳の取得・パースに失敗した場合は既定値(outcome=fallback)となる。
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Report, error) {
	if a.sentiment == nil {
		return nil, model.NewAINotConfiguredError()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.NewInvalidInputError("text は必須です")
	}

	doc, err := a.sentiment.AnalyzeSentiment(ctx, text)
	if err != nil {
		return nil, toAPIError(err)
	}

	entities, err := a.sentiment.AnalyzeEntitySentiment(ctx, text)
	if err != nil {
		a.logger.Warn("エンティティ感情分析に失敗しました",
			slog.String("error", err.Error()),
		)
		entities = []Entity{}
	}

	report := &Report{
		DocumentSentiment: doc.DocumentSentiment,
		Sentences:         doc.Sentences,
		Entities:          entities,
		Language:          doc.Language,
		Label:             stats.ClassifySentiment(doc.DocumentSentiment.Score),
	}
	if report.Sentences == nil {
		report.Sentences = []Sentence{}
	}

	report.Breakdown, report.Outcome = a.breakdown(ctx, text)
	return report, nil
}

func (a *Analyzer) breakdown(ctx context.Context, text string) (Breakdown, string) {
	if a.generator == nil {
		return FallbackBreakdown(), OutcomeFallback
	}

	raw, err := a.generator.GenerateText(ctx, fmt.Sprintf(breakdownPrompt, text), breakdownConfig)
	if err == nil {
		var b Breakdown
		if b, err = ParseBreakdown(raw); err == nil {
			return b, OutcomeParsed
		}
	}

	a.logger.Warn("感情内訳を取得できなかったため既定値を使用します",
		slog.String("error", err.Error()),
	)
	if a.metrics != nil {
		a.metrics.RecordAIFallback("sentiment")
	}
	return FallbackBreakdown(), OutcomeFallback
}

// toAPIError は上流エラーをAPIエラーに変換する。それ以外のエラーはそのまま返す。
func toAPIError(err error) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return model.NewUpstreamError(upstream.Service)
	}
	return err
}
