package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/mindjournal/internal/ai"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/mood"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// TextAnalyzer は本文の感情分析を行うインターフェース。ai.Analyzerが実装する。
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (*ai.Report, error)
}

// SentimentAttacher は感情分析の結果をエントリに保存するインターフェース。journal.Serviceが実装する。
type SentimentAttacher interface {
	AttachSentiment(ctx context.Context, userID, entryID string, score float64, report []byte) error
}

// SentimentServiceAdapter は感情分析とエントリへの保存を SentimentServiceInterface に適合させるアダプタ。
type SentimentServiceAdapter struct {
	analyzer TextAnalyzer
	entries  SentimentAttacher
}

// NewSentimentServiceAdapter はSentimentServiceAdapterを生成する。
func NewSentimentServiceAdapter(analyzer TextAnalyzer, entries SentimentAttacher) *SentimentServiceAdapter {
	return &SentimentServiceAdapter{analyzer: analyzer, entries: entries}
}

// Analyze は本文を分析し、entryIDが指定されていればスコアとレポートをエントリに保存する。
func (a *SentimentServiceAdapter) Analyze(ctx context.Context, userID, text, entryID string) (*ai.Report, error) {
	report, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return report, nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("感情分析結果のエンコードに失敗しました: %w", err)
	}
	if err := a.entries.AttachSentiment(ctx, userID, entryID, report.DocumentSentiment.Score, data); err != nil {
		return nil, err
	}
	return report, nil
}

// MoodOverviewer は気分集計を返すインターフェース。stats.Serviceが実装する。
type MoodOverviewer interface {
	MoodOverview(ctx context.Context, userID string, days int) (*stats.MoodSummary, error)
}

// MoodServiceAdapter は気分記録と気分集計を MoodServiceInterface に適合させるアダプタ。
type MoodServiceAdapter struct {
	logs     *mood.Service
	overview MoodOverviewer
}

// NewMoodServiceAdapter はMoodServiceAdapterを生成する。
func NewMoodServiceAdapter(logs *mood.Service, overview MoodOverviewer) *MoodServiceAdapter {
	return &MoodServiceAdapter{logs: logs, overview: overview}
}

// LogMood は気分を記録する。
func (a *MoodServiceAdapter) LogMood(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error) {
	return a.logs.LogMood(ctx, userID, in)
}

// ListRecent は直近days日の気分記録を返す。
func (a *MoodServiceAdapter) ListRecent(ctx context.Context, userID string, days int) ([]*model.MoodLog, error) {
	return a.logs.ListRecent(ctx, userID, days)
}

// Summary は直近days日の気分集計を返す。daysは1から365。
func (a *MoodServiceAdapter) Summary(ctx context.Context, userID string, days int) (*stats.MoodSummary, error) {
	if days < 1 || days > mood.MaxDays {
		return nil, model.NewInvalidInputError(fmt.Sprintf("days は1から%dの範囲で指定してください", mood.MaxDays))
	}
	return a.overview.MoodOverview(ctx, userID, days)
}

// --- compile-time interface checks ---

var _ SentimentServiceInterface = (*SentimentServiceAdapter)(nil)
var _ MoodServiceInterface = (*MoodServiceAdapter)(nil)
