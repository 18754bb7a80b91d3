package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mindjournal/internal/model"
)

// distributionDays は気分分布に含める気分記録の日数。
const distributionDays = 30

// EntryLister はユーザーの全エントリを取得するインターフェース。
type EntryLister interface {
	ListAll(ctx context.Context, userID string) ([]*model.JournalEntry, error)
}

// MoodLogLister は期間内の気分記録を取得するインターフェース。
type MoodLogLister interface {
	ListSince(ctx context.Context, userID string, since time.Time) ([]*model.MoodLog, error)
}

// Service はリポジトリからデータを読み込み、集計を行う。
type Service struct {
	entries EntryLister
	moods   MoodLogLister
	loc     *time.Location
	now     func() time.Time
}

// NewService はServiceを生成する。locがnilの場合はUTCで日付を判定する。
func NewService(entries EntryLister, moods MoodLogLister, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{entries: entries, moods: moods, loc: loc, now: time.Now}
}

// Dashboard はダッシュボード表示用の集計結果。
type Dashboard struct {
	Summary
	WeeklyMood            []WeeklySlot    `json:"weekly_mood"`
	MoodDistribution      []Bucket        `json:"mood_distribution"`
	SentimentDistribution []Bucket        `json:"sentiment_distribution"`
	WeekdayActivity       []WeekdayCount  `json:"weekday_activity"`
	MonthlyProgress       []MonthProgress `json:"monthly_progress"`
	Achievements          []Achievement   `json:"achievements"`
	AchievementsUnlocked  int             `json:"achievements_unlocked"`
}

// Dashboard はユーザーのダッシュボード集計を返す。
// エントリと直近30日の気分記録は並行して読み込む。
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	now := s.now()

	var entries []*model.JournalEntry
	var logs []*model.MoodLog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.entries.ListAll(gctx, userID)
		if err != nil {
			return fmt.Errorf("エントリの読み込みに失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		logs, err = s.moods.ListSince(gctx, userID, windowStart(now, distributionDays, s.loc))
		if err != nil {
			return fmt.Errorf("気分記録の読み込みに失敗しました: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statEntries := FromModel(entries)
	summary := Summarize(statEntries, now, s.loc)
	achievements := EvaluateAchievements(summary.AchievementInput())

	points := append(EntryMoodPoints(statEntries), FromMoodLogs(logs)...)
	recentPoints := pointsSince(points, windowStart(now, distributionDays, s.loc))

	return &Dashboard{
		Summary:               summary,
		WeeklyMood:            WeeklyMoodChart(points, now, s.loc),
		MoodDistribution:      BucketMoods(moodValues(recentPoints)),
		SentimentDistribution: BucketSentiments(sentimentScores(statEntries)),
		WeekdayActivity:       WeekdayActivity(statEntries, s.loc),
		MonthlyProgress:       MonthlyProgress(statEntries, s.loc),
		Achievements:          achievements,
		AchievementsUnlocked:  UnlockedCount(achievements),
	}, nil
}

// Achievements はユーザーの実績一覧を返す。
func (s *Service) Achievements(ctx context.Context, userID string) ([]Achievement, error) {
	entries, err := s.entries.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリの読み込みに失敗しました: %w", err)
	}
	summary := Summarize(FromModel(entries), s.now(), s.loc)
	return EvaluateAchievements(summary.AchievementInput()), nil
}

// MoodOverview は直近days日の気分記録とエントリの気分スコアを合わせた気分集計を返す。
func (s *Service) MoodOverview(ctx context.Context, userID string, days int) (*MoodSummary, error) {
	now := s.now()
	since := windowStart(now, days, s.loc)

	logs, err := s.moods.ListSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("気分記録の読み込みに失敗しました: %w", err)
	}
	entries, err := s.entries.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリの読み込みに失敗しました: %w", err)
	}

	points := append(FromMoodLogs(logs), pointsSince(EntryMoodPoints(FromModel(entries)), since)...)
	summary := SummarizeMood(points, now, s.loc)
	return &summary, nil
}

// FromModel はエントリのモデルを集計用の値に変換する。
func FromModel(entries []*model.JournalEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{
			CreatedAt:      e.CreatedAt,
			MoodScore:      e.MoodScore,
			WordCount:      e.WordCount,
			IsDraft:        e.IsDraft,
			SentimentScore: e.SentimentScore,
		})
	}
	return out
}

// FromMoodLogs は気分記録を観測値に変換する。
func FromMoodLogs(logs []*model.MoodLog) []MoodPoint {
	out := make([]MoodPoint, 0, len(logs))
	for _, l := range logs {
		out = append(out, MoodPoint{At: l.LoggedAt, Mood: l.MoodScore, Energy: l.EnergyLevel, Stress: l.StressLevel})
	}
	return out
}

func pointsSince(points []MoodPoint, since time.Time) []MoodPoint {
	out := []MoodPoint{}
	for _, p := range points {
		if !p.At.Before(since) {
			out = append(out, p)
		}
	}
	return out
}

func sentimentScores(entries []Entry) []float64 {
	out := []float64{}
	for _, e := range published(entries) {
		if e.SentimentScore != nil {
			out = append(out, *e.SentimentScore)
		}
	}
	return out
}
