package stats

import "time"

// recentMoodDays は直近平均気分と気分推移の集計日数。
const recentMoodDays = 7

// Summary はダッシュボードに表示する集計値。
type Summary struct {
	TotalEntries     int          `json:"total_entries"`
	AvgMood          float64      `json:"avg_mood"`
	TotalWords       int          `json:"total_words"`
	AvgWordsPerEntry float64      `json:"avg_words_per_entry"`
	RecentAvgMood    float64      `json:"recent_avg_mood"`
	CurrentStreak    int          `json:"current_streak"`
	LongestStreak    int          `json:"longest_streak"`
	MonthEntries     int          `json:"month_entries"`
	CompletionRate   int          `json:"completion_rate"`
	DaysJournaled    int          `json:"days_journaled"`
	FirstEntryDate   *time.Time   `json:"first_entry_date"`
	LastEntryDate    *time.Time   `json:"last_entry_date"`
	MoodTrend        []TrendPoint `json:"mood_trend"`
}

// Summarize はエントリ一覧から集計値をまとめて計算する。下書きは全て除外される。
func Summarize(entries []Entry, now time.Time, loc *time.Location) Summary {
	totals := ComputeTotals(entries, loc)
	points := EntryMoodPoints(entries)

	return Summary{
		TotalEntries:     totals.TotalEntries,
		AvgMood:          totals.AvgMood,
		TotalWords:       totals.TotalWords,
		AvgWordsPerEntry: totals.AvgWordsPerEntry,
		RecentAvgMood:    RecentAverageMood(points, now, recentMoodDays, loc),
		CurrentStreak:    CurrentStreak(entries, now, loc),
		LongestStreak:    LongestStreak(entries, loc),
		MonthEntries:     MonthEntries(entries, now, loc),
		CompletionRate:   CompletionRate(entries, now, loc),
		DaysJournaled:    totals.DaysJournaled,
		FirstEntryDate:   totals.FirstEntryAt,
		LastEntryDate:    totals.LastEntryAt,
		MoodTrend:        MoodTrend(points, now, recentMoodDays, loc),
	}
}

// AchievementInput は集計値から実績判定の入力を作る。
func (s Summary) AchievementInput() AchievementInput {
	return AchievementInput{
		TotalEntries:  s.TotalEntries,
		CurrentStreak: s.CurrentStreak,
		TotalWords:    s.TotalWords,
	}
}
