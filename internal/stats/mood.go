package stats

import (
	"sort"
	"time"
)

// MoodPoint は気分の観測値。エントリの気分スコアと気分記録の両方から作られる。
type MoodPoint struct {
	At     time.Time
	Mood   int
	Energy *int
	Stress *int
}

// EntryMoodPoints は公開済みエントリのうち気分スコアを持つものを観測値に変換する。
func EntryMoodPoints(entries []Entry) []MoodPoint {
	points := []MoodPoint{}
	for _, e := range published(entries) {
		if e.MoodScore != nil {
			points = append(points, MoodPoint{At: e.CreatedAt, Mood: *e.MoodScore})
		}
	}
	return points
}

// TrendPoint は日別の平均気分。
type TrendPoint struct {
	Date    string  `json:"date"`
	AvgMood float64 `json:"avg_mood"`
}

// windowStart は今日を含む直近days日の初日を返す。
func windowStart(now time.Time, days int, loc *time.Location) time.Time {
	return dayOf(now, loc).AddDate(0, 0, -(days - 1))
}

// MoodTrend は今日を含む直近days日の日別平均気分を昇順で返す。
// 観測のない日は含めない。
func MoodTrend(points []MoodPoint, now time.Time, days int, loc *time.Location) []TrendPoint {
	if days <= 0 {
		return []TrendPoint{}
	}
	start := windowStart(now, days, loc)
	today := dayOf(now, loc)

	type acc struct{ sum, n int }
	byDay := make(map[time.Time]*acc)
	for _, p := range points {
		d := dayOf(p.At, loc)
		if d.Before(start) || d.After(today) {
			continue
		}
		a, ok := byDay[d]
		if !ok {
			a = &acc{}
			byDay[d] = a
		}
		a.sum += p.Mood
		a.n++
	}

	dates := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		a := byDay[d]
		out = append(out, TrendPoint{Date: d.Format(time.DateOnly), AvgMood: float64(a.sum) / float64(a.n)})
	}
	return out
}

// WeeklySlot は週間チャートの1日分。観測がない日は全て0になる。
type WeeklySlot struct {
	Date   string  `json:"date"`
	Day    string  `json:"day"`
	Mood   float64 `json:"mood"`
	Energy float64 `json:"energy"`
	Stress float64 `json:"stress"`
}

// defaultLevel はエネルギー・ストレス未入力の観測に用いる中間値。
const defaultLevel = 5

// WeeklyMoodChart は今日を含む直近7日の日別平均（気分・エネルギー・ストレス）を返す。
// 常に7要素で、観測がない日は0で埋める。値は小数第1位に丸める。
func WeeklyMoodChart(points []MoodPoint, now time.Time, loc *time.Location) []WeeklySlot {
	const days = 7
	start := windowStart(now, days, loc)

	index := make(map[time.Time]int, days)
	for i := 0; i < days; i++ {
		index[start.AddDate(0, 0, i)] = i
	}

	type acc struct{ mood, energy, stress, n int }
	accs := make([]acc, days)
	for _, p := range points {
		idx, ok := index[dayOf(p.At, loc)]
		if !ok {
			continue
		}
		a := &accs[idx]
		a.mood += p.Mood
		a.energy += levelOrDefault(p.Energy)
		a.stress += levelOrDefault(p.Stress)
		a.n++
	}

	out := make([]WeeklySlot, days)
	for i := range out {
		d := start.AddDate(0, 0, i)
		slot := WeeklySlot{Date: d.Format(time.DateOnly), Day: d.Weekday().String()[:3]}
		if a := accs[i]; a.n > 0 {
			n := float64(a.n)
			slot.Mood = round1(float64(a.mood) / n)
			slot.Energy = round1(float64(a.energy) / n)
			slot.Stress = round1(float64(a.stress) / n)
		}
		out[i] = slot
	}
	return out
}

func levelOrDefault(v *int) int {
	if v == nil {
		return defaultLevel
	}
	return *v
}

// RecentAverageMood は今日を含む直近days日の平均気分を返す。観測がなければ0。
func RecentAverageMood(points []MoodPoint, now time.Time, days int, loc *time.Location) float64 {
	start := windowStart(now, days, loc)
	today := dayOf(now, loc)
	sum, n := 0, 0
	for _, p := range points {
		d := dayOf(p.At, loc)
		if d.Before(start) || d.After(today) {
			continue
		}
		sum += p.Mood
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// 気分の傾向
const (
	DirectionImproving = "improving"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

// directionThreshold は直近と過去の平均差をstable扱いにする幅。
const directionThreshold = 0.5

// MoodDirection は新しい順に並べた観測の直近7件と、その前の7件の平均を比較して傾向を返す。
// 過去の観測がない場合はstable。
func MoodDirection(points []MoodPoint) string {
	sorted := sortedNewestFirst(points)
	if len(sorted) == 0 {
		return DirectionStable
	}

	recent := sorted[:min(7, len(sorted))]
	recentAvg := averageMood(recent)
	olderAvg := recentAvg
	if len(sorted) > 7 {
		olderAvg = averageMood(sorted[7:min(14, len(sorted))])
	}

	switch {
	case recentAvg > olderAvg+directionThreshold:
		return DirectionImproving
	case recentAvg < olderAvg-directionThreshold:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

func sortedNewestFirst(points []MoodPoint) []MoodPoint {
	sorted := make([]MoodPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.After(sorted[j].At) })
	return sorted
}

func averageMood(points []MoodPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.Mood
	}
	return float64(sum) / float64(len(points))
}

// MoodSummary は気分ページ用の集計結果。
type MoodSummary struct {
	CurrentMood  int          `json:"current_mood"`
	AvgMood      float64      `json:"avg_mood"`
	Direction    string       `json:"mood_trend"`
	TotalLogs    int          `json:"total_logs"`
	Distribution []Bucket     `json:"mood_distribution"`
	WeeklyTrend  []WeeklySlot `json:"weekly_trend"`
}

// SummarizeMood は観測値の集合から気分ページ用の集計を作る。
func SummarizeMood(points []MoodPoint, now time.Time, loc *time.Location) MoodSummary {
	sorted := sortedNewestFirst(points)
	s := MoodSummary{
		AvgMood:      round1(averageMood(sorted)),
		Direction:    MoodDirection(sorted),
		TotalLogs:    len(sorted),
		Distribution: BucketMoods(moodValues(sorted)),
		WeeklyTrend:  WeeklyMoodChart(sorted, now, loc),
	}
	if len(sorted) > 0 {
		s.CurrentMood = sorted[0].Mood
	}
	return s
}

func moodValues(points []MoodPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Mood
	}
	return out
}
