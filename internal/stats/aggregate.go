package stats

import (
	"math"
	"sort"
	"time"
)

// Totals は公開済みエントリの合計値。
type Totals struct {
	TotalEntries     int
	TotalWords       int
	AvgWordsPerEntry float64
	AvgMood          float64
	DaysJournaled    int
	FirstEntryAt     *time.Time
	LastEntryAt      *time.Time
}

// ComputeTotals は下書きを除いたエントリから合計値を計算する。
// 入力が空の場合はゼロ値を返す。平均気分は気分スコア付きのエントリのみで計算する。
func ComputeTotals(entries []Entry, loc *time.Location) Totals {
	pub := published(entries)
	t := Totals{TotalEntries: len(pub)}
	if len(pub) == 0 {
		return t
	}

	moodSum, moodCount := 0, 0
	for i := range pub {
		e := &pub[i]
		t.TotalWords += e.WordCount
		if e.MoodScore != nil {
			moodSum += *e.MoodScore
			moodCount++
		}
		if t.FirstEntryAt == nil || e.CreatedAt.Before(*t.FirstEntryAt) {
			t.FirstEntryAt = &e.CreatedAt
		}
		if t.LastEntryAt == nil || e.CreatedAt.After(*t.LastEntryAt) {
			t.LastEntryAt = &e.CreatedAt
		}
	}

	t.AvgWordsPerEntry = float64(t.TotalWords) / float64(len(pub))
	if moodCount > 0 {
		t.AvgMood = float64(moodSum) / float64(moodCount)
	}
	t.DaysJournaled = len(distinctDays(pub, loc))
	return t
}

// MonthEntries はnowと同じ暦月に作成された公開済みエントリ数を返す。
func MonthEntries(entries []Entry, now time.Time, loc *time.Location) int {
	y, m, _ := now.In(loc).Date()
	count := 0
	for _, e := range published(entries) {
		ey, em, _ := e.CreatedAt.In(loc).Date()
		if ey == y && em == m {
			count++
		}
	}
	return count
}

// CompletionRate は今月の公開済みエントリ数を今月の日数で割った百分率（四捨五入）を返す。
func CompletionRate(entries []Entry, now time.Time, loc *time.Location) int {
	local := now.In(loc)
	daysInMonth := time.Date(local.Year(), local.Month()+1, 0, 0, 0, 0, 0, loc).Day()
	return int(math.Round(float64(MonthEntries(entries, now, loc)) / float64(daysInMonth) * 100))
}

// WeekdayCount は曜日ごとのエントリ数。
type WeekdayCount struct {
	Day     string `json:"day"`
	Entries int    `json:"entries"`
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// WeekdayActivity は月曜から日曜までの曜日別エントリ数を返す。7要素は常に揃う。
func WeekdayActivity(entries []Entry, loc *time.Location) []WeekdayCount {
	counts := make(map[time.Weekday]int)
	for _, e := range published(entries) {
		counts[e.CreatedAt.In(loc).Weekday()]++
	}

	out := make([]WeekdayCount, 0, len(weekdayOrder))
	for _, wd := range weekdayOrder {
		out = append(out, WeekdayCount{Day: wd.String()[:3], Entries: counts[wd]})
	}
	return out
}

// MonthProgress は月ごとのエントリ数と単語数。
type MonthProgress struct {
	Month   string `json:"month"`
	Entries int    `json:"entries"`
	Words   int    `json:"words"`
}

// monthlyProgressWindow は月別推移で返す最大月数。
const monthlyProgressWindow = 6

// MonthlyProgress はデータのある直近6か月分の月別推移を昇順で返す。
func MonthlyProgress(entries []Entry, loc *time.Location) []MonthProgress {
	type key struct {
		year  int
		month time.Month
	}
	agg := make(map[key]*MonthProgress)
	keys := []key{}

	for _, e := range published(entries) {
		local := e.CreatedAt.In(loc)
		k := key{local.Year(), local.Month()}
		p, ok := agg[k]
		if !ok {
			p = &MonthProgress{Month: local.Format("Jan 2006")}
			agg[k] = p
			keys = append(keys, k)
		}
		p.Entries++
		p.Words += e.WordCount
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	if len(keys) > monthlyProgressWindow {
		keys = keys[len(keys)-monthlyProgressWindow:]
	}

	out := make([]MonthProgress, 0, len(keys))
	for _, k := range keys {
		out = append(out, *agg[k])
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
