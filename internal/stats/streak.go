// Package stats はジャーナルの集計（連続記録、合計、気分推移、実績、分布）を計算する。
// 関数は全て純粋関数で、現在時刻とタイムゾーンを引数で受け取る。
package stats

import (
	"sort"
	"time"
)

// Entry は集計に必要なジャーナルエントリの属性。
type Entry struct {
	CreatedAt      time.Time
	MoodScore      *int
	WordCount      int
	IsDraft        bool
	SentimentScore *float64
}

// published は下書きを除いたエントリを返す。
func published(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDraft {
			out = append(out, e)
		}
	}
	return out
}

// dayOf はtをloc上の暦日（0時0分）に丸める。
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// distinctDays は公開済みエントリの暦日を重複なしで昇順に返す。
func distinctDays(entries []Entry, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{})
	days := []time.Time{}
	for _, e := range published(entries) {
		d := dayOf(e.CreatedAt, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func isNextDay(prev, cur time.Time) bool {
	return prev.AddDate(0, 0, 1).Equal(cur)
}

// CurrentStreak は今日を終点とする連続記録日数を返す。
// 今日の公開済みエントリがなければ、昨日まで何日続いていても0になる。
// 未来日付のエントリは無視する。
func CurrentStreak(entries []Entry, now time.Time, loc *time.Location) int {
	today := dayOf(now, loc)
	days := distinctDays(entries, loc)

	i := len(days) - 1
	for i >= 0 && days[i].After(today) {
		i--
	}
	if i < 0 || !days[i].Equal(today) {
		return 0
	}

	streak := 1
	for ; i > 0; i-- {
		if !isNextDay(days[i-1], days[i]) {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak は過去全体で最長の連続記録日数を返す。
func LongestStreak(entries []Entry, loc *time.Location) int {
	days := distinctDays(entries, loc)
	if len(days) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if isNextDay(days[i-1], days[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
