package stats

// Metric は実績の判定に用いる指標。
type Metric string

const (
	MetricEntries Metric = "entries"
	MetricStreak  Metric = "streak"
	MetricWords   Metric = "words"
)

// AchievementDef は実績の定義。
type AchievementDef struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Metric      Metric
	Target      int
	Category    string
}

// Achievements は実績定義の一覧。この順序で評価結果を返す。
var Achievements = []AchievementDef{
	{ID: "first_entry", Title: "First Steps", Description: "Write your first journal entry", Icon: "✍️", Metric: MetricEntries, Target: 1, Category: "Writing"},
	{ID: "week_warrior", Title: "Week Warrior", Description: "Maintain a 7-day journaling streak", Icon: "🔥", Metric: MetricStreak, Target: 7, Category: "Consistency"},
	{ID: "reflection_rookie", Title: "Reflection Rookie", Description: "Write 10 journal entries", Icon: "📝", Metric: MetricEntries, Target: 10, Category: "Writing"},
	{ID: "month_master", Title: "Month Master", Description: "Journal for 30 consecutive days", Icon: "🏆", Metric: MetricStreak, Target: 30, Category: "Consistency"},
	{ID: "wordsmith", Title: "Wordsmith", Description: "Write 10,000 total words", Icon: "📚", Metric: MetricWords, Target: 10000, Category: "Writing"},
	{ID: "century_club", Title: "Century Club", Description: "Write 100 journal entries", Icon: "💯", Metric: MetricEntries, Target: 100, Category: "Milestone"},
}

// AchievementInput は実績判定の入力値。
type AchievementInput struct {
	TotalEntries  int
	CurrentStreak int
	TotalWords    int
}

func (in AchievementInput) value(m Metric) int {
	var v int
	switch m {
	case MetricEntries:
		v = in.TotalEntries
	case MetricStreak:
		v = in.CurrentStreak
	case MetricWords:
		v = in.TotalWords
	}
	return max(v, 0)
}

// Achievement は実績の評価結果。
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Unlocked    bool   `json:"unlocked"`
	Progress    int    `json:"progress"`
	Target      int    `json:"target"`
	Category    string `json:"category"`
}

// EvaluateAchievements は全実績の進捗と達成状況を定義順で返す。
// progressはtargetで頭打ちになり、progress >= target で達成とする。
func EvaluateAchievements(in AchievementInput) []Achievement {
	out := make([]Achievement, 0, len(Achievements))
	for _, def := range Achievements {
		progress := min(in.value(def.Metric), def.Target)
		out = append(out, Achievement{
			ID:          def.ID,
			Title:       def.Title,
			Description: def.Description,
			Icon:        def.Icon,
			Unlocked:    progress >= def.Target,
			Progress:    progress,
			Target:      def.Target,
			Category:    def.Category,
		})
	}
	return out
}

// UnlockedCount は達成済みの実績数を返す。
func UnlockedCount(achievements []Achievement) int {
	n := 0
	for _, a := range achievements {
		if a.Unlocked {
			n++
		}
	}
	return n
}
