package stats

// Bucket はチャート表示用の分類結果。
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// 感情分析のラベル
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// sentimentThreshold を超える（未満の）スコアをpositive（negative）とする。境界値はneutral。
const sentimentThreshold = 0.1

var moodBuckets = []Bucket{
	{Label: "Very Low (1-2)", Color: "#ef4444"},
	{Label: "Low (3-4)", Color: "#f97316"},
	{Label: "Neutral (5-6)", Color: "#eab308"},
	{Label: "Good (7-8)", Color: "#22c55e"},
	{Label: "Excellent (9-10)", Color: "#10b981"},
}

var sentimentColors = map[string]string{
	SentimentPositive: "#10b981",
	SentimentNeutral:  "#6b7280",
	SentimentNegative: "#ef4444",
}

// moodBucketIndex は気分スコアの分類先を返す。2以下は最下位、9以上は最上位に入る。
func moodBucketIndex(score int) int {
	switch {
	case score <= 2:
		return 0
	case score <= 4:
		return 1
	case score <= 6:
		return 2
	case score <= 8:
		return 3
	default:
		return 4
	}
}

// BucketMoods は気分スコアを5段階に分類する。件数0の分類も常に含める。
func BucketMoods(scores []int) []Bucket {
	out := make([]Bucket, len(moodBuckets))
	copy(out, moodBuckets)
	for _, s := range scores {
		out[moodBucketIndex(s)].Count++
	}
	return out
}

// ClassifySentiment は感情スコアをpositive、neutral、negativeのいずれかに分類する。
func ClassifySentiment(score float64) string {
	switch {
	case score > sentimentThreshold:
		return SentimentPositive
	case score < -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// BucketSentiments は感情スコアをpositive、neutral、negativeの順で3分類する。
func BucketSentiments(scores []float64) []Bucket {
	out := []Bucket{
		{Label: SentimentPositive, Color: sentimentColors[SentimentPositive]},
		{Label: SentimentNeutral, Color: sentimentColors[SentimentNeutral]},
		{Label: SentimentNegative, Color: sentimentColors[SentimentNegative]},
	}
	for _, s := range scores {
		switch ClassifySentiment(s) {
		case SentimentPositive:
			out[0].Count++
		case SentimentNeutral:
			out[1].Count++
		default:
			out[2].Count++
		}
	}
	return out
}

// SentimentColor はラベルに対応する表示色を返す。
func SentimentColor(label string) string {
	return sentimentColors[label]
}

// NonEmpty は件数0の分類を除いた結果を返す。
func NonEmpty(buckets []Bucket) []Bucket {
	out := []Bucket{}
	for _, b := range buckets {
		if b.Count > 0 {
			out = append(out, b)
		}
	}
	return out
}
