package model

import (
	"encoding/json"
	"time"
)

// DefaultEntryTitle はタイトル未入力時に補完されるタイトル。
const DefaultEntryTitle = "Untitled Entry"

// DefaultEmotionTagColor は名前指定で新規作成される感情タグの表示色。
const DefaultEmotionTagColor = "bg-blue-100 text-blue-800"

// JournalEntry はジャーナルエントリを表す。
// WordCountは保存時の本文から常に再計算される。
type JournalEntry struct {
	ID             string
	UserID         string
	Title          string
	Content        string
	MoodScore      *int
	WordCount      int
	IsDraft        bool
	PromptUsed     *string
	SentimentScore *float64
	SentimentData  json.RawMessage
	Emotions       []EmotionTag
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EmotionTagNames はエントリに紐づく感情タグ名の一覧を返す。
func (e *JournalEntry) EmotionTagNames() []string {
	names := make([]string, 0, len(e.Emotions))
	for _, t := range e.Emotions {
		names = append(names, t.Name)
	}
	return names
}

// EmotionTag は全ユーザー共通の感情タグ。
type EmotionTag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagSelection はエントリ保存時に指定される感情タグの集合。
// IDsは既存タグのID、Namesは未登録なら作成されるタグ名。
type TagSelection struct {
	IDs   []string
	Names []string
}

// Empty はタグ指定が空かどうかを返す。
func (s TagSelection) Empty() bool {
	return len(s.IDs) == 0 && len(s.Names) == 0
}

// EntryListOptions はエントリ一覧取得時の条件。
type EntryListOptions struct {
	Limit         int
	Offset        int
	IncludeDrafts bool
	Search        string
}

// MoodLog は気分の記録。追記のみで更新はされない。
type MoodLog struct {
	ID          string
	UserID      string
	MoodScore   int
	EnergyLevel *int
	StressLevel *int
	Notes       *string
	LoggedAt    time.Time
}

// CalendarConnection はカレンダー連携で取得したトークンを保持する。
// トークンは暗号化された状態で永続化される。
type CalendarConnection struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
