// Package export はユーザーデータのエクスポート（JSON/CSV）を提供する。
//
// Assemble は副作用を持たない純粋関数で、読み込み済みのデータから
// エクスポート文書を組み立てる。データが空でもエラーにはならない。
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// Version はエクスポート形式のバージョン。
const Version = "1.0"

// Input はAssembleの入力。
type Input struct {
	User     *model.User
	Entries  []*model.JournalEntry
	MoodLogs []*model.MoodLog
	Now      time.Time
	Location *time.Location
}

// Document はエクスポート文書。
type Document struct {
	ExportInfo     Info                `json:"export_info"`
	UserProfile    Profile             `json:"user_profile"`
	Statistics     stats.Summary       `json:"statistics"`
	Achievements   []stats.Achievement `json:"achievements"`
	JournalEntries []Entry             `json:"journal_entries"`
	MoodLogs       []MoodLog           `json:"mood_logs"`
}

// Info はエクスポート自体のメタ情報。
type Info struct {
	ExportedAt    time.Time `json:"exported_at"`
	ExportVersion string    `json:"export_version"`
	TotalEntries  int       `json:"total_entries"`
	TotalMoodLogs int       `json:"total_mood_logs"`
}

// Profile はユーザー情報。
type Profile struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	MemberSince time.Time `json:"member_since"`
}

// Entry はエクスポートされるエントリ。感情タグはIDではなく名前で出力する。
type Entry struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	MoodScore      *int      `json:"mood_score"`
	WordCount      int       `json:"word_count"`
	IsDraft        bool      `json:"is_draft"`
	PromptUsed     *string   `json:"prompt_used"`
	SentimentScore *float64  `json:"sentiment_score"`
	Emotions       []string  `json:"emotions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MoodLog はエクスポートされる気分記録。
type MoodLog struct {
	ID          string    `json:"id"`
	MoodScore   int       `json:"mood_score"`
	EnergyLevel *int      `json:"energy_level"`
	StressLevel *int      `json:"stress_level"`
	Notes       *string   `json:"notes"`
	LoggedAt    time.Time `json:"logged_at"`
}

// Assemble はエクスポート文書を組み立てる。
// 統計は下書きを除いて計算し、エントリ一覧には下書きも含める。
func Assemble(in Input) Document {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	entries := make([]Entry, 0, len(in.Entries))
	for _, e := range in.Entries {
		entries = append(entries, Entry{
			ID:             e.ID,
			Title:          e.Title,
			Content:        e.Content,
			MoodScore:      e.MoodScore,
			WordCount:      e.WordCount,
			IsDraft:        e.IsDraft,
			PromptUsed:     e.PromptUsed,
			SentimentScore: e.SentimentScore,
			Emotions:       e.EmotionTagNames(),
			CreatedAt:      e.CreatedAt,
			UpdatedAt:      e.UpdatedAt,
		})
	}

	logs := make([]MoodLog, 0, len(in.MoodLogs))
	for _, l := range in.MoodLogs {
		logs = append(logs, MoodLog{
			ID:          l.ID,
			MoodScore:   l.MoodScore,
			EnergyLevel: l.EnergyLevel,
			StressLevel: l.StressLevel,
			Notes:       l.Notes,
			LoggedAt:    l.LoggedAt,
		})
	}

	var profile Profile
	if in.User != nil {
		profile = Profile{Email: in.User.Email, Name: in.User.Name, MemberSince: in.User.CreatedAt}
	}

	summary := stats.Summarize(stats.FromModel(in.Entries), in.Now, loc)

	return Document{
		ExportInfo: Info{
			ExportedAt:    in.Now.UTC(),
			ExportVersion: Version,
			TotalEntries:  len(entries),
			TotalMoodLogs: len(logs),
		},
		UserProfile:    profile,
		Statistics:     summary,
		Achievements:   stats.EvaluateAchievements(summary.AchievementInput()),
		JournalEntries: entries,
		MoodLogs:       logs,
	}
}

// FileName はダウンロード時のファイル名を返す。
// 名前の空白の連続は"-"に置換し、名前が空の場合は"user"を使う。
func FileName(name string, now time.Time, loc *time.Location, ext string) string {
	slug := strings.Join(strings.Fields(name), "-")
	if slug == "" {
		slug = "user"
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("mindfulness-journal-%s-%s.%s", slug, now.In(loc).Format("2006-01-02"), ext)
}

// csvHeader はCSVエクスポートの列。
var csvHeader = []string{"id", "created_at", "title", "mood_score", "word_count", "is_draft", "emotions", "content"}

// WriteCSV はエントリをCSVで書き出す。感情タグは";"区切りで1列にまとめる。
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		mood := ""
		if e.MoodScore != nil {
			mood = strconv.Itoa(*e.MoodScore)
		}
		record := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Title,
			mood,
			strconv.Itoa(e.WordCount),
			strconv.FormatBool(e.IsDraft),
			strings.Join(e.Emotions, ";"),
			e.Content,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
