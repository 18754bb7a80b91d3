// Package journal はジャーナルエントリの作成・取得・更新・削除を提供する。
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/mindjournal/internal/metrics"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/repository"
)

// 一覧取得の件数
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// 文字数の上限（journal_entries.title、emotion_tags.name の列長）
const (
	MaxTitleLength   = 255
	MaxTagNameLength = 64
)

// 保存結果のメッセージ
const (
	MessageDraftSaved = "Entry saved as draft"
	MessagePublished  = "Entry published successfully"
)

// Renderer は本文の表示用変換を行う。
type Renderer interface {
	RenderMarkdown(content string) string
	StripTags(s string) string
}

// EntryInput はエントリの作成・更新時の入力値。
// 更新は全置換のため、未指定のフィールドは空値として扱われる。
type EntryInput struct {
	Title        string
	Content      string
	MoodScore    *int
	IsDraft      bool
	PromptUsed   *string
	EmotionIDs   []string
	EmotionNames []string
}

// SaveResult は作成・更新の結果。
type SaveResult struct {
	Entry   *model.JournalEntry
	Message string
}

// EntryDetail は単一エントリの取得結果。ContentHTMLはサニタイズ済み。
type EntryDetail struct {
	Entry       *model.JournalEntry
	ContentHTML string
}

// Service はジャーナルエントリのサービス層。
type Service struct {
	entries  repository.EntryRepository
	renderer Renderer
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(entries repository.EntryRepository, renderer Renderer, m metrics.MetricsCollector) *Service {
	return &Service{
		entries:  entries,
		renderer: renderer,
		metrics:  m,
		now:      time.Now,
	}
}

// CountWords は空白区切りの空でないトークン数を返す。
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// CreateEntry はエントリを作成する。
// タイトルと本文はトリムされ、いずれかが空でない必要がある。
func (s *Service) CreateEntry(ctx context.Context, userID string, in EntryInput) (*SaveResult, error) {
	entry, tags, err := s.prepare(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry.ID = uuid.New().String()
	entry.UserID = userID
	entry.PromptUsed = trimOptional(in.PromptUsed)
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := s.entries.Create(ctx, entry, tags); err != nil {
		return nil, translateRepoError(err, entry.ID)
	}

	slog.Info("エントリを作成しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entry.ID),
		slog.Bool("is_draft", entry.IsDraft),
		slog.Int("word_count", entry.WordCount),
	)
	if s.metrics != nil {
		s.metrics.RecordEntrySaved(entry.IsDraft)
	}

	return s.reload(ctx, userID, entry.ID)
}

// GetEntry はエントリを取得し、本文のHTMLを付与する。
func (s *Service) GetEntry(ctx context.Context, userID, entryID string) (*EntryDetail, error) {
	if err := validateEntryID(entryID); err != nil {
		return nil, err
	}

	entry, err := s.entries.FindByID(ctx, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	return &EntryDetail{
		Entry:       entry,
		ContentHTML: s.renderer.RenderMarkdown(entry.Content),
	}, nil
}

// ListEntries は条件に合うエントリを新しい順に返す。
// Limitは0以下なら既定値、上限を超える場合は上限に丸める。
func (s *Service) ListEntries(ctx context.Context, userID string, opts model.EntryListOptions) ([]*model.JournalEntry, error) {
	if opts.Offset < 0 {
		return nil, model.NewInvalidInputError("offset は0以上で指定してください")
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}
	opts.Search = strings.TrimSpace(opts.Search)

	entries, err := s.entries.List(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// UpdateEntry はエントリを全置換する。感情タグの紐付けも入れ替える。
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID string, in EntryInput) (*SaveResult, error) {
	if err := validateEntryID(entryID); err != nil {
		return nil, err
	}
	entry, tags, err := s.prepare(in)
	if err != nil {
		return nil, err
	}

	entry.ID = entryID
	entry.UserID = userID
	entry.UpdatedAt = s.now().UTC()

	if err := s.entries.Update(ctx, entry, tags); err != nil {
		return nil, translateRepoError(err, entryID)
	}
	if s.metrics != nil {
		s.metrics.RecordEntrySaved(entry.IsDraft)
	}

	return s.reload(ctx, userID, entryID)
}

// DeleteEntry はエントリを削除する。
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID string) error {
	if err := validateEntryID(entryID); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, userID, entryID); err != nil {
		return translateRepoError(err, entryID)
	}

	slog.Info("エントリを削除しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entryID),
	)
	return nil
}

// AttachSentiment は感情分析の結果をエントリに保存する。
func (s *Service) AttachSentiment(ctx context.Context, userID, entryID string, score float64, report []byte) error {
	if err := validateEntryID(entryID); err != nil {
		return err
	}
	if err := s.entries.UpdateSentiment(ctx, userID, entryID, score, report); err != nil {
		return translateRepoError(err, entryID)
	}
	return nil
}

// prepare は入力値を検証し、保存用のエントリとタグ指定を組み立てる。
func (s *Service) prepare(in EntryInput) (*model.JournalEntry, model.TagSelection, error) {
	title := strings.TrimSpace(s.renderer.StripTags(in.Title))
	content := strings.TrimSpace(in.Content)
	if title == "" && content == "" {
		return nil, model.TagSelection{}, model.NewEmptyEntryError()
	}
	if title == "" {
		title = model.DefaultEntryTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.TagSelection{}, model.NewInvalidInputError(
			fmt.Sprintf("title は%d文字以内で入力してください", MaxTitleLength))
	}

	if in.MoodScore != nil {
		if err := ValidateScore("mood_score", *in.MoodScore); err != nil {
			return nil, model.TagSelection{}, err
		}
	}

	tags, err := normalizeTags(in.EmotionIDs, in.EmotionNames)
	if err != nil {
		return nil, model.TagSelection{}, err
	}

	return &model.JournalEntry{
		Title:     title,
		Content:   content,
		MoodScore: in.MoodScore,
		WordCount: CountWords(content),
		IsDraft:   in.IsDraft,
	}, tags, nil
}

// reload は保存後のエントリを感情タグ付きで取得し直す。
func (s *Service) reload(ctx context.Context, userID, entryID string) (*SaveResult, error) {
	saved, err := s.entries.FindByID(ctx, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("保存後のエントリ取得に失敗しました: %w", err)
	}
	if saved == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	msg := MessagePublished
	if saved.IsDraft {
		msg = MessageDraftSaved
	}
	return &SaveResult{Entry: saved, Message: msg}, nil
}

// ValidateScore は1〜10の範囲を検証する。範囲外の値は丸めずにエラーとする。
func ValidateScore(field string, v int) error {
	if v < 1 || v > 10 {
		return model.NewInvalidMoodScoreError(field, v)
	}
	return nil
}

func validateEntryID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidEntryIDError(id)
	}
	return nil
}

// normalizeTags はタグIDの形式を検証し、タグ名をトリム・重複除去する。
func normalizeTags(ids, names []string) (model.TagSelection, error) {
	var sel model.TagSelection
	seenIDs := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		parsed, err := uuid.Parse(id)
		if err != nil {
			return model.TagSelection{}, model.NewUnknownEmotionTagError(id)
		}
		key := parsed.String()
		if seenIDs[key] {
			continue
		}
		seenIDs[key] = true
		sel.IDs = append(sel.IDs, key)
	}

	seenNames := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seenNames[name] {
			continue
		}
		if utf8.RuneCountInString(name) > MaxTagNameLength {
			return model.TagSelection{}, model.NewInvalidInputError(
				fmt.Sprintf("感情タグ名は%d文字以内で入力してください", MaxTagNameLength))
		}
		seenNames[name] = true
		sel.Names = append(sel.Names, name)
	}
	return sel, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// translateRepoError はリポジトリのエラーをAPIエラーに変換する。
func translateRepoError(err error, entryID string) error {
	var unknown *repository.UnknownEmotionTagError
	switch {
	case errors.As(err, &unknown):
		return model.NewUnknownEmotionTagError(unknown.ID)
	case errors.Is(err, repository.ErrNotFound):
		return model.NewEntryNotFoundError(entryID)
	default:
		return fmt.Errorf("エントリの保存に失敗しました: %w", err)
	}
}
