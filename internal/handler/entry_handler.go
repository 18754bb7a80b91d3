package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mindjournal/internal/journal"
	"github.com/hitoshi/mindjournal/internal/model"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	CreateEntry(ctx context.Context, userID string, in journal.EntryInput) (*journal.SaveResult, error)
	GetEntry(ctx context.Context, userID, entryID string) (*journal.EntryDetail, error)
	ListEntries(ctx context.Context, userID string, opts model.EntryListOptions) ([]*model.JournalEntry, error)
	UpdateEntry(ctx context.Context, userID, entryID string, in journal.EntryInput) (*journal.SaveResult, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// EmotionListerInterface は感情タグ一覧の取得に必要なインターフェース。
// repository.EmotionTagRepositoryの部分集合として定義する。
type EmotionListerInterface interface {
	List(ctx context.Context) ([]model.EmotionTag, error)
}

// EntryHandler はジャーナルエントリのHTTPハンドラー。
type EntryHandler struct {
	service  EntryServiceInterface
	emotions EmotionListerInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface, emotions EmotionListerInterface) *EntryHandler {
	return &EntryHandler{
		service:  service,
		emotions: emotions,
	}
}

// entryRequest はエントリ作成・更新リクエストのボディ。
// emotion_tagsは既存タグのID、emotion_namesは未登録なら作成されるタグ名。
type entryRequest struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	MoodScore    *int     `json:"mood_score"`
	IsDraft      bool     `json:"is_draft"`
	PromptUsed   *string  `json:"prompt_used"`
	EmotionTags  []string `json:"emotion_tags"`
	EmotionNames []string `json:"emotion_names"`
}

func (req entryRequest) toInput() journal.EntryInput {
	return journal.EntryInput{
		Title:        req.Title,
		Content:      req.Content,
		MoodScore:    req.MoodScore,
		IsDraft:      req.IsDraft,
		PromptUsed:   req.PromptUsed,
		EmotionIDs:   req.EmotionTags,
		EmotionNames: req.EmotionNames,
	}
}

// entryResponse はエントリのAPIレスポンス。
type entryResponse struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Content        string             `json:"content"`
	ContentHTML    string             `json:"content_html,omitempty"`
	MoodScore      *int               `json:"mood_score"`
	WordCount      int                `json:"word_count"`
	IsDraft        bool               `json:"is_draft"`
	PromptUsed     *string            `json:"prompt_used"`
	SentimentScore *float64           `json:"sentiment_score"`
	SentimentData  json.RawMessage    `json:"sentiment_data"`
	EmotionTags    []model.EmotionTag `json:"emotion_tags"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func toEntryResponse(e *model.JournalEntry) entryResponse {
	tags := e.Emotions
	if tags == nil {
		tags = []model.EmotionTag{}
	}
	return entryResponse{
		ID:             e.ID,
		Title:          e.Title,
		Content:        e.Content,
		MoodScore:      e.MoodScore,
		WordCount:      e.WordCount,
		IsDraft:        e.IsDraft,
		PromptUsed:     e.PromptUsed,
		SentimentScore: e.SentimentScore,
		SentimentData:  e.SentimentData,
		EmotionTags:    tags,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type saveEntryResponse struct {
	Entry   entryResponse `json:"entry"`
	Message string        `json:"message"`
}

// ListEntries はエントリ一覧を返す。
// GET /api/entries?limit=&offset=&include_drafts=&search=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	opts, apiErr := parseEntryListOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	entries, err := h.service.ListEntries(r.Context(), userID, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": resp})
}

// CreateEntry はエントリを作成する。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CreateEntry(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, saveEntryResponse{
		Entry:   toEntryResponse(result.Entry),
		Message: result.Message,
	})
}

// GetEntry はエントリを本文HTML付きで返す。
// GET /api/entries/{id}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toEntryResponse(detail.Entry)
	resp.ContentHTML = detail.ContentHTML
	writeJSON(w, http.StatusOK, map[string]any{"entry": resp})
}

// UpdateEntry はエントリを全置換する。
// PUT /api/entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.UpdateEntry(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saveEntryResponse{
		Entry:   toEntryResponse(result.Entry),
		Message: result.Message,
	})
}

// DeleteEntry はエントリを削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEmotions は感情タグ一覧を名前順で返す。
// GET /api/emotions
func (h *EntryHandler) ListEmotions(w http.ResponseWriter, r *http.Request) {
	tags, err := h.emotions.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []model.EmotionTag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"emotions": tags})
}

// parseEntryListOptions はクエリパラメータから一覧取得条件を組み立てる。
// limitの既定値と上限の丸めはサービス層で行う。
func parseEntryListOptions(r *http.Request) (model.EntryListOptions, *model.APIError) {
	q := r.URL.Query()
	var opts model.EntryListOptions

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewInvalidInputError("limit は整数で指定してください")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, model.NewInvalidInputError("offset は0以上の整数で指定してください")
		}
		opts.Offset = n
	}
	if v := q.Get("include_drafts"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, model.NewInvalidInputError("include_drafts はtrueまたはfalseで指定してください")
		}
		opts.IncludeDrafts = b
	}
	opts.Search = q.Get("search")
	return opts, nil
}
