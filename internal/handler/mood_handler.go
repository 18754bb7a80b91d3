package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/mood"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// MoodServiceInterface は気分ハンドラーが必要とするサービスインターフェース。
type MoodServiceInterface interface {
	LogMood(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error)
	ListRecent(ctx context.Context, userID string, days int) ([]*model.MoodLog, error)
	// Summary は直近days日の気分集計を返す。
	Summary(ctx context.Context, userID string, days int) (*stats.MoodSummary, error)
}

// MoodHandler は気分記録のHTTPハンドラー。
type MoodHandler struct {
	service MoodServiceInterface
}

// NewMoodHandler はMoodHandlerを生成する。
func NewMoodHandler(service MoodServiceInterface) *MoodHandler {
	return &MoodHandler{service: service}
}

type logMoodRequest struct {
	MoodScore   *int    `json:"mood_score"`
	EnergyLevel *int    `json:"energy_level"`
	StressLevel *int    `json:"stress_level"`
	Notes       *string `json:"notes"`
}

type moodLogResponse struct {
	ID          string    `json:"id"`
	MoodScore   int       `json:"mood_score"`
	EnergyLevel *int      `json:"energy_level"`
	StressLevel *int      `json:"stress_level"`
	Notes       *string   `json:"notes"`
	LoggedAt    time.Time `json:"logged_at"`
}

func toMoodLogResponse(l *model.MoodLog) moodLogResponse {
	return moodLogResponse{
		ID:          l.ID,
		MoodScore:   l.MoodScore,
		EnergyLevel: l.EnergyLevel,
		StressLevel: l.StressLevel,
		Notes:       l.Notes,
		LoggedAt:    l.LoggedAt,
	}
}

// ListMoodLogs は直近の気分記録を返す。
// GET /api/mood?days=
func (h *MoodHandler) ListMoodLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, apiErr := parseDays(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	logs, err := h.service.ListRecent(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]moodLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toMoodLogResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"mood_logs": resp})
}

// LogMood は気分を記録する。
// POST /api/mood
func (h *MoodHandler) LogMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req logMoodRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	log, err := h.service.LogMood(r.Context(), userID, mood.LogInput{
		MoodScore:   req.MoodScore,
		EnergyLevel: req.EnergyLevel,
		StressLevel: req.StressLevel,
		Notes:       req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"mood_log": toMoodLogResponse(log),
		"message":  "Mood logged successfully",
	})
}

// Summary は気分ページ用の集計を返す。
// GET /api/mood/summary?days=
func (h *MoodHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, apiErr := parseDays(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	summary, err := h.service.Summary(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// parseDays はdaysクエリを解釈する。未指定なら既定値を返す。
func parseDays(r *http.Request) (int, *model.APIError) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return mood.DefaultDays, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 || days > mood.MaxDays {
		return 0, model.NewInvalidInputError(fmt.Sprintf("days は1から%dの範囲で指定してください", mood.MaxDays))
	}
	return days, nil
}
