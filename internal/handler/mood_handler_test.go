package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/mood"
	"github.com/hitoshi/mindjournal/internal/stats"
)

type mockMoodService struct {
	logMoodFn    func(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error)
	listRecentFn func(ctx context.Context, userID string, days int) ([]*model.MoodLog, error)
	summaryFn    func(ctx context.Context, userID string, days int) (*stats.MoodSummary, error)
}

func (m *mockMoodService) LogMood(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error) {
	if m.logMoodFn != nil {
		return m.logMoodFn(ctx, userID, in)
	}
	return &model.MoodLog{ID: "log-1", UserID: userID, MoodScore: 5}, nil
}

func (m *mockMoodService) ListRecent(ctx context.Context, userID string, days int) ([]*model.MoodLog, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, userID, days)
	}
	return nil, nil
}

func (m *mockMoodService) Summary(ctx context.Context, userID string, days int) (*stats.MoodSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, userID, days)
	}
	return &stats.MoodSummary{}, nil
}

// --- GET /api/mood ---

func TestMoodHandler_ListMoodLogs_Days(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantDays   int
		wantStatus int
	}{
		{"default", "", mood.DefaultDays, http.StatusOK},
		{"explicit", "?days=7", 7, http.StatusOK},
		{"upper bound", "?days=365", 365, http.StatusOK},
		{"zero", "?days=0", 0, http.StatusBadRequest},
		{"too large", "?days=366", 0, http.StatusBadRequest},
		{"not a number", "?days=week", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDays := 0
			svc := &mockMoodService{
				listRecentFn: func(ctx context.Context, userID string, days int) ([]*model.MoodLog, error) {
					gotDays = days
					return []*model.MoodLog{}, nil
				},
			}
			h := NewMoodHandler(svc)

			req := withUserID(httptest.NewRequest(http.MethodGet, "/api/mood"+tt.query, nil), "user-123")
			w := httptest.NewRecorder()

			h.ListMoodLogs(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if gotDays != tt.wantDays {
				t.Errorf("days = %d, want %d", gotDays, tt.wantDays)
			}
		})
	}
}

func TestMoodHandler_ListMoodLogs_Response(t *testing.T) {
	logged := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)
	svc := &mockMoodService{
		listRecentFn: func(ctx context.Context, userID string, days int) ([]*model.MoodLog, error) {
			return []*model.MoodLog{
				{ID: "log-1", UserID: userID, MoodScore: 8, EnergyLevel: intPtr(6), LoggedAt: logged},
			}, nil
		},
	}
	h := NewMoodHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/mood", nil), "user-123")
	w := httptest.NewRecorder()

	h.ListMoodLogs(w, req)

	var body struct {
		MoodLogs []moodLogResponse `json:"mood_logs"`
	}
	decodeBody(t, w, &body)
	if len(body.MoodLogs) != 1 {
		t.Fatalf("len(mood_logs) = %d, want 1", len(body.MoodLogs))
	}
	got := body.MoodLogs[0]
	if got.MoodScore != 8 || got.EnergyLevel == nil || *got.EnergyLevel != 6 || got.StressLevel != nil {
		t.Errorf("mood log = %+v", got)
	}
	if !got.LoggedAt.Equal(logged) {
		t.Errorf("logged_at = %v, want %v", got.LoggedAt, logged)
	}
}

// --- POST /api/mood ---

func TestMoodHandler_LogMood_Success(t *testing.T) {
	var got mood.LogInput
	svc := &mockMoodService{
		logMoodFn: func(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error) {
			got = in
			return &model.MoodLog{ID: "log-1", UserID: userID, MoodScore: *in.MoodScore, StressLevel: in.StressLevel, Notes: in.Notes}, nil
		},
	}
	h := NewMoodHandler(svc)

	body := `{"mood_score":6,"stress_level":3,"notes":"busy day"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(body)), "user-123")
	w := httptest.NewRecorder()

	h.LogMood(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.MoodScore == nil || *got.MoodScore != 6 {
		t.Errorf("MoodScore = %v, want 6", got.MoodScore)
	}
	if got.EnergyLevel != nil {
		t.Errorf("EnergyLevel = %v, want nil", got.EnergyLevel)
	}
	if got.Notes == nil || *got.Notes != "busy day" {
		t.Errorf("Notes = %v", got.Notes)
	}
}

func TestMoodHandler_LogMood_OutOfRange(t *testing.T) {
	svc := &mockMoodService{
		logMoodFn: func(ctx context.Context, userID string, in mood.LogInput) (*model.MoodLog, error) {
			return nil, model.NewInvalidMoodScoreError("mood_score", *in.MoodScore)
		},
	}
	h := NewMoodHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(`{"mood_score":11}`)), "user-123")
	w := httptest.NewRecorder()

	h.LogMood(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidMoodScore {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidMoodScore)
	}
}

// --- GET /api/mood/summary ---

func TestMoodHandler_Summary(t *testing.T) {
	var gotDays int
	svc := &mockMoodService{
		summaryFn: func(ctx context.Context, userID string, days int) (*stats.MoodSummary, error) {
			gotDays = days
			return &stats.MoodSummary{CurrentMood: 7, AvgMood: 6.5, TotalLogs: 4}, nil
		},
	}
	h := NewMoodHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/mood/summary?days=14", nil), "user-123")
	w := httptest.NewRecorder()

	h.Summary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotDays != 14 {
		t.Errorf("days = %d, want 14", gotDays)
	}
	var body stats.MoodSummary
	decodeBody(t, w, &body)
	if body.CurrentMood != 7 || body.AvgMood != 6.5 || body.TotalLogs != 4 {
		t.Errorf("summary = %+v", body)
	}
}
