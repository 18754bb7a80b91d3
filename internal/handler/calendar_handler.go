package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/mindjournal/internal/calendar"
)

const calendarStateCookie = "calendar_oauth_state"

// カレンダー連携コールバック後のリダイレクトパラメータ
const (
	calendarConnected    = "calendar_connected"
	calendarAuthFailed   = "calendar_auth_failed"
	calendarNoAuthCode   = "no_auth_code"
	calendarSettingsPath = "/settings"
)

// CalendarServiceInterface はカレンダーハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	AuthURL(state string) string
	Connect(ctx context.Context, userID, code string) error
	CreateReminder(ctx context.Context, userID string, in calendar.ReminderInput) (*calendar.Event, error)
	Disconnect(ctx context.Context, userID string) error
}

// CalendarHandlerConfig はカレンダーハンドラーの設定。
type CalendarHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// CalendarHandler はカレンダー連携のHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
	config  CalendarHandlerConfig
	state   oauthState
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface, config CalendarHandlerConfig) *CalendarHandler {
	return &CalendarHandler{
		service: service,
		config:  config,
		state:   oauthState{cookie: calendarStateCookie, secure: config.CookieSecure},
	}
}

// AuthURL はカレンダー連携の認可URLを返す。stateはCookieにも保存する。
// GET /api/calendar/auth
func (h *CalendarHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.issue(w)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.service.AuthURL(state)})
}

// Callback は認可コードをトークンに交換し、設定画面にリダイレクトする。
// GET /api/calendar/callback?code=&state=&error=
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	stateOK := h.state.consume(w, r)
	if providerErr := q.Get("error"); providerErr != "" {
		slog.Warn("calendar authorization denied", slog.String("error", providerErr))
		h.redirectToSettings(w, r, "error", calendarAuthFailed)
		return
	}
	if !stateOK {
		slog.Warn("calendar oauth state mismatch", slog.String("user_id", userID))
		h.redirectToSettings(w, r, "error", calendarAuthFailed)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectToSettings(w, r, "error", calendarNoAuthCode)
		return
	}

	if err := h.service.Connect(r.Context(), userID, code); err != nil {
		slog.Error("calendar connect failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		h.redirectToSettings(w, r, "error", calendarAuthFailed)
		return
	}

	h.redirectToSettings(w, r, "success", calendarConnected)
}

// CreateEvent はリマインダーイベントを作成する。
// POST /api/calendar/create-event
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in calendar.ReminderInput
	if !decodeJSON(w, r, &in) {
		return
	}

	event, err := h.service.CreateReminder(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":   event,
		"message": calendar.MessageEventCreated,
	})
}

// Disconnect は保存済みのカレンダー連携を削除する。
// DELETE /api/calendar/connection
func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) redirectToSettings(w http.ResponseWriter, r *http.Request, key, value string) {
	target := strings.TrimRight(h.config.BaseURL, "/") + calendarSettingsPath + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
