package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/mindjournal/internal/metrics"
)

// 上流サービス名。
const (
	ServiceOAuth    = "google_oauth"
	ServiceCalendar = "google_calendar"
)

// DefaultAPIBase はCalendar API v3のベースURL。
const DefaultAPIBase = "https://www.googleapis.com/calendar/v3"

// UpstreamError はGoogle OAuth・Calendar APIの呼び出し失敗を表す。
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// APIClient はCalendar API v3のクライアント。
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewAPIClient はAPIClientを生成する。baseURLが空の場合は DefaultAPIBase を使う。
func NewAPIClient(httpClient *http.Client, baseURL string, logger *slog.Logger, m metrics.MetricsCollector) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &APIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    m,
	}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type insertRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	Recurrence  []string  `json:"recurrence"`
	Reminders   struct {
		UseDefault bool       `json:"useDefault"`
		Overrides  []Reminder `json:"overrides"`
	} `json:"reminders"`
}

type insertResponse struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

// InsertEvent はカレンダーにイベントを作成し、作成されたイベントのIDとリンクを設定する。
func (c *APIClient) InsertEvent(ctx context.Context, accessToken, calendarID string, ev *Event) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordUpstreamCall(ServiceCalendar, err == nil, time.Since(start))
		}
	}()

	reqBody := insertRequest{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       eventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         eventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
		Recurrence:  ev.Recurrence,
	}
	reqBody.Reminders.Overrides = ev.Reminders

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("カレンダーAPIの呼び出しに失敗しました", slog.String("error", err.Error()))
		return &UpstreamError{Service: ServiceCalendar, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &UpstreamError{Service: ServiceCalendar, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("カレンダーAPIがエラーステータスを返しました", slog.Int("http_status", resp.StatusCode))
		return &UpstreamError{Service: ServiceCalendar, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(body), 200))}
	}

	var out insertResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return &UpstreamError{Service: ServiceCalendar, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}
	ev.ID = out.ID
	ev.HTMLLink = out.HTMLLink
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
