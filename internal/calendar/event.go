package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
)

// リマインダーの既定値。
const (
	DefaultSummary         = "Daily Journaling Reminder"
	DefaultDescription     = "Time for mindful reflection and journaling"
	DefaultDurationMinutes = 15
	DailyRecurrence        = "RRULE:FREQ=DAILY"
)

// 作成結果のモード。
const (
	ModeAPI      = "api"
	ModeTemplate = "template"
)

// templateBaseURL はGoogleカレンダーのイベント作成画面。
const templateBaseURL = "https://calendar.google.com/calendar/render"

// ReminderInput はリマインダーイベント作成の入力。
type ReminderInput struct {
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	StartDateTime   string   `json:"start_date_time"`
	EndDateTime     string   `json:"end_date_time"`
	DurationMinutes int      `json:"duration_minutes"`
	TimeZone        string   `json:"time_zone"`
	Recurrence      []string `json:"recurrence"`
}

// Reminder は通知設定の上書き。
type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// reminderOverrides はメール(前日)とポップアップ(10分前)の通知。
var reminderOverrides = []Reminder{
	{Method: "email", Minutes: 24 * 60},
	{Method: "popup", Minutes: 10},
}

// Event は作成したリマインダーイベント。
// mode=api の場合はIDとHTMLLink、mode=template の場合はURLが入る。
type Event struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	TimeZone    string     `json:"time_zone"`
	Recurrence  []string   `json:"recurrence"`
	Reminders   []Reminder `json:"reminders"`
	HTMLLink    string     `json:"html_link,omitempty"`
	URL         string     `json:"url,omitempty"`
	Mode        string     `json:"mode"`
}

// buildEvent は入力を検証し、既定値を補完したイベントを組み立てる。
func buildEvent(in ReminderInput, defaultTimeZone string) (*Event, error) {
	startRaw := strings.TrimSpace(in.StartDateTime)
	if startRaw == "" {
		return nil, model.NewInvalidEventTimeError("start_date_time is required")
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, model.NewInvalidEventTimeError("start_date_time must be RFC 3339")
	}

	var end time.Time
	if endRaw := strings.TrimSpace(in.EndDateTime); endRaw != "" {
		end, err = time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, model.NewInvalidEventTimeError("end_date_time must be RFC 3339")
		}
	} else {
		if in.DurationMinutes < 0 {
			return nil, model.NewInvalidEventTimeError("duration_minutes must not be negative")
		}
		minutes := in.DurationMinutes
		if minutes == 0 {
			minutes = DefaultDurationMinutes
		}
		end = start.Add(time.Duration(minutes) * time.Minute)
	}
	if !end.After(start) {
		return nil, model.NewInvalidEventTimeError("end must be after start")
	}

	tz := strings.TrimSpace(in.TimeZone)
	if tz == "" {
		tz = defaultTimeZone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, model.NewInvalidEventTimeError(fmt.Sprintf("unknown time zone %q", tz))
	}

	ev := &Event{
		Summary:     strings.TrimSpace(in.Summary),
		Description: strings.TrimSpace(in.Description),
		Start:       start,
		End:         end,
		TimeZone:    tz,
		Recurrence:  in.Recurrence,
		Reminders:   reminderOverrides,
	}
	if ev.Summary == "" {
		ev.Summary = DefaultSummary
	}
	if ev.Description == "" {
		ev.Description = DefaultDescription
	}
	if len(ev.Recurrence) == 0 {
		ev.Recurrence = []string{DailyRecurrence}
	}
	return ev, nil
}

// TemplateURL はGoogleカレンダーのイベント作成画面のURLを返す。
// 日時はUTCの基本形式(20060102T150405Z)で埋め込む。
func TemplateURL(ev *Event) string {
	const layout = "20060102T150405Z"
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", ev.Summary)
	q.Set("dates", ev.Start.UTC().Format(layout)+"/"+ev.End.UTC().Format(layout))
	q.Set("details", ev.Description)
	q.Set("recur", DailyRecurrence)
	if len(ev.Recurrence) > 0 {
		q.Set("recur", ev.Recurrence[0])
	}
	return templateBaseURL + "?" + q.Encode()
}
