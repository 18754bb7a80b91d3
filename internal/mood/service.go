// Package mood は気分記録の登録と取得を提供する。
package mood

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mindjournal/internal/journal"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/repository"
)

// 取得期間（日数）
const (
	DefaultDays = 30
	MaxDays     = 365
)

// LogInput は気分記録の入力値。MoodScoreは必須。
type LogInput struct {
	MoodScore   *int
	EnergyLevel *int
	StressLevel *int
	Notes       *string
}

// Service は気分記録のサービス層。
type Service struct {
	logs repository.MoodLogRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(logs repository.MoodLogRepository) *Service {
	return &Service{logs: logs, now: time.Now}
}

// LogMood は気分を記録する。各スコアは1〜10で、範囲外はエラーとする。
func (s *Service) LogMood(ctx context.Context, userID string, in LogInput) (*model.MoodLog, error) {
	if in.MoodScore == nil {
		return nil, model.NewInvalidInputError("mood_score は必須です")
	}
	scores := []struct {
		field string
		value *int
	}{
		{"mood_score", in.MoodScore},
		{"energy_level", in.EnergyLevel},
		{"stress_level", in.StressLevel},
	}
	for _, sc := range scores {
		if sc.value == nil {
			continue
		}
		if err := journal.ValidateScore(sc.field, *sc.value); err != nil {
			return nil, err
		}
	}

	var notes *string
	if in.Notes != nil {
		if v := strings.TrimSpace(*in.Notes); v != "" {
			notes = &v
		}
	}

	log := &model.MoodLog{
		ID:          uuid.New().String(),
		UserID:      userID,
		MoodScore:   *in.MoodScore,
		EnergyLevel: in.EnergyLevel,
		StressLevel: in.StressLevel,
		Notes:       notes,
		LoggedAt:    s.now().UTC(),
	}
	if err := s.logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("気分記録の作成に失敗しました: %w", err)
	}
	return log, nil
}

// ListRecent は直近days日間の気分記録を新しい順に返す。daysが0なら既定値を使う。
func (s *Service) ListRecent(ctx context.Context, userID string, days int) ([]*model.MoodLog, error) {
	if days == 0 {
		days = DefaultDays
	}
	if days < 1 || days > MaxDays {
		return nil, model.NewInvalidInputError(fmt.Sprintf("days は1から%dの範囲で指定してください", MaxDays))
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	logs, err := s.logs.ListSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("気分記録の取得に失敗しました: %w", err)
	}
	return logs, nil
}
