package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresMoodLogRepo はPostgreSQLを使用した気分記録リポジトリ。
type PostgresMoodLogRepo struct {
	db *sql.DB
}

// NewPostgresMoodLogRepo はPostgresMoodLogRepoを生成する。
func NewPostgresMoodLogRepo(db *sql.DB) *PostgresMoodLogRepo {
	return &PostgresMoodLogRepo{db: db}
}

// Create は気分記録を作成する。
func (r *PostgresMoodLogRepo) Create(ctx context.Context, log *model.MoodLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mood_logs (id, user_id, mood_score, energy_level, stress_level, notes, logged_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.UserID, log.MoodScore, nullableInt(log.EnergyLevel), nullableInt(log.StressLevel),
		nullableString(log.Notes), log.LoggedAt,
	)
	if err != nil {
		return fmt.Errorf("気分記録の作成に失敗しました: %w", err)
	}
	return nil
}

// ListSince はsince以降の気分記録をlogged_at降順で返す。
func (r *PostgresMoodLogRepo) ListSince(ctx context.Context, userID string, since time.Time) ([]*model.MoodLog, error) {
	return r.query(ctx,
		`SELECT id, user_id, mood_score, energy_level, stress_level, notes, logged_at
		 FROM mood_logs
		 WHERE user_id = $1 AND logged_at >= $2
		 ORDER BY logged_at DESC`,
		userID, since,
	)
}

// ListAll はユーザーの全気分記録をlogged_at降順で返す。
func (r *PostgresMoodLogRepo) ListAll(ctx context.Context, userID string) ([]*model.MoodLog, error) {
	return r.query(ctx,
		`SELECT id, user_id, mood_score, energy_level, stress_level, notes, logged_at
		 FROM mood_logs
		 WHERE user_id = $1
		 ORDER BY logged_at DESC`,
		userID,
	)
}

func (r *PostgresMoodLogRepo) query(ctx context.Context, query string, args ...any) ([]*model.MoodLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("気分記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	logs := []*model.MoodLog{}
	for rows.Next() {
		log := &model.MoodLog{}
		var energy, stress sql.NullInt64
		var notes sql.NullString
		if err := rows.Scan(&log.ID, &log.UserID, &log.MoodScore, &energy, &stress, &notes, &log.LoggedAt); err != nil {
			return nil, fmt.Errorf("気分記録のスキャンに失敗しました: %w", err)
		}
		log.EnergyLevel = nullIntPtr(energy)
		log.StressLevel = nullIntPtr(stress)
		if notes.Valid {
			log.Notes = &notes.String
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("気分記録の走査に失敗しました: %w", err)
	}
	return logs, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// compile-time interface check
var _ MoodLogRepository = (*PostgresMoodLogRepo)(nil)
