package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresEmotionTagRepo はPostgreSQLを使用した感情タグリポジトリ。
type PostgresEmotionTagRepo struct {
	db *sql.DB
}

// NewPostgresEmotionTagRepo はPostgresEmotionTagRepoを生成する。
func NewPostgresEmotionTagRepo(db *sql.DB) *PostgresEmotionTagRepo {
	return &PostgresEmotionTagRepo{db: db}
}

// List は全感情タグを名前順で返す。
func (r *PostgresEmotionTagRepo) List(ctx context.Context) ([]model.EmotionTag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM emotion_tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("感情タグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tags := []model.EmotionTag{}
	for rows.Next() {
		var tag model.EmotionTag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("感情タグのスキャンに失敗しました: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("感情タグ一覧の走査に失敗しました: %w", err)
	}
	return tags, nil
}

// compile-time interface check
var _ EmotionTagRepository = (*PostgresEmotionTagRepo)(nil)
