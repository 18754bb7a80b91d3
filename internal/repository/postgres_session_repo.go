package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresSessionRepo はsessionsテーブルのリポジトリ。
// 期限切れ行の削除はworkerのクリーンアップジョブが行う。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを保存する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create session for user %s: %w", session.UserID, err)
	}
	return nil
}

// FindByID は有効なセッションを返す。存在しないか期限切れの場合は nil, nil を返す。
// 期限はDBの現在時刻で判定する。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// DeleteByID はログアウト時にセッションを削除する。存在しない場合も成功とする。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return r.deleteWhere(ctx, "id", id)
}

// DeleteByUserID は退会時にユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return r.deleteWhere(ctx, "user_id", userID)
}

// deleteWhere のcolumnは呼び出し側の固定値のみ。
func (r *PostgresSessionRepo) deleteWhere(ctx context.Context, column, value string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+column+` = $1`, value); err != nil {
		return fmt.Errorf("failed to delete sessions by %s: %w", column, err)
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
