package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresCalendarConnectionRepo はPostgreSQLを使用したカレンダー連携リポジトリ。
// トークンの暗号化・復号は呼び出し側の責務で、ここでは受け取った値をそのまま保存する。
type PostgresCalendarConnectionRepo struct {
	db *sql.DB
}

// NewPostgresCalendarConnectionRepo はPostgresCalendarConnectionRepoを生成する。
func NewPostgresCalendarConnectionRepo(db *sql.DB) *PostgresCalendarConnectionRepo {
	return &PostgresCalendarConnectionRepo{db: db}
}

// Upsert は連携情報を作成または更新する。
// refresh_tokenが空の場合は既存の値を維持する（再同意時にIdPが返さないことがあるため）。
func (r *PostgresCalendarConnectionRepo) Upsert(ctx context.Context, conn *model.CalendarConnection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_connections (user_id, access_token, refresh_token, token_expiry, scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     access_token = EXCLUDED.access_token,
		     refresh_token = CASE WHEN EXCLUDED.refresh_token = '' THEN calendar_connections.refresh_token
		                          ELSE EXCLUDED.refresh_token END,
		     token_expiry = EXCLUDED.token_expiry,
		     scope = EXCLUDED.scope,
		     updated_at = now()`,
		conn.UserID, conn.AccessToken, conn.RefreshToken, conn.TokenExpiry, conn.Scope,
	)
	if err != nil {
		return fmt.Errorf("カレンダー連携情報の保存に失敗しました: %w", err)
	}
	return nil
}

// FindByUserID はユーザーの連携情報を取得する。未連携の場合はnilを返す。
func (r *PostgresCalendarConnectionRepo) FindByUserID(ctx context.Context, userID string) (*model.CalendarConnection, error) {
	conn := &model.CalendarConnection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, token_expiry, scope, created_at, updated_at
		 FROM calendar_connections WHERE user_id = $1`,
		userID,
	).Scan(&conn.UserID, &conn.AccessToken, &conn.RefreshToken, &conn.TokenExpiry, &conn.Scope, &conn.CreatedAt, &conn.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カレンダー連携情報の取得に失敗しました: %w", err)
	}
	return conn, nil
}

// DeleteByUserID はユーザーの連携情報を削除する。未連携でもエラーにしない。
func (r *PostgresCalendarConnectionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_connections WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("カレンダー連携情報の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CalendarConnectionRepository = (*PostgresCalendarConnectionRepo)(nil)
