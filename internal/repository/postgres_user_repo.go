package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresUserRepo はusersテーブルのリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID はユーザーを返す。見つからない場合は nil, nil を返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &user, nil
}

// CreateWithIdentity は初回ログイン時にユーザーとidentityを1トランザクションで登録する。
// identityの最終ログイン日時はユーザーの作成日時で初期化する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	return tx.Commit()
}

// UpdateProfile はIdPのプロフィールで上書きする。対象がない場合は ErrNotFound を返す。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id string, profile model.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, name = $3, avatar_url = $4, updated_at = now() WHERE id = $1`,
		id, profile.Email, profile.Name, profile.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return requireAffected(result)
}

// DeleteByID はユーザーを削除する。
// identities、sessions、journal_entries、mood_logs、calendar_connectionsはCASCADEで消える。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
