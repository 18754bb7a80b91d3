// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
)

// ErrNotFound は更新・削除対象のレコードが存在しない（または所有者が異なる）場合に返される。
var ErrNotFound = errors.New("record not found")

// UnknownEmotionTagError はエントリ保存時に存在しない感情タグIDが指定された場合に返される。
type UnknownEmotionTagError struct {
	ID string
}

func (e *UnknownEmotionTagError) Error() string {
	return fmt.Sprintf("unknown emotion tag: %s", e.ID)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから取得したプロフィールでユーザーを更新する。
	UpdateProfile(ctx context.Context, id string, profile model.Profile) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、エントリ、気分記録、カレンダー連携はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// RecordLogin はidentityの最終ログイン日時を更新する。
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EntryRepository はジャーナルエントリの永続化インターフェース。
// 取得系は全て所有ユーザーでスコープされる。
type EntryRepository interface {
	// Create はエントリと感情タグの紐付けを同一トランザクションで作成する。
	// 存在しないタグIDが含まれる場合は *UnknownEmotionTagError を返し、何も書き込まない。
	Create(ctx context.Context, entry *model.JournalEntry, tags model.TagSelection) error

	// FindByID はユーザーのエントリを感情タグ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.JournalEntry, error)

	// List は条件に合うエントリをcreated_at降順で返す。
	List(ctx context.Context, userID string, opts model.EntryListOptions) ([]*model.JournalEntry, error)

	// ListAll はユーザーの全エントリ（下書き含む）をcreated_at降順で返す。
	ListAll(ctx context.Context, userID string) ([]*model.JournalEntry, error)

	// Update はエントリを全置換し、感情タグの紐付けも入れ替える。
	// 対象が存在しない場合は ErrNotFound を返す。
	Update(ctx context.Context, entry *model.JournalEntry, tags model.TagSelection) error

	// UpdateSentiment は感情分析の結果をエントリに保存する。
	UpdateSentiment(ctx context.Context, userID, id string, score float64, data []byte) error

	// Delete はエントリを削除する。紐付けはCASCADE削除される。
	Delete(ctx context.Context, userID, id string) error
}

// EmotionTagRepository は感情タグの永続化インターフェース。
type EmotionTagRepository interface {
	// List は全感情タグを名前順で返す。
	List(ctx context.Context) ([]model.EmotionTag, error)
}

// MoodLogRepository は気分記録の永続化インターフェース。追記のみ。
type MoodLogRepository interface {
	// Create は気分記録を作成する。
	Create(ctx context.Context, log *model.MoodLog) error

	// ListSince はsince以降の気分記録をlogged_at降順で返す。
	ListSince(ctx context.Context, userID string, since time.Time) ([]*model.MoodLog, error)

	// ListAll はユーザーの全気分記録をlogged_at降順で返す。
	ListAll(ctx context.Context, userID string) ([]*model.MoodLog, error)
}

// CalendarConnectionRepository はカレンダー連携トークンの永続化インターフェース。
type CalendarConnectionRepository interface {
	// Upsert は連携情報を作成または更新する。
	Upsert(ctx context.Context, conn *model.CalendarConnection) error

	// FindByUserID はユーザーの連携情報を取得する。未連携の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.CalendarConnection, error)

	// DeleteByUserID はユーザーの連携情報を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
