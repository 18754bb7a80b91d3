// Package model はドメインモデルとAPIエラーを定義する。
package model

import (
	"strings"
	"time"
)

// ProviderGoogle はGoogleログインのプロバイダー名。
const ProviderGoogle = "google"

// User はジャーナルの利用者。プロフィール項目はログインのたびにIdPの値で同期される。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName は表示名を返す。名前が空の場合はメールアドレスのローカル部を使う。
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Profile はIdPから同期するプロフィール項目。
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// Identity はユーザーと外部IdPアカウントの紐付け。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
	// LastLoginAt は未ログインの場合ゼロ値。
	LastLoginAt time.Time
}

// Session はCookieで識別するログインセッション。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はnow時点でセッションが期限切れかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
