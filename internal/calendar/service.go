// Package calendar はGoogleカレンダー連携とジャーナリングのリマインダー作成を提供する。
// 連携済みユーザーはCalendar APIでイベントを直接作成し、未連携の場合は
// イベント作成画面のテンプレートURLを返す。
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mindjournal/internal/auth"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/repository"
)

// Scopes はカレンダー連携で要求するスコープ。
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
}

// primaryCalendar はイベントを作成するカレンダー。
const primaryCalendar = "primary"

// expiryLeeway はアクセストークンを期限切れとみなす余裕。
const expiryLeeway = time.Minute

// MessageEventCreated はイベント作成成功時のメッセージ。
const MessageEventCreated = "Calendar event created successfully"

// TokenSource はOAuthの認可URL生成とトークン取得を行う。
type TokenSource interface {
	AuthCodeURL(state, redirectURL string, scopes []string, offline bool) string
	Exchange(ctx context.Context, code, redirectURL string) (*auth.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Token, error)
}

// Cipher は保存するトークンの暗号化・復号を行う。
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// EventInserter はカレンダーへのイベント作成を行う。
type EventInserter interface {
	InsertEvent(ctx context.Context, accessToken, calendarID string, ev *Event) error
}

// Config はServiceの設定。
type Config struct {
	RedirectURL string // カレンダー連携のコールバックURL
	TimeZone    string // イベントの既定タイムゾーン
}

// Service はカレンダー連携のビジネスロジックを提供する。
type Service struct {
	tokens TokenSource
	conns  repository.CalendarConnectionRepository
	cipher Cipher
	events EventInserter
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(tokens TokenSource, conns repository.CalendarConnectionRepository, cipher Cipher, events EventInserter, config Config, logger *slog.Logger) *Service {
	if config.TimeZone == "" {
		config.TimeZone = "UTC"
	}
	return &Service{
		tokens: tokens,
		conns:  conns,
		cipher: cipher,
		events: events,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// AuthURL はカレンダー連携の認可URLを返す。
// リフレッシュトークンを得るためオフラインアクセスと再同意を要求する。
func (s *Service) AuthURL(state string) string {
	return s.tokens.AuthCodeURL(state, s.config.RedirectURL, Scopes, true)
}

// Connect は認可コードをトークンに交換し、暗号化して保存する。
func (s *Service) Connect(ctx context.Context, userID, code string) error {
	token, err := s.tokens.Exchange(ctx, code, s.config.RedirectURL)
	if err != nil {
		return &UpstreamError{Service: ServiceOAuth, Err: err}
	}

	if err := s.store(ctx, userID, token); err != nil {
		return err
	}

	s.logger.Info("カレンダー連携を保存しました", slog.String("user_id", userID))
	return nil
}

// Disconnect は保存済みのトークンを削除する。
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.conns.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("カレンダー連携の解除に失敗しました: %w", err)
	}
	return nil
}

// CreateReminder はジャーナリングのリマインダーイベントを作成する。
// 連携済みならCalendar APIで作成し(mode=api)、未連携ならテンプレートURLを返す(mode=template)。
func (s *Service) CreateReminder(ctx context.Context, userID string, in ReminderInput) (*Event, error) {
	ev, err := buildEvent(in, s.config.TimeZone)
	if err != nil {
		return nil, err
	}

	conn, err := s.conns.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カレンダー連携の取得に失敗しました: %w", err)
	}
	if conn == nil {
		ev.URL = TemplateURL(ev)
		ev.Mode = ModeTemplate
		return ev, nil
	}

	accessToken, err := s.accessToken(ctx, conn)
	if err != nil {
		return nil, toAPIError(s.logger, err)
	}

	if err := s.events.InsertEvent(ctx, accessToken, primaryCalendar, ev); err != nil {
		return nil, toAPIError(s.logger, err)
	}
	ev.Mode = ModeAPI
	return ev, nil
}

// accessToken は有効なアクセストークンを返す。期限切れの場合はリフレッシュして保存し直す。
func (s *Service) accessToken(ctx context.Context, conn *model.CalendarConnection) (string, error) {
	access, err := s.cipher.Decrypt(conn.AccessToken)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの復号に失敗しました: %w", err)
	}
	if s.now().Add(expiryLeeway).Before(conn.TokenExpiry) {
		return access, nil
	}

	refresh, err := s.cipher.Decrypt(conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("リフレッシュトークンの復号に失敗しました: %w", err)
	}
	if refresh == "" {
		return "", &UpstreamError{Service: ServiceOAuth, Err: errors.New("access token expired and no refresh token stored")}
	}

	token, err := s.tokens.Refresh(ctx, refresh)
	if err != nil {
		return "", &UpstreamError{Service: ServiceOAuth, Err: err}
	}
	if err := s.store(ctx, conn.UserID, token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (s *Service) store(ctx context.Context, userID string, token *auth.Token) error {
	access, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("アクセストークンの暗号化に失敗しました: %w", err)
	}
	refresh, err := s.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("リフレッシュトークンの暗号化に失敗しました: %w", err)
	}

	conn := &model.CalendarConnection{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  token.Expiry,
		Scope:        token.Scope,
	}
	if err := s.conns.Upsert(ctx, conn); err != nil {
		return fmt.Errorf("カレンダー連携の保存に失敗しました: %w", err)
	}
	return nil
}

// toAPIError は上流エラーをAPIエラーに変換する。それ以外はそのまま返す。
func toAPIError(logger *slog.Logger, err error) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		logger.Warn("カレンダー連携の上流呼び出しに失敗しました",
			slog.String("service", upstream.Service),
			slog.String("error", upstream.Error()),
		)
		return model.NewUpstreamError(upstream.Service)
	}
	return err
}
