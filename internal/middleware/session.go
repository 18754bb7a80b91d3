// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/mindjournal/internal/model"
)

const sessionCookieName = "session_id"

type contextKey string

var userIDContextKey = contextKey("user_id")

// ErrNoUserID はコンテキストに認証済みユーザーIDがない場合に返される。
var ErrNoUserID = errors.New("user ID not found in context")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はsession_id Cookieからセッションを解決し、
// ユーザーIDをリクエストコンテキストに注入する。
// Cookieがない、セッションが見つからない、期限切れのいずれも同じ401を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, reason := resolveSession(r, sessionFinder)
			if session == nil {
				slog.Debug("request rejected by session check",
					slog.String("path", r.URL.Path),
					slog.String("reason", reason),
				)
				WriteUnauthorized(w)
				return
			}

			noteUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// resolveSession は有効なセッションを返す。無効な場合はnilと理由を返す。
func resolveSession(r *http.Request, finder SessionFinder) (*model.Session, string) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, "no_cookie"
	}

	session, err := finder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return nil, "lookup_failed"
	}
	if session == nil {
		return nil, "not_found"
	}
	// リポジトリはDB時刻で判定済みだが、アプリ側の時刻でも確認する
	if session.Expired(time.Now()) {
		return nil, "expired"
	}
	return session, ""
}

// UserIDFromContext はセッションミドルウェアが注入したユーザーIDを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserID
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
