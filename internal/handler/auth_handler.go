// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/mindjournal/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
	// postLoginCookie はログイン後に戻るパスを保持する。
	postLoginCookie = "post_login_redirect"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	state   oauthState
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		state:   oauthState{cookie: oauthStateCookie, secure: config.CookieSecure},
	}
}

// Login はGoogle OAuthフローを開始する。
// redirect_toに同一オリジンの相対パスが指定されていれば、ログイン後にそこへ戻す。
// GET /auth/google/login?redirect_to=/journal
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.issue(w)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if next := r.URL.Query().Get("redirect_to"); next != "" {
		if safeRedirectPath(next) {
			setCookie(w, postLoginCookie, url.QueryEscape(next), "", h.config.CookieSecure, stateCookieMaxAge)
		} else {
			slog.Warn("ignoring unsafe redirect_to", slog.String("redirect_to", next))
		}
	}

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、セッションCookieを発行してフロントエンドへ戻す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	target := h.postLoginTarget(w, r)

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Warn("google authorization denied", slog.String("error", providerErr))
		h.state.consume(w, r)
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	if !h.state.consume(w, r) {
		slog.Warn("oauth state mismatch")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("stateパラメータが一致しません"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("認可コードがありません"))
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setCookie(w, sessionCookieName, session.ID, h.config.CookieDomain, h.config.CookieSecure, h.config.SessionMaxAge)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// postLoginTarget はログイン後の遷移先を決め、保持用Cookieを削除する。
func (h *AuthHandler) postLoginTarget(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(postLoginCookie)
	if err != nil {
		return h.config.BaseURL
	}
	setCookie(w, postLoginCookie, "", "", h.config.CookieSecure, -1)

	next, err := url.QueryUnescape(cookie.Value)
	if err != nil || !safeRedirectPath(next) {
		return h.config.BaseURL
	}
	return strings.TrimRight(h.config.BaseURL, "/") + next
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		// 削除に失敗してもCookieはクリアする
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	setCookie(w, sessionCookieName, "", h.config.CookieDomain, h.config.CookieSecure, -1)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil || user == nil {
		if err != nil {
			slog.Warn("failed to get current user", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
