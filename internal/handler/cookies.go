package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// stateCookieMaxAge はOAuth state Cookieの有効期間（秒）。
const stateCookieMaxAge = 600

// setCookie はHttpOnly・SameSite=LaxのCookieを書き込む。maxAgeが負なら削除になる。
func setCookie(w http.ResponseWriter, name, value, domain string, secure bool, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthState はOAuthのstate値をCookieで往復させて照合する。
type oauthState struct {
	cookie string
	secure bool
}

// issue は新しいstateを生成してCookieに保存する。
func (s oauthState) issue(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	setCookie(w, s.cookie, state, "", s.secure, stateCookieMaxAge)
	return state, nil
}

// consume はクエリのstateとCookieを照合する。Cookieは結果に関わらず削除する。
func (s oauthState) consume(w http.ResponseWriter, r *http.Request) bool {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(s.cookie)
	setCookie(w, s.cookie, "", "", s.secure, -1)

	if err != nil || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) == 1
}

// safeRedirectPath はログイン後の遷移先として使える同一オリジンの相対パスかを判定する。
// "//host" やバックスラッシュを含むパスはオープンリダイレクトになるため拒否する。
func safeRedirectPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.ContainsAny(p, "\\\r\n")
}
