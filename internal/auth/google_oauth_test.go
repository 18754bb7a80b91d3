package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// newTokenServer はトークンエンドポイントとユーザー情報エンドポイントを持つテストサーバーを起動する。
func newTokenServer(t *testing.T, handleToken func(form url.Values) (int, map[string]any)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		status, body := handleToken(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sub":     "google-user-123",
			"email":   "test@example.com",
			"name":    "Test User",
			"picture": "https://lh3.googleusercontent.com/a/test",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(server *httptest.Server) *GoogleOAuthProvider {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		HTTPClient:   server.Client(),
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
	})
	p.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	u, err := url.Parse(p.GetLoginURL("test-state-value"))
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	q := u.Query()

	want := map[string]string{
		"client_id":     "test-client-id",
		"redirect_uri":  "http://localhost:8080/auth/google/callback",
		"state":         "test-state-value",
		"response_type": "code",
		"scope":         "openid email profile",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
	if q.Get("access_type") != "" {
		t.Error("login URL should not request offline access")
	}
}

func TestGoogleOAuthProvider_AuthCodeURL_Offline(t *testing.T) {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{ClientID: "cid"})

	raw := p.AuthCodeURL("st", "https://app.example.com/api/calendar/callback",
		[]string{"https://www.googleapis.com/auth/calendar", "https://www.googleapis.com/auth/calendar.events"}, true)
	u, _ := url.Parse(raw)
	q := u.Query()

	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("offline params missing: %s", raw)
	}
	if !strings.Contains(q.Get("scope"), "calendar.events") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/api/calendar/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	server := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "auth-code" {
			t.Errorf("unexpected form: %v", form)
		}
		return http.StatusOK, map[string]any{"access_token": "test-access-token", "expires_in": 3600}
	})

	info, err := newTestProvider(server).ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if info.ProviderUserID != "google-user-123" || info.Email != "test@example.com" || info.Provider != "google" {
		t.Errorf("unexpected user info: %+v", info)
	}
	if info.AvatarURL != "https://lh3.googleusercontent.com/a/test" {
		t.Errorf("AvatarURL = %q", info.AvatarURL)
	}
}

func TestGoogleOAuthProvider_Exchange_TokenFields(t *testing.T) {
	server := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token":  "test-access-token",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"scope":         "calendar",
		}
	})

	tok, err := newTestProvider(server).Exchange(context.Background(), "code", "https://app.example.com/cb")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if tok.RefreshToken != "refresh-1" || tok.Scope != "calendar" {
		t.Errorf("unexpected token: %+v", tok)
	}
	wantExpiry := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	if !tok.Expiry.Equal(wantExpiry) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, wantExpiry)
	}
}

// TestGoogleOAuthProvider_Refresh はリフレッシュトークンが引き継がれることを検証する。
func TestGoogleOAuthProvider_Refresh(t *testing.T) {
	server := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form: %v", form)
		}
		return http.StatusOK, map[string]any{"access_token": "new-access", "expires_in": 60}
	})

	tok, err := newTestProvider(server).Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != "new-access" || tok.RefreshToken != "refresh-1" {
		t.Errorf("unexpected token: %+v", tok)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
	}{
		{"トークンエンドポイントがエラー", http.StatusBadRequest, map[string]any{"error": "invalid_grant"}},
		{"アクセストークンが空", http.StatusOK, map[string]any{"access_token": ""}},
		{"ユーザー情報取得に失敗", http.StatusOK, map[string]any{"access_token": "wrong-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTokenServer(t, func(form url.Values) (int, map[string]any) {
				return tt.status, tt.body
			})
			if _, err := newTestProvider(server).ExchangeCode(context.Background(), "code"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
