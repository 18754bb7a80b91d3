package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mindjournal/internal/metrics"
	"github.com/hitoshi/mindjournal/internal/middleware"
)

// healthCheckTimeout は/healthでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// エントリ
	EntryService   EntryServiceInterface
	EmotionService EmotionListerInterface

	// 気分記録
	MoodService MoodServiceInterface

	// 統計・エクスポート
	StatsService  StatsServiceInterface
	ExportService ExportServiceInterface

	// プロンプト・AI
	PromptService     PromptServiceInterface
	SentimentService  SentimentServiceInterface
	FeedbackService   FeedbackServiceInterface
	TranscribeService TranscribeServiceInterface

	// カレンダー
	CalendarService CalendarServiceInterface
	CalendarConfig  CalendarHandlerConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  /api/*: Session → RateLimit(General) → CSRF [→ RateLimit(AI)]
//
// /health、/metrics、認証ルート（/auth/*）、/api/csrf-token はセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.EntryService, deps.EmotionService)
	moodHandler := NewMoodHandler(deps.MoodService)
	statsHandler := NewStatsHandler(deps.StatsService, deps.ExportService)
	aiHandler := NewAIHandler(deps.PromptService, deps.SentimentService, deps.FeedbackService, deps.TranscribeService)
	calendarHandler := NewCalendarHandler(deps.CalendarService, deps.CalendarConfig)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Route("/api", func(r chi.Router) {
		// CSRFトークンの取得はログイン前のページからも行うため認証不要
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			// エントリ
			r.Route("/entries", func(r chi.Router) {
				r.Get("/", entryHandler.ListEntries)
				r.Post("/", entryHandler.CreateEntry)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", entryHandler.GetEntry)
					r.Put("/", entryHandler.UpdateEntry)
					r.Delete("/", entryHandler.DeleteEntry)
				})
			})
			r.Get("/emotions", entryHandler.ListEmotions)

			// 気分記録
			r.Route("/mood", func(r chi.Router) {
				r.Get("/", moodHandler.ListMoodLogs)
				r.Post("/", moodHandler.LogMood)
				r.Get("/summary", moodHandler.Summary)
			})

			// 統計・実績・エクスポート
			r.Get("/stats", statsHandler.Dashboard)
			r.Get("/achievements", statsHandler.Achievements)
			r.Get("/export", statsHandler.Export)

			// プロンプト（POSTは生成AIを呼ぶためAI用のレート制限を追加）
			r.Get("/prompts", aiHandler.RandomPrompt)
			r.With(deps.RateLimiter.AIMiddleware()).Post("/prompts", aiHandler.GeneratePrompt)

			// AI機能
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.AIMiddleware())
				r.Post("/sentiment", aiHandler.AnalyzeSentiment)
				r.Post("/feedback", aiHandler.GenerateFeedback)
				r.Post("/transcribe", aiHandler.Transcribe)
			})

			// カレンダー
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/auth", calendarHandler.AuthURL)
				r.Get("/callback", calendarHandler.Callback)
				r.Post("/create-event", calendarHandler.CreateEvent)
				r.Delete("/connection", calendarHandler.Disconnect)
			})

			// ユーザー
			r.Post("/user/sync", userHandler.Sync)
			r.Delete("/users/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDBに疎通できれば200、できなければ503を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
