package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mindjournal/internal/ai"
	"github.com/hitoshi/mindjournal/internal/auth"
	"github.com/hitoshi/mindjournal/internal/calendar"
	"github.com/hitoshi/mindjournal/internal/config"
	"github.com/hitoshi/mindjournal/internal/database"
	"github.com/hitoshi/mindjournal/internal/export"
	"github.com/hitoshi/mindjournal/internal/handler"
	"github.com/hitoshi/mindjournal/internal/journal"
	"github.com/hitoshi/mindjournal/internal/logger"
	"github.com/hitoshi/mindjournal/internal/metrics"
	"github.com/hitoshi/mindjournal/internal/middleware"
	"github.com/hitoshi/mindjournal/internal/mood"
	"github.com/hitoshi/mindjournal/internal/prompt"
	"github.com/hitoshi/mindjournal/internal/repository"
	"github.com/hitoshi/mindjournal/internal/security"
	"github.com/hitoshi/mindjournal/internal/stats"
	"github.com/hitoshi/mindjournal/internal/user"
	"github.com/hitoshi/mindjournal/internal/worker/cleanup"
)

const (
	oauthHTTPTimeout    = 10 * time.Second
	calendarHTTPTimeout = 15 * time.Second
	shutdownTimeout     = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数（と.env）からConfigを読み込み、
// LOG_LEVELに合わせてロガーを再設定する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("ai_enabled", cfg.AIEnabled()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMigrateStatus:
		return runMigrateStatus(w, cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMetrics はGo・プロセスのメトリクスを含む専用レジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// aiBackends はAI機能の上流クライアント。APIキー未設定の場合は全てnil。
type aiBackends struct {
	generator  ai.TextGenerator
	sentiment  ai.SentimentAnalyzer
	recognizer ai.SpeechRecognizer
}

func newAIBackends(cfg *config.Config, guard security.OutboundGuard, m metrics.MetricsCollector) (aiBackends, error) {
	if !cfg.AIEnabled() {
		slog.Warn("GOOGLE_API_KEY is not set; AI features are disabled")
		return aiBackends{}, nil
	}

	endpoints := ai.DefaultEndpoints
	for _, endpoint := range []string{endpoints.Generative, endpoints.Language, endpoints.Speech} {
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			return aiBackends{}, fmt.Errorf("invalid AI endpoint %s: %w", endpoint, err)
		}
	}

	client := ai.NewClient(guard.NewClient(cfg.AITimeout), slog.Default(), ai.Config{
		APIKey:         cfg.GoogleAPIKey,
		Model:          cfg.AIModel,
		SpeechLanguage: cfg.SpeechLanguage,
		Endpoints:      endpoints,
		MaxAttempts:    cfg.AIMaxAttempts,
	}, m)
	return aiBackends{generator: client, sentiment: client, recognizer: client}, nil
}

// buildRouterDeps は全依存関係をワイヤリングしてRouterDepsを組み立てる。
func buildRouterDeps(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, collector *metrics.Collector) (*handler.RouterDeps, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	emotionRepo := repository.NewPostgresEmotionTagRepo(db)
	moodRepo := repository.NewPostgresMoodLogRepo(db)
	calendarRepo := repository.NewPostgresCalendarConnectionRepo(db)

	// 2. セキュリティサービスの初期化
	guard := security.NewOutboundGuard()
	renderer := security.NewContentRenderer()
	cipher, err := security.NewTokenCipher(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}
	if err := guard.ValidateEndpoint(calendar.DefaultAPIBase); err != nil {
		return nil, fmt.Errorf("invalid calendar endpoint: %w", err)
	}

	// 3. 認証
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   guard.NewClient(oauthHTTPTimeout),
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. ドメインサービスの初期化
	journalService := journal.NewService(entryRepo, renderer, collector)
	moodService := mood.NewService(moodRepo)
	statsService := stats.NewService(entryRepo, moodRepo, cfg.StatsLocation)
	exportService := export.NewService(userRepo, entryRepo, moodRepo, cfg.StatsLocation, collector)
	userService := user.NewService(userRepo, sessionRepo)

	backends, err := newAIBackends(cfg, guard, collector)
	if err != nil {
		return nil, err
	}
	promptService := prompt.NewService(backends.generator, slog.Default(), collector)
	analyzer := ai.NewAnalyzer(backends.sentiment, backends.generator, slog.Default(), collector)
	coach := ai.NewCoach(backends.generator, slog.Default())
	transcriber := ai.NewTranscriber(backends.recognizer, cfg.TranscribeMaxBytes)

	calendarClient := calendar.NewAPIClient(guard.NewClient(calendarHTTPTimeout), calendar.DefaultAPIBase, slog.Default(), collector)
	calendarService := calendar.NewService(oauthProvider, calendarRepo, cipher, calendarClient, calendar.Config{
		RedirectURL: cfg.CalendarRedirectURL,
		TimeZone:    cfg.CalendarTimeZone,
	}, slog.Default())

	// 5. ルーター依存の構築
	return &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAI),
		),

		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		EntryService:   journalService,
		EmotionService: emotionRepo,
		MoodService:    handler.NewMoodServiceAdapter(moodService, statsService),
		StatsService:   statsService,
		ExportService:  exportService,

		PromptService:     promptService,
		SentimentService:  handler.NewSentimentServiceAdapter(analyzer, journalService),
		FeedbackService:   coach,
		TranscribeService: transcriber,

		CalendarService: calendarService,
		CalendarConfig: handler.CalendarHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},

		UserService: userService,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg, collector := newMetrics()
	deps, err := buildRouterDeps(cfg, db, reg, collector)
	if err != nil {
		return err
	}
	defer deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのクリーンアップを定期実行し、/metrics と /health を公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg, collector := newMetrics()
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), collector, cfg.SessionCleanupGraceDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(reg))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err = serveUntilSignal(server, "worker")
	cancel()
	<-done
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.Migrate(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(status.Version)),
	)
	return nil
}

// runMigrateStatus は適用済みのスキーマバージョンをJSONでwに書き出す。
func runMigrateStatus(w io.Writer, cfg *config.Config) error {
	status, err := database.Status(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	return json.NewEncoder(w).Encode(struct {
		Version uint `json:"version"`
		Dirty   bool `json:"dirty"`
		Applied bool `json:"applied"`
	}{status.Version, status.Dirty, status.Applied})
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
