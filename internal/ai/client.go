// Package ai はGoogleの生成AI・自然言語・音声認識APIとの連携を提供する。
// Clientは3つのREST APIの薄いラッパーで、Analyzer、Coach、Transcriberが
// その結果を明示的な結果型（parsed / fallback / 上流エラー）に変換する。
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/mindjournal/internal/metrics"
)

// 上流サービス名。ログとメトリクスのラベルに使う。
const (
	ServiceGenerative = "generative_language"
	ServiceLanguage   = "natural_language"
	ServiceSpeech     = "speech_to_text"
)

// maxResponseBytes は上流レスポンスの読み取り上限。
const maxResponseBytes = 4 << 20

// Endpoints は各APIのベースURL。テストで差し替える。
type Endpoints struct {
	Generative string
	Language   string
	Speech     string
}

// DefaultEndpoints は本番のエンドポイント。
var DefaultEndpoints = Endpoints{
	Generative: "https://generativelanguage.googleapis.com/v1beta",
	Language:   "https://language.googleapis.com/v1",
	Speech:     "https://speech.googleapis.com/v1",
}

// Config はClientの設定。
type Config struct {
	APIKey         string
	Model          string
	SpeechLanguage string
	Endpoints      Endpoints
	// MaxAttempts は1リクエストあたりの最大試行回数。1以下なら再試行しない。
	MaxAttempts int
}

// Client はGoogle APIのクライアント。APIキーは x-goog-api-key ヘッダで送る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	apiKey     string
	model      string
	language   string
	endpoints  Endpoints

	maxAttempts int
	retryBase   time.Duration
}

// NewClient はClientを生成する。未指定の設定値には既定値を使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config, m metrics.MetricsCollector) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.SpeechLanguage == "" {
		cfg.SpeechLanguage = "en-US"
	}
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.SpeechLanguage,
		endpoints:  cfg.Endpoints,

		maxAttempts: cfg.MaxAttempts,
		retryBase:   initialBackoff,
	}
}

// Enabled はAPIキーが設定されているかを返す。
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// UpstreamError は上流APIの呼び出し失敗を表す。
// StatusCodeは通信自体に失敗した場合は0。
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// GenerationConfig は文章生成のパラメータ。
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateText はプロンプトから文章を生成し、最初の候補の本文をトリムして返す。
// 候補がない場合は空文字列を返す。
func (c *Client) GenerateText(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	reqBody := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.endpoints.Generative, c.model)

	var resp generateResponse
	if err := c.post(ctx, ServiceGenerative, endpoint, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// Sentiment は感情スコア(-1.0〜1.0)と強度。
type Sentiment struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
}

// Sentence は文単位の感情分析結果。
type Sentence struct {
	Text struct {
		Content     string `json:"content"`
		BeginOffset int    `json:"beginOffset"`
	} `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
}

// SentimentResult は文書全体の感情分析結果。
type SentimentResult struct {
	DocumentSentiment Sentiment  `json:"documentSentiment"`
	Sentences         []Sentence `json:"sentences"`
	Language          string     `json:"language"`
}

// Entity はエンティティ単位の感情分析結果。
type Entity struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Salience  float64   `json:"salience"`
	Sentiment Sentiment `json:"sentiment"`
}

type document struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type languageRequest struct {
	Document     document `json:"document"`
	EncodingType string   `json:"encodingType"`
}

func newLanguageRequest(text string) languageRequest {
	return languageRequest{
		Document:     document{Type: "PLAIN_TEXT", Content: text},
		EncodingType: "UTF8",
	}
}

// AnalyzeSentiment は文書の感情分析を行う。
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (*SentimentResult, error) {
	var resp SentimentResult
	if err := c.post(ctx, ServiceLanguage, c.endpoints.Language+"/documents:analyzeSentiment", newLanguageRequest(text), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeEntitySentiment はエンティティ単位の感情分析を行う。
func (c *Client) AnalyzeEntitySentiment(ctx context.Context, text string) ([]Entity, error) {
	var resp struct {
		Entities []Entity `json:"entities"`
	}
	if err := c.post(ctx, ServiceLanguage, c.endpoints.Language+"/documents:analyzeEntitySentiment", newLanguageRequest(text), &resp); err != nil {
		return nil, err
	}
	if resp.Entities == nil {
		return []Entity{}, nil
	}
	return resp.Entities, nil
}

type recognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	Model                      string `json:"model"`
	UseEnhanced                bool   `json:"useEnhanced"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

// RecognitionAlternative は認識候補。
type RecognitionAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult は音声区間ごとの認識結果。
type RecognitionResult struct {
	Alternatives []RecognitionAlternative `json:"alternatives"`
}

// RecognizeResponse はspeech:recognizeのレスポンス。
type RecognizeResponse struct {
	Results []RecognitionResult `json:"results"`
}

// Recognize はWEBM_OPUS(16kHz)の音声を文字起こしする。
func (c *Client) Recognize(ctx context.Context, audio []byte) (*RecognizeResponse, error) {
	reqBody := recognizeRequest{
		Config: recognitionConfig{
			Encoding:                   "WEBM_OPUS",
			SampleRateHertz:            16000,
			LanguageCode:               c.language,
			EnableAutomaticPunctuation: true,
			Model:                      "latest_long",
			UseEnhanced:                true,
		},
	}
	reqBody.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	var resp RecognizeResponse
	if err := c.post(ctx, ServiceSpeech, c.endpoints.Speech+"/speech:recognize", reqBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post はJSONリクエストを送信し、2xxのレスポンスをoutにデコードする。
// MaxAttemptsが2以上なら429と5xxを指数バックオフで再試行する。
// 通信失敗と2xx以外のステータスは *UpstreamError として返す。
func (c *Client) post(ctx context.Context, service, endpoint string, reqBody, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordUpstreamCall(service, err == nil, time.Since(start))
		}
	}()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	for attempt := 1; ; attempt++ {
		body, statusCode, err := c.send(ctx, service, endpoint, payload)
		if err != nil {
			return err
		}

		switch classifyStatus(statusCode) {
		case statusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return &UpstreamError{Service: service, StatusCode: statusCode, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
			}
			return nil
		case statusRetry:
			if attempt < c.maxAttempts {
				delay := backoffDelay(c.retryBase, attempt-1)
				c.logger.Warn("外部APIの一時的なエラーのため再試行します",
					slog.String("service", service),
					slog.Int("http_status", statusCode),
					slog.Int("attempt", attempt),
					slog.Duration("delay", delay),
				)
				if err := sleepContext(ctx, delay); err != nil {
					return &UpstreamError{Service: service, StatusCode: statusCode, Err: err}
				}
				continue
			}
		}

		c.logger.Error("外部APIがエラーステータスを返しました",
			slog.String("service", service),
			slog.Int("http_status", statusCode),
		)
		return &UpstreamError{
			Service:    service,
			StatusCode: statusCode,
			Err:        errors.New(truncate(string(body), 200)),
		}
	}
}

// send はリクエストを1回送信し、レスポンスボディとステータスコードを返す。
func (c *Client) send(ctx context.Context, service, endpoint string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("外部APIの呼び出しに失敗しました",
			slog.String("service", service),
			slog.String("error", err.Error()),
		)
		return nil, 0, &UpstreamError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: err}
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
