package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/mindjournal/internal/ai"
	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/prompt"
)

// multipartOverheadBytes はmultipartの境界やヘッダー分として音声上限に上乗せするバイト数。
const multipartOverheadBytes = 64 << 10

// PromptServiceInterface はプロンプト取得に必要なサービスインターフェース。
type PromptServiceInterface interface {
	Random() prompt.Prompt
	Generate(ctx context.Context, req prompt.Request) (prompt.Prompt, error)
}

// SentimentServiceInterface は感情分析に必要なサービスインターフェース。
// entryIDが空でない場合、分析結果をエントリに保存する。
type SentimentServiceInterface interface {
	Analyze(ctx context.Context, userID, text, entryID string) (*ai.Report, error)
}

// FeedbackServiceInterface はフィードバック生成に必要なサービスインターフェース。
type FeedbackServiceInterface interface {
	Feedback(ctx context.Context, in ai.FeedbackInput) (string, error)
}

// TranscribeServiceInterface は文字起こしに必要なサービスインターフェース。
type TranscribeServiceInterface interface {
	Transcribe(ctx context.Context, audio []byte) (*ai.Transcript, error)
	MaxBytes() int64
}

// AIHandler はプロンプトとAI機能のHTTPハンドラー。
type AIHandler struct {
	prompts     PromptServiceInterface
	sentiment   SentimentServiceInterface
	feedback    FeedbackServiceInterface
	transcriber TranscribeServiceInterface
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(prompts PromptServiceInterface, sentiment SentimentServiceInterface, feedback FeedbackServiceInterface, transcriber TranscribeServiceInterface) *AIHandler {
	return &AIHandler{
		prompts:     prompts,
		sentiment:   sentiment,
		feedback:    feedback,
		transcriber: transcriber,
	}
}

type generatePromptRequest struct {
	Mood            *int     `json:"mood"`
	Context         string   `json:"context"`
	PreviousPrompts []string `json:"previous_prompts"`
}

type sentimentRequest struct {
	Text    string `json:"text"`
	EntryID string `json:"entry_id"`
}

type feedbackRequest struct {
	Text      string        `json:"text"`
	Mood      *int          `json:"mood"`
	Sentiment *ai.Sentiment `json:"sentiment"`
}

// RandomPrompt は静的な一覧からプロンプトを1件返す。
// GET /api/prompts
func (h *AIHandler) RandomPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prompts.Random())
}

// GeneratePrompt は気分と文脈に合わせたプロンプトを返す。
// POST /api/prompts
func (h *AIHandler) GeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req generatePromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.prompts.Generate(r.Context(), prompt.Request{
		Mood:            req.Mood,
		Context:         req.Context,
		PreviousPrompts: req.PreviousPrompts,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AnalyzeSentiment は本文の感情分析を行う。
// POST /api/sentiment
func (h *AIHandler) AnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req sentimentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.sentiment.Analyze(r.Context(), userID, req.Text, req.EntryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GenerateFeedback はエントリへのフィードバックを生成する。
// POST /api/feedback
func (h *AIHandler) GenerateFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	feedback, err := h.feedback.Feedback(r.Context(), ai.FeedbackInput{
		Text:      req.Text,
		Mood:      req.Mood,
		Sentiment: req.Sentiment,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feedback": feedback})
}

// Transcribe はmultipartのaudioフィールドで受け取った音声を文字起こしする。
// POST /api/transcribe
func (h *AIHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.transcriber.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverheadBytes)

	audio, apiErr := readAudio(r, maxBytes)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	transcript, err := h.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// readAudio はmultipartフォームからaudioフィールドを読み出す。
func readAudio(r *http.Request, maxBytes int64) ([]byte, *model.APIError) {
	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewAudioTooLargeError(maxBytes)
		}
		return nil, model.NewAudioMissingError()
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, model.NewAudioMissingError()
	}
	if int64(len(audio)) > maxBytes {
		return nil, model.NewAudioTooLargeError(maxBytes)
	}
	return audio, nil
}
