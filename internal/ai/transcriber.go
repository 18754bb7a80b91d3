package ai

import (
	"context"
	"strings"

	"github.com/hitoshi/mindjournal/internal/model"
)

// SpeechRecognizer は音声認識APIのインターフェース。
type SpeechRecognizer interface {
	Recognize(ctx context.Context, audio []byte) (*RecognizeResponse, error)
}

// Transcript は文字起こしの結果。
type Transcript struct {
	Text       string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Transcriber は音声を文字起こしする。
type Transcriber struct {
	recognizer SpeechRecognizer
	maxBytes   int64
}

// NewTranscriber はTranscriberを生成する。recognizerがnilの場合、AI機能は未設定として扱う。
func NewTranscriber(recognizer SpeechRecognizer, maxBytes int64) *Transcriber {
	return &Transcriber{recognizer: recognizer, maxBytes: maxBytes}
}

// MaxBytes は受け付ける音声データの上限バイト数を返す。
func (t *Transcriber) MaxBytes() int64 {
	return t.maxBytes
}

// Transcribe は各結果の第一候補を空白で連結する。
// 信頼度は最初の結果の値を使う。結果がない場合は空の文字起こしを返す。
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (*Transcript, error) {
	if t.recognizer == nil {
		return nil, model.NewAINotConfiguredError()
	}
	if len(audio) == 0 {
		return nil, model.NewAudioMissingError()
	}
	if t.maxBytes > 0 && int64(len(audio)) > t.maxBytes {
		return nil, model.NewAudioTooLargeError(t.maxBytes)
	}

	resp, err := t.recognizer.Recognize(ctx, audio)
	if err != nil {
		return nil, toAPIError(err)
	}

	out := &Transcript{}
	parts := make([]string, 0, len(resp.Results))
	for i, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		parts = append(parts, r.Alternatives[0].Transcript)
		if i == 0 {
			out.Confidence = r.Alternatives[0].Confidence
		}
	}
	out.Text = strings.Join(parts, " ")
	return out, nil
}
