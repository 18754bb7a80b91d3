// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, not_found, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeCSRFInvalid       = "CSRF_TOKEN_INVALID"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidMoodScore  = "INVALID_MOOD_SCORE"
	ErrCodeEmptyEntry        = "EMPTY_ENTRY"
	ErrCodeInvalidEntryID    = "INVALID_ENTRY_ID"
	ErrCodeUnknownEmotionTag = "UNKNOWN_EMOTION_TAG"
	ErrCodeInvalidEventTime  = "INVALID_EVENT_TIME"
	ErrCodeAudioMissing      = "AUDIO_MISSING"
	ErrCodeAudioTooLarge     = "AUDIO_TOO_LARGE"
	ErrCodeEntryNotFound     = "ENTRY_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeAINotConfigured   = "AI_NOT_CONFIGURED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryUpstream   = "upstream"
	CategorySystem     = "system"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewCSRFInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: CategoryAuth,
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInvalidInputError は入力値が不正な場合のエラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidMoodScoreError は気分スコアが範囲外の場合のエラーを生成する。
// fieldにはmood_score、energy_level、stress_levelのいずれかが入る。
func NewInvalidMoodScoreError(field string, value int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMoodScore,
		Message:  fmt.Sprintf("%s は1から10の範囲で指定してください: %d", field, value),
		Category: CategoryValidation,
		Action:   "1から10の整数を指定してください。",
	}
}

// NewEmptyEntryError はタイトルも本文も空のエントリを保存しようとした場合のエラーを生成する。
func NewEmptyEntryError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyEntry,
		Message:  "タイトルまたは本文のいずれかが必要です。",
		Category: CategoryValidation,
		Action:   "タイトルか本文を入力してください。",
	}
}

// NewInvalidEntryIDError はエントリIDの形式が不正な場合のエラーを生成する。
func NewInvalidEntryIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEntryID,
		Message:  fmt.Sprintf("エントリIDの形式が不正です: %s", id),
		Category: CategoryValidation,
		Action:   "エントリIDを確認してください。",
	}
}

// NewUnknownEmotionTagError は存在しない感情タグIDが指定された場合のエラーを生成する。
func NewUnknownEmotionTagError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownEmotionTag,
		Message:  fmt.Sprintf("指定された感情タグが存在しません: %s", id),
		Category: CategoryValidation,
		Action:   "感情タグ一覧から選択してください。",
	}
}

// NewInvalidEventTimeError はカレンダーイベントの日時指定が不正な場合のエラーを生成する。
func NewInvalidEventTimeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEventTime,
		Message:  fmt.Sprintf("イベント日時が不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "RFC 3339形式で開始日時を指定してください。",
	}
}

// NewAudioMissingError は音声データが送信されなかった場合のエラーを生成する。
func NewAudioMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeAudioMissing,
		Message:  "音声データがありません。",
		Category: CategoryValidation,
		Action:   "audioフィールドに音声ファイルを添付してください。",
	}
}

// NewAudioTooLargeError は音声データが上限を超えた場合のエラーを生成する。
func NewAudioTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeAudioTooLarge,
		Message:  fmt.Sprintf("音声データが大きすぎます（上限 %d バイト）。", maxBytes),
		Category: CategoryValidation,
		Action:   "録音時間を短くして再度お試しください。",
	}
}

// NewEntryNotFoundError はエントリが見つからない場合のエラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリが見つかりません: %s", entryID),
		Category: CategoryNotFound,
		Action:   "エントリIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryNotFound,
		Action:   "ログインし直してください。",
	}
}

// NewUpstreamError は外部APIの呼び出しに失敗した場合のエラーを生成する。
func NewUpstreamError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("外部サービスの呼び出しに失敗しました: %s", service),
		Category: CategoryUpstream,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAINotConfiguredError はAI機能のAPIキーが未設定の場合のエラーを生成する。
func NewAINotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeAINotConfigured,
		Message:  "AI機能は現在利用できません。",
		Category: CategoryUpstream,
		Action:   "管理者にお問い合わせください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
