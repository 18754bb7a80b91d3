package ai

import (
	"context"
	"net/http"
	"time"
)

// statusClass は上流HTTPステータスの分類。
type statusClass int

const (
	statusOK statusClass = iota
	// statusRetry は一時的な失敗（429/5xx）。
	statusRetry
	// statusFail は再試行しても結果が変わらない失敗。
	statusFail
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 250 * time.Millisecond
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 2 * time.Second
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(statusCode int) statusClass {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return statusOK
	case statusCode == http.StatusTooManyRequests:
		return statusRetry
	case statusCode >= 500:
		return statusRetry
	default:
		return statusFail
	}
}

// backoffDelay は再試行回数に応じた遅延を返す。base から2倍ずつ増加し、maxBackoff で頭打ち。
func backoffDelay(base time.Duration, retry int) time.Duration {
	delay := base
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sleepContext はdだけ待つ。ctxが先に終了した場合はctx.Err()を返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
