package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   statusClass
	}{
		{200, statusOK},
		{204, statusOK},
		{400, statusFail},
		{401, statusFail},
		{403, statusFail},
		{404, statusFail},
		{429, statusRetry},
		{500, statusRetry},
		{503, statusRetry},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 250 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{10, maxBackoff},
	}

	for _, tt := range tests {
		if got := backoffDelay(initialBackoff, tt.retry); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestSleepContext_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() = %v, want context.Canceled", err)
	}
}
