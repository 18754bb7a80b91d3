package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はExecutorのモック。SQLクエリの内容と引数を記録する。
type mockExecutor struct {
	mu        sync.Mutex
	execCount int
	query     string
	args      []interface{}
	result    sql.Result
	err       error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCount++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execCount
}

type mockRecorder struct {
	counts []int
}

func (m *mockRecorder) RecordSessionsCleaned(count int) {
	m.counts = append(m.counts, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログの各行から指定キーを探す。
func findLogField(t *testing.T, buf *bytes.Buffer, key string) (interface{}, bool) {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func TestNewCleanupJob_GraceDays(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"default on zero", 0, DefaultGraceDays},
		{"default on negative", -1, DefaultGraceDays},
		{"custom", 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf), nil, tt.in)
			if job.GraceDays != tt.want {
				t.Errorf("GraceDays = %d, want %d", job.GraceDays, tt.want)
			}
		})
	}
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM sessions") {
		t.Errorf("クエリに 'DELETE FROM sessions' が含まれていない: %s", mock.query)
	}
	if !strings.Contains(mock.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", mock.query)
	}
	if len(mock.args) != 1 || mock.args[0] != "7 days" {
		t.Errorf("args = %v, want [7 days]", mock.args)
	}
}

func TestCleanupJob_Run_CustomGraceDays(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil, 0)
	job.GraceDays = 1

	_ = job.Run(context.Background())

	if mock.args[0] != "1 days" {
		t.Errorf("interval引数 = %v, want %q", mock.args[0], "1 days")
	}
}

func TestCleanupJob_Run_RecordsAndLogsCount(t *testing.T) {
	tests := []struct {
		name string
		rows int64
	}{
		{"some deleted", 42},
		{"nothing deleted", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			recorder := &mockRecorder{}
			job := NewCleanupJob(&mockExecutor{result: &fakeResult{rowsAffected: tt.rows}}, newTestLogger(&buf), recorder, 7)

			if err := job.Run(context.Background()); err != nil {
				t.Fatalf("Run() がエラーを返した: %v", err)
			}

			if len(recorder.counts) != 1 || recorder.counts[0] != int(tt.rows) {
				t.Errorf("recorded = %v, want [%d]", recorder.counts, tt.rows)
			}
			if v, ok := findLogField(t, &buf, "deleted_count"); !ok || v != float64(tt.rows) {
				t.Errorf("ログに deleted_count=%d が記録されていない。ログ出力: %s", tt.rows, buf.String())
			}
			if _, ok := findLogField(t, &buf, "duration_ms"); !ok {
				t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
			}
		})
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	job := NewCleanupJob(&mockExecutor{err: sql.ErrConnDone}, newTestLogger(&buf), recorder, 7)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
	if len(recorder.counts) != 0 {
		t.Error("失敗時は件数を記録しない")
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil, 7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
	if mock.calls() != 1 {
		t.Errorf("ExecContext 呼び出し回数 = %d, want 1", mock.calls())
	}
}
