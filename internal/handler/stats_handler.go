package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/hitoshi/mindjournal/internal/export"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Dashboard(ctx context.Context, userID string) (*stats.Dashboard, error)
	Achievements(ctx context.Context, userID string) ([]stats.Achievement, error)
}

// ExportServiceInterface はエクスポートに必要なサービスインターフェース。
type ExportServiceInterface interface {
	Export(ctx context.Context, userID, format string) (*export.File, error)
}

// StatsHandler は統計・実績・エクスポートのHTTPハンドラー。
type StatsHandler struct {
	stats    StatsServiceInterface
	exporter ExportServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(stats StatsServiceInterface, exporter ExportServiceInterface) *StatsHandler {
	return &StatsHandler{
		stats:    stats,
		exporter: exporter,
	}
}

// Dashboard はダッシュボード用の集計を返す。
// レスポンスにはボディのハッシュをETagとして付与し、If-None-Matchが一致すれば304を返す。
// GET /api/stats
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	dashboard, err := h.stats.Dashboard(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body, err := json.Marshal(dashboard)
	if err != nil {
		handleServiceError(w, fmt.Errorf("統計のエンコードに失敗しました: %w", err))
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write stats response", slog.String("error", err.Error()))
	}
}

// Achievements は実績一覧を返す。
// GET /api/achievements
func (h *StatsHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	achievements, err := h.stats.Achievements(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": achievements})
}

// Export はユーザーの全データを添付ファイルとして返す。
// GET /api/export?format=json|csv
func (h *StatsHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	file, err := h.exporter.Export(r.Context(), userID, r.URL.Query().Get("format"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		slog.Error("failed to write export response", slog.String("error", err.Error()))
	}
}

// contentDisposition は添付ファイルのContent-Dispositionを組み立てる。
// 引用符はエスケープし、非ASCIIの名前は filename* 形式にする。
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
