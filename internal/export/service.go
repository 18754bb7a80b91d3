package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mindjournal/internal/metrics"
	"github.com/hitoshi/mindjournal/internal/model"
)

// 出力形式
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// UserFinder はユーザーを取得するインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// EntryLister はユーザーの全エントリを取得するインターフェース。
type EntryLister interface {
	ListAll(ctx context.Context, userID string) ([]*model.JournalEntry, error)
}

// MoodLogLister はユーザーの全気分記録を取得するインターフェース。
type MoodLogLister interface {
	ListAll(ctx context.Context, userID string) ([]*model.MoodLog, error)
}

// File はダウンロード用に整形されたエクスポート結果。
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Service はエクスポートのサービス層。
type Service struct {
	users   UserFinder
	entries EntryLister
	moods   MoodLogLister
	loc     *time.Location
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(users UserFinder, entries EntryLister, moods MoodLogLister, loc *time.Location, m metrics.MetricsCollector) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{users: users, entries: entries, moods: moods, loc: loc, metrics: m, now: time.Now}
}

// Export はユーザーデータを指定形式で書き出す。formatが空の場合はJSON。
func (s *Service) Export(ctx context.Context, userID, format string) (*File, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, model.NewInvalidInputError("format は json または csv を指定してください")
	}

	in, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc := Assemble(*in)

	var file *File
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, doc.JournalEntries); err != nil {
			return nil, fmt.Errorf("CSVの生成に失敗しました: %w", err)
		}
		file = &File{
			Name:        FileName(in.User.DisplayName(), in.Now, s.loc, "csv"),
			ContentType: "text/csv; charset=utf-8",
			Body:        buf.Bytes(),
		}
	default:
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("JSONの生成に失敗しました: %w", err)
		}
		file = &File{
			Name:        FileName(in.User.DisplayName(), in.Now, s.loc, "json"),
			ContentType: "application/json",
			Body:        body,
		}
	}

	if s.metrics != nil {
		s.metrics.RecordExport(format)
	}
	return file, nil
}

// load はユーザー、エントリ、気分記録を並行して読み込む。
func (s *Service) load(ctx context.Context, userID string) (*Input, error) {
	in := &Input{Now: s.now(), Location: s.loc}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.users.FindByID(gctx, userID)
		if err != nil {
			return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		in.User = user
		return nil
	})
	g.Go(func() error {
		entries, err := s.entries.ListAll(gctx, userID)
		if err != nil {
			return fmt.Errorf("エントリの取得に失敗しました: %w", err)
		}
		in.Entries = entries
		return nil
	})
	g.Go(func() error {
		logs, err := s.moods.ListAll(gctx, userID)
		if err != nil {
			return fmt.Errorf("気分記録の取得に失敗しました: %w", err)
		}
		in.MoodLogs = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if in.User == nil {
		return nil, model.NewUserNotFoundError()
	}
	return in, nil
}
