package ai

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/mindjournal/internal/model"
)

type mockSentiment struct {
	analyzeFn  func(ctx context.Context, text string) (*SentimentResult, error)
	entitiesFn func(ctx context.Context, text string) ([]Entity, error)
}

func (m *mockSentiment) AnalyzeSentiment(ctx context.Context, text string) (*SentimentResult, error) {
	return m.analyzeFn(ctx, text)
}
func (m *mockSentiment) AnalyzeEntitySentiment(ctx context.Context, text string) ([]Entity, error) {
	return m.entitiesFn(ctx, text)
}

type mockGenerator struct {
	generateFn func(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	return m.generateFn(ctx, prompt, cfg)
}

func staticGenerator(out string, err error) *mockGenerator {
	return &mockGenerator{generateFn: func(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
		return out, err
	}}
}

func positiveSentiment() *mockSentiment {
	return &mockSentiment{
		analyzeFn: func(ctx context.Context, text string) (*SentimentResult, error) {
			return &SentimentResult{DocumentSentiment: Sentiment{Score: 0.6, Magnitude: 1.1}, Language: "en"}, nil
		},
		entitiesFn: func(ctx context.Context, text string) ([]Entity, error) {
			return []Entity{{Name: "park", Type: "LOCATION"}}, nil
		},
	}
}

const validBreakdown = `{"overall":"positive","confidence":0.9,"emotions":{"joy":0.8,"sadness":0.1,"anger":0,"fear":0,"surprise":0.2,"disgust":0},"keywords":["walk","sun"]}`

func apiCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestParseBreakdown(t *testing.T) {
	b, err := ParseBreakdown(validBreakdown)
	if err != nil {
		t.Fatalf("ParseBreakdown() error = %v", err)
	}
	if b.Overall != "positive" {
		t.Errorf("Overall = %q, want positive", b.Overall)
	}
	if b.Emotions.Joy != 0.8 {
		t.Errorf("Joy = %v, want 0.8", b.Emotions.Joy)
	}
	if !reflect.DeepEqual(b.Keywords, []string{"walk", "sun"}) {
		t.Errorf("Keywords = %v", b.Keywords)
	}

	fenced, err := ParseBreakdown("```json\n" + validBreakdown + "\n```")
	if err != nil {
		t.Fatalf("ParseBreakdown(fenced) error = %v", err)
	}
	if !reflect.DeepEqual(fenced, b) {
		t.Errorf("fenced = %+v, want %+v", fenced, b)
	}
}

func TestParseBreakdown_Rejects(t *testing.T) {
	tests := map[string]string{
		"JSONでない":       "I think the entry is positive.",
		"未知のラベル":        `{"overall":"ecstatic","confidence":0.5,"emotions":{}}`,
		"confidenceが範囲外": `{"overall":"neutral","confidence":1.5,"emotions":{}}`,
		"感情値が負":         `{"overall":"neutral","confidence":0.5,"emotions":{"fear":-0.1}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBreakdown(raw); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAnalyzer_Parsed(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnalyzer(positiveSentiment(), staticGenerator(validBreakdown, nil), newTestLogger(&buf), nil)

	report, err := a.Analyze(context.Background(), "A sunny walk in the park.")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.Outcome != OutcomeParsed {
		t.Errorf("Outcome = %q, want %q", report.Outcome, OutcomeParsed)
	}
	if report.Label != "positive" {
		t.Errorf("Label = %q, want positive", report.Label)
	}
	if report.Language != "en" {
		t.Errorf("Language = %q, want en", report.Language)
	}
	if len(report.Entities) != 1 {
		t.Errorf("len(Entities) = %d, want 1", len(report.Entities))
	}
	if report.Sentences == nil {
		t.Error("Sentences should be an empty list, not nil")
	}
}

// TestAnalyzer_UnparseableFallsBack はパースできない出力が既定値になることを検証する。
func TestAnalyzer_UnparseableFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *mockGenerator
	}{
		{"パース不能", staticGenerator("not json at all", nil)},
		{"生成失敗", staticGenerator("", &UpstreamError{Service: ServiceGenerative, StatusCode: 500, Err: errors.New("boom")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			a := NewAnalyzer(positiveSentiment(), tt.gen, newTestLogger(&buf), nil)

			report, err := a.Analyze(context.Background(), "text")
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if report.Outcome != OutcomeFallback {
				t.Errorf("Outcome = %q, want %q", report.Outcome, OutcomeFallback)
			}
			if !reflect.DeepEqual(report.Breakdown, FallbackBreakdown()) {
				t.Errorf("Breakdown = %+v, want fallback", report.Breakdown)
			}
			if !strings.Contains(buf.String(), "感情内訳") {
				t.Errorf("fallback should be logged, got %s", buf.String())
			}
		})
	}
}

func TestAnalyzer_EntityFailureIsEmpty(t *testing.T) {
	s := positiveSentiment()
	s.entitiesFn = func(ctx context.Context, text string) ([]Entity, error) {
		return nil, &UpstreamError{Service: ServiceLanguage, StatusCode: 503, Err: errors.New("unavailable")}
	}
	var buf bytes.Buffer
	a := NewAnalyzer(s, staticGenerator(validBreakdown, nil), newTestLogger(&buf), nil)

	report, err := a.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Entities == nil || len(report.Entities) != 0 {
		t.Errorf("Entities = %#v, want empty non-nil list", report.Entities)
	}
}

func TestAnalyzer_DocumentFailureIsUpstreamError(t *testing.T) {
	s := positiveSentiment()
	s.analyzeFn = func(ctx context.Context, text string) (*SentimentResult, error) {
		return nil, &UpstreamError{Service: ServiceLanguage, StatusCode: 500, Err: errors.New("boom")}
	}
	var buf bytes.Buffer
	a := NewAnalyzer(s, staticGenerator(validBreakdown, nil), newTestLogger(&buf), nil)

	_, err := a.Analyze(context.Background(), "text")
	if code := apiCode(err); code != model.ErrCodeUpstreamFailed {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUpstreamFailed)
	}
}

func TestAnalyzer_Validation(t *testing.T) {
	var buf bytes.Buffer

	_, err := NewAnalyzer(nil, nil, newTestLogger(&buf), nil).Analyze(context.Background(), "text")
	if code := apiCode(err); code != model.ErrCodeAINotConfigured {
		t.Errorf("without backends: code = %q, want %q", code, model.ErrCodeAINotConfigured)
	}

	_, err = NewAnalyzer(positiveSentiment(), nil, newTestLogger(&buf), nil).Analyze(context.Background(), "   ")
	if code := apiCode(err); code != model.ErrCodeInvalidInput {
		t.Errorf("blank text: code = %q, want %q", code, model.ErrCodeInvalidInput)
	}
}
