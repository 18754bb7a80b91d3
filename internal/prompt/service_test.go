package prompt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mindjournal/internal/ai"
	"github.com/hitoshi/mindjournal/internal/model"
)

type mockGenerator struct {
	out    string
	err    error
	prompt string
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string, cfg ai.GenerationConfig) (string, error) {
	m.prompt = prompt
	return m.out, m.err
}

var fixedNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestService(gen ai.TextGenerator, buf *bytes.Buffer) *Service {
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	svc := NewService(gen, logger, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func intPtr(v int) *int { return &v }

func TestStaticPrompts(t *testing.T) {
	if len(Static) != 20 {
		t.Errorf("len(Static) = %d, want 20", len(Static))
	}
	seen := map[uint64]bool{}
	for _, p := range Static {
		fp := fingerprint(p)
		if seen[fp] {
			t.Errorf("duplicate prompt: %s", p)
		}
		seen[fp] = true
	}
}

func TestRandom(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(nil, &buf)
	svc.intn = func(n int) int { return 2 }

	p := svc.Random()
	if p.Prompt != Static[2] {
		t.Errorf("Prompt = %q, want %q", p.Prompt, Static[2])
	}
	if p.Source != SourceStatic {
		t.Errorf("Source = %q, want %q", p.Source, SourceStatic)
	}
	if !p.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", p.GeneratedAt, fixedNow)
	}
}

func TestGenerate_AI(t *testing.T) {
	gen := &mockGenerator{out: `"What small act of kindness lifted you today?"`}
	var buf bytes.Buffer
	svc := newTestService(gen, &buf)

	p, err := svc.Generate(context.Background(), Request{
		Mood:            intPtr(3),
		Context:         "long week",
		PreviousPrompts: []string{"Old prompt"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if p.Source != SourceAI {
		t.Errorf("Source = %q, want %q", p.Source, SourceAI)
	}
	if p.Prompt != "What small act of kindness lifted you today?" {
		t.Errorf("Prompt = %q, quotes should be stripped", p.Prompt)
	}
	for _, want := range []string{
		"User's current mood level: 3/10",
		"Context: long week",
		"Avoid repeating these previous prompts: Old prompt",
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("generation prompt should contain %q\n%s", want, gen.prompt)
		}
	}
}

// TestGenerate_FallsBack は生成AIが使えない場合に静的な一覧へフォールバックすることを検証する。
func TestGenerate_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		gen     ai.TextGenerator
		wantLog bool
	}{
		{"未設定", nil, false},
		{"上流エラー", &mockGenerator{err: &ai.UpstreamError{Service: ai.ServiceGenerative, StatusCode: 500, Err: errors.New("boom")}}, true},
		{"空応答", &mockGenerator{out: ` "" `}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			svc := newTestService(tt.gen, &buf)

			p, err := svc.Generate(context.Background(), Request{})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if p.Source != SourceFallback {
				t.Errorf("Source = %q, want %q", p.Source, SourceFallback)
			}
			if !slices.Contains(Static, p.Prompt) {
				t.Errorf("Prompt = %q, want one of the static prompts", p.Prompt)
			}
			if logged := bytes.Contains(buf.Bytes(), []byte(`"level":"WARN"`)); logged != tt.wantLog {
				t.Errorf("warn logged = %v, want %v", logged, tt.wantLog)
			}
		})
	}
}

// TestGenerate_FallbackAvoidsPrevious は直前のプロンプトを避けて選ぶことを検証する。
func TestGenerate_FallbackAvoidsPrevious(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(nil, &buf)
	svc.intn = func(n int) int { return 0 }

	previous := []string{"  " + Static[0] + " ", Static[1]}
	p, err := svc.Generate(context.Background(), Request{PreviousPrompts: previous})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.Prompt != Static[2] {
		t.Errorf("Prompt = %q, want %q", p.Prompt, Static[2])
	}

	// 全て使用済みの場合は一覧全体から選ぶ
	p, err = svc.Generate(context.Background(), Request{PreviousPrompts: Static})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.Prompt != Static[0] {
		t.Errorf("Prompt = %q, want %q", p.Prompt, Static[0])
	}
}

func TestGenerate_InvalidMood(t *testing.T) {
	var buf bytes.Buffer
	_, err := newTestService(nil, &buf).Generate(context.Background(), Request{Mood: intPtr(0)})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidMoodScore {
		t.Errorf("error = %v, want %s", err, model.ErrCodeInvalidMoodScore)
	}
}

func TestCleanPrompt(t *testing.T) {
	tests := map[string]string{
		`"Quoted"`:       "Quoted",
		`'Single'`:       "Single",
		"  plain  ":      "plain",
		`"What's next?"`: "What's next?",
		`""`:             "",
	}
	for in, want := range tests {
		if got := cleanPrompt(in); got != want {
			t.Errorf("cleanPrompt(%q) = %q, want %q", in, got, want)
		}
	}
}
