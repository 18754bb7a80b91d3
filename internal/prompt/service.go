// Package prompt はジャーナルの書き出しプロンプトを提供する。
// 静的な一覧からの選択と、生成AIによる気分に合わせたプロンプト生成を行う。
// 生成に失敗した場合は静的な一覧にフォールバックする。
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hitoshi/mindjournal/internal/ai"
	"github.com/hitoshi/mindjournal/internal/journal"
	"github.com/hitoshi/mindjournal/internal/metrics"
)

// プロンプトの出所
const (
	SourceStatic   = "static"
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Static は静的なプロンプト一覧。
var Static = []string{
	"What are three small moments from today that brought you joy? How can you create more of these moments in your daily life?",
	"Describe a challenge you faced recently and what it taught you about your inner strength.",
	"What are you most grateful for right now, and how does this gratitude shape your perspective?",
	"Reflect on a conversation that made you feel truly understood. What made it so meaningful?",
	"What does peace mean to you today, and how can you cultivate more of it in your life?",
	"Write about a moment when you felt completely present. What brought you into that state?",
	"What patterns do you notice in your thoughts lately, and how do they serve or limit you?",
	"How did you show kindness to yourself or others today? How did it feel?",
	"What aspect of your life feels most balanced right now, and what can you learn from it?",
	"If you could give your past self one piece of advice, what would it be and why?",
	"What does success mean to you right now, and how has this definition evolved?",
	"Describe a moment when you felt truly connected to nature or your surroundings.",
	"What fear have you been avoiding, and what would happen if you faced it with compassion?",
	"How do you show love to yourself, and what new ways could you explore?",
	"What lesson did you learn this week that you want to remember?",
	"If your emotions could speak, what would they tell you about your current state?",
	"What tradition or ritual brings you comfort, and why is it meaningful?",
	"How has your relationship with yourself changed over the past year?",
	"What would you do if you knew you couldn't fail?",
	"Describe a person who has positively influenced your life and how they've shaped you.",
}

// Prompt は返却するプロンプト。
type Prompt struct {
	Prompt      string    `json:"prompt"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Request はプロンプト生成の入力。
type Request struct {
	Mood            *int
	Context         string
	PreviousPrompts []string
}

// Service はプロンプトのサービス層。
type Service struct {
	generator ai.TextGenerator
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	intn      func(n int) int
	now       func() time.Time
}

// NewService はServiceを生成する。generatorがnilの場合は常に静的な一覧を使う。
func NewService(generator ai.TextGenerator, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	return &Service{
		generator: generator,
		logger:    logger,
		metrics:   m,
		intn:      rand.Intn,
		now:       time.Now,
	}
}

// Random は静的な一覧からランダムに1件返す。
func (s *Service) Random() Prompt {
	return Prompt{
		Prompt:      s.pick(nil),
		Source:      SourceStatic,
		GeneratedAt: s.now().UTC(),
	}
}

var generationConfig = ai.GenerationConfig{Temperature: 0.7, TopK: 40, TopP: 0.95, MaxOutputTokens: 100}

// Generate は気分と文脈に合わせたプロンプトを生成する。
// 生成AIが未設定・失敗・空応答の場合は静的な一覧から選び、sourceをfallbackとする。
func (s *Service) Generate(ctx context.Context, req Request) (Prompt, error) {
	if req.Mood != nil {
		if err := journal.ValidateScore("mood", *req.Mood); err != nil {
			return Prompt{}, err
		}
	}

	if s.generator != nil {
		text, err := s.generator.GenerateText(ctx, buildPrompt(req), generationConfig)
		if err == nil {
			if cleaned := cleanPrompt(text); cleaned != "" {
				return Prompt{Prompt: cleaned, Source: SourceAI, GeneratedAt: s.now().UTC()}, nil
			}
			err = fmt.Errorf("empty prompt generated")
		}
		s.logger.Warn("プロンプト生成に失敗したため静的な一覧を使用します",
			slog.String("error", err.Error()),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordAIFallback("prompt")
	}
	return Prompt{
		Prompt:      s.pick(req.PreviousPrompts),
		Source:      SourceFallback,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// pick は静的な一覧から、previousに含まれないプロンプトを優先して選ぶ。
// 候補が残らない場合は一覧全体から選ぶ。
func (s *Service) pick(previous []string) string {
	seen := make(map[uint64]bool, len(previous))
	for _, p := range previous {
		seen[fingerprint(p)] = true
	}

	candidates := make([]string, 0, len(Static))
	for _, p := range Static {
		if !seen[fingerprint(p)] {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = Static
	}
	return candidates[s.intn(len(candidates))]
}

// fingerprint は大文字小文字と空白の違いを無視したハッシュ値を返す。
func fingerprint(p string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.Join(strings.Fields(p), " ")))
}

// cleanPrompt は前後の空白と引用符を取り除く。
func cleanPrompt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

func buildPrompt(req Request) string {
	mood := "unknown"
	if req.Mood != nil {
		mood = fmt.Sprintf("%d/10", *req.Mood)
	}
	ctx := strings.TrimSpace(req.Context)
	if ctx == "" {
		ctx = "none"
	}
	previous := "none"
	if len(req.PreviousPrompts) > 0 {
		previous = strings.Join(req.PreviousPrompts, ", ")
	}

	return fmt.Sprintf(`Generate a thoughtful, positive mindfulness journaling prompt that encourages self-reflection and personal growth.

Context:
- User's current mood level: %s
- Context: %s
- Avoid repeating these previous prompts: %s

The prompt should be:
- Encouraging and supportive in tone
- Focused on positive aspects or growth opportunities
- Open-ended to allow for deep reflection
- Around 1-2 sentences long
- Tailored to the user's current mood level

Generate one new, unique prompt:`, mood, ctx, previous)
}
