package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/mindjournal/internal/model"
	"github.com/hitoshi/mindjournal/internal/stats"
)

// FeedbackInput はフィードバック生成の入力。MoodとSentimentは任意。
type FeedbackInput struct {
	Text      string
	Mood      *int
	Sentiment *Sentiment
}

// Coach はエントリに対する励ましのフィードバックを生成する。
type Coach struct {
	generator TextGenerator
	logger    *slog.Logger
}

// NewCoach はCoachを生成する。generatorがnilの場合、AI機能は未設定として扱う。
func NewCoach(generator TextGenerator, logger *slog.Logger) *Coach {
	return &Coach{generator: generator, logger: logger}
}

var feedbackConfig = GenerationConfig{Temperature: 0.8, TopK: 40, TopP: 0.95, MaxOutputTokens: 150}

// Feedback は2〜3文のフィードバックを生成する。生成結果が空の場合は上流エラーとする。
func (c *Coach) Feedback(ctx context.Context, in FeedbackInput) (string, error) {
	if c.generator == nil {
		return "", model.NewAINotConfiguredError()
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", model.NewInvalidInputError("text は必須です")
	}

	feedback, err := c.generator.GenerateText(ctx, feedbackPrompt(text, in.Mood, in.Sentiment), feedbackConfig)
	if err != nil {
		return "", toAPIError(err)
	}
	if feedback == "" {
		c.logger.Error("フィードバックが生成されませんでした",
			slog.String("service", ServiceGenerative),
		)
		return "", toAPIError(&UpstreamError{Service: ServiceGenerative, Err: errors.New("no feedback generated")})
	}
	return feedback, nil
}

func feedbackPrompt(text string, mood *int, sentiment *Sentiment) string {
	var b strings.Builder
	b.WriteString(`You are a compassionate mindfulness coach providing feedback on a journal entry. Your role is to:
- Acknowledge the person's feelings and experiences with empathy
- Highlight positive insights or growth moments in their reflection
- Offer gentle, constructive observations that encourage deeper self-awareness
- Suggest mindful practices or perspectives that might be helpful
- Keep the tone warm, supportive, and non-judgmental
- Keep the response to 2-3 sentences

`)
	fmt.Fprintf(&b, "Journal Entry: %q\n\n", text)
	if mood != nil {
		fmt.Fprintf(&b, "User's mood level: %d/10\n", *mood)
	}
	if sentiment != nil {
		fmt.Fprintf(&b, "Sentiment analysis shows: %s sentiment (score: %.2f, magnitude: %.2f)\n",
			stats.ClassifySentiment(sentiment.Score), sentiment.Score, sentiment.Magnitude)
	}
	b.WriteString("\nProvide empathetic, encouraging feedback:")
	return b.String()
}
