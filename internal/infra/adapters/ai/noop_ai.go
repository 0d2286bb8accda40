package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter returns a canned horoscope; used in dev mode without credentials.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "NoopAI").Logger()
	return &NoopAIAdapter{log: &l, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }
func (a *NoopAIAdapter) Model() string    { return "noop" }

func (a *NoopAIAdapter) Chat(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	a.log.Debug().Int("messages", len(messages)).Str("prompt", last).Msg("noop chat")
	reply := fmt.Sprintf("Звёзды сегодня благосклонны. (%s)", last)
	return reply, adapter.Usage{PromptTokens: roughTokens(last), CompletionTokens: roughTokens(reply),
		TotalTokens: roughTokens(last) + roughTokens(reply)}, nil
}
