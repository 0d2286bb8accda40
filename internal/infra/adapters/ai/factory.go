package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/config"
	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
)

// New builds the configured provider wrapped with the concurrency limit.
func New(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	var (
		inner adapter.AIServiceAdapter
		err   error
	)
	switch cfg.Provider {
	case "openai":
		inner, err = NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxOutputTokens)
	case "gemini":
		inner, err = NewGeminiAdapter(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxOutputTokens)
	case "noop":
		inner = NewNoopAIAdapter(logger)
	default:
		return nil, fmt.Errorf("%w: unsupported ai provider %q", domain.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s adapter: %w: %w", cfg.Provider, domain.ErrConfiguration, err)
	}

	logger.Info().
		Str("provider", inner.Provider()).
		Str("model", inner.Model()).
		Int("concurrent_limit", cfg.ConcurrentLimit).
		Msg("ai adapter ready")
	return NewLimitedAI(inner, cfg.ConcurrentLimit), nil
}
