package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
)

// AstrologerPrompt is the system instruction sent with every request.
const AstrologerPrompt = `Ты профессиональный астролог с 20-летним опытом.
Составь подробный гороскоп на сегодня для указанного знака зодиака.
Структура гороскопа:
1. Общая характеристика дня
2. Любовь и отношения
3. Финансы и карьера
4. Здоровье
5. Советы дня

Стиль: позитивный, мотивирующий, с элементами юмора.
Избегай общих фраз, сделай прогноз персонализированным.
Объем: 200-250 слов.`

// PredictionUseCase turns a zodiac sign into horoscope text.
type PredictionUseCase interface {
	// Generate never retries; every failure is wrapped with domain.ErrGeneration.
	Generate(ctx context.Context, sign model.ZodiacSign) (string, error)
}

type predictionUC struct {
	ai      adapter.AIServiceAdapter
	timeout time.Duration
	log     *zerolog.Logger
}

func NewPredictionUseCase(ai adapter.AIServiceAdapter, timeout time.Duration, logger *zerolog.Logger) PredictionUseCase {
	l := logger.With().Str("component", "PredictionUC").Logger()
	return &predictionUC{ai: ai, timeout: timeout, log: &l}
}

func userPrompt(sign model.ZodiacSign) string {
	return "Знак зодиака: " + string(sign)
}

func (uc *predictionUC) Generate(ctx context.Context, sign model.ZodiacSign) (string, error) {
	defer logging.TraceDuration(uc.log, "PredictionUC.Generate")()

	if !sign.Valid() {
		return "", domain.ErrUnknownSign
	}
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	msgs := []adapter.Message{
		adapter.SystemMessage(AstrologerPrompt),
		adapter.UserMessage(userPrompt(sign)),
	}

	start := time.Now()
	text, usage, err := uc.ai.Chat(ctx, msgs)
	latency := time.Since(start)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errors.New("empty reply")
	}
	metrics.ObserveChatUsage(uc.ai.Provider(), uc.ai.Model(), usage.PromptTokens, usage.CompletionTokens, latency, err == nil)

	if err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).
			Str("sign", string(sign)).
			Str("provider", uc.ai.Provider()).
			Dur("latency", latency).
			Msg("generation failed")
		return "", fmt.Errorf("generate %s: %w: %w", sign, domain.ErrGeneration, err)
	}

	logging.With(ctx, uc.log).Debug().
		Str("sign", string(sign)).
		Int("tokens", usage.TotalTokens).
		Dur("latency", latency).
		Msg("prediction generated")
	return text, nil
}
