package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/application"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev runs.
// It logs messages instead of sending real Telegram messages.
type NoopBotAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBotAdapter{log: &l, delay: 100 * time.Millisecond}
}

// wait simulates network latency and respects ctx.
func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Int("message_id", messageID).Str("text", text).Int("rows", len(rows)).Msg("edit message")
	return nil
}

func (b *NoopBotAdapter) SetFacade(*application.BotFacade) {}

// StartPolling has nothing to poll; it blocks until ctx is canceled.
func (b *NoopBotAdapter) StartPolling(ctx context.Context) error {
	b.log.Info().Msg("noop telegram adapter: no updates will be received")
	<-ctx.Done()
	return ctx.Err()
}
