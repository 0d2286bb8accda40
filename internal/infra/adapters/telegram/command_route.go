package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-horoscope-bot/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps command names (without the slash) to handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"menu":    r.handleStartCommand,
		"sign":    r.handleSignCommand,
		"history": r.handleHistoryCommand,
		"help":    r.handleHelpCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.HandleStart(ctx, message.From.ID, message.Chat.ID, message.From.FirstName)
}

func (r *RealTelegramBotAdapter) handleSignCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleMySign(ctx, message.From.ID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to load sign")
		text = r.translator.T("apology")
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHistoryCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleHistory(ctx, message.From.ID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to load history")
		text = r.translator.T("apology")
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, r.facade.HandleHelp())
}
