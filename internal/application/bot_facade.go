package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/infra/i18n"
	"telegram-horoscope-bot/internal/usecase"
)

const (
	historyLimit   = 5
	historyPreview = 120
)

// BotFacade composes usecases into high-level bot commands.
// The read-only commands return ready-to-send text so the Telegram adapter just forwards it.
type BotFacade struct {
	Flow    usecase.FlowUseCase
	History usecase.HistoryUseCase

	translator *i18n.Translator
	// delivery time shown in /help and /sign; empty when there is no daily broadcast
	dailyAt string
}

func NewBotFacade(flow usecase.FlowUseCase, history usecase.HistoryUseCase, translator *i18n.Translator, dailyAt string) *BotFacade {
	return &BotFacade{
		Flow:       flow,
		History:    history,
		translator: translator,
		dailyAt:    dailyAt,
	}
}

func (b *BotFacade) HandleStart(ctx context.Context, userID, chatID int64, firstName string) error {
	if b.Flow == nil {
		return fmt.Errorf("flow usecase not available")
	}
	return b.Flow.HandleStart(ctx, userID, chatID, firstName)
}

func (b *BotFacade) HandleOpenMenu(ctx context.Context, userID, chatID int64, messageID int) error {
	if b.Flow == nil {
		return fmt.Errorf("flow usecase not available")
	}
	return b.Flow.HandleOpenMenu(ctx, userID, chatID, messageID)
}

func (b *BotFacade) HandleSignSelected(ctx context.Context, userID, chatID int64, messageID int, token string) error {
	if b.Flow == nil {
		return fmt.Errorf("flow usecase not available")
	}
	return b.Flow.HandleSignSelected(ctx, userID, chatID, messageID, token)
}

// HandleMySign describes the stored sign, or hints at /start when there is none.
func (b *BotFacade) HandleMySign(ctx context.Context, userID int64) (string, error) {
	if b.History == nil {
		return "", fmt.Errorf("history usecase not available")
	}
	pref, err := b.History.CurrentSign(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.translator.T("no_sign"), nil
	case err != nil:
		return "", fmt.Errorf("current sign: %w", err)
	case !pref.HasSign():
		return b.translator.T("no_sign"), nil
	}
	if b.dailyAt == "" {
		return b.translator.T("my_sign_manual", pref.ZodiacSign), nil
	}
	return b.translator.T("my_sign", pref.ZodiacSign, b.dailyAt), nil
}

// HandleHistory lists the latest predictions, newest first.
func (b *BotFacade) HandleHistory(ctx context.Context, userID int64) (string, error) {
	if b.History == nil {
		return "", fmt.Errorf("history usecase not available")
	}
	recs, err := b.History.Recent(ctx, userID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("recent predictions: %w", err)
	}
	if len(recs) == 0 {
		return b.translator.T("history_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.translator.T("history_header"))
	for _, r := range recs {
		sb.WriteString("\n\n")
		sb.WriteString(b.translator.T("history_item",
			r.CreatedAt.Format("02.01.2006"), r.ZodiacSign, r.Preview(historyPreview)))
	}
	return sb.String(), nil
}

func (b *BotFacade) HandleHelp() string {
	if b.dailyAt == "" {
		return b.translator.T("help_manual")
	}
	return b.translator.T("help", b.dailyAt)
}
