package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/application"
	"telegram-horoscope-bot/internal/config"
	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/infra/i18n"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
	red "telegram-horoscope-bot/internal/infra/redis"
	"telegram-horoscope-bot/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the part of *tgbotapi.BotAPI the adapter talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to BotFacade.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	translator  *i18n.Translator
	root        *zerolog.Logger
	log         *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter *red.RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	client := &http.Client{Timeout: 75 * time.Second} // above the 60s long-poll timeout
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w: %w", domain.ErrConfiguration, err)
	}
	r := newAdapter(bot, cfg, rateLimiter, translator, logger)
	r.log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return r, nil
}

func newAdapter(bot botAPI, cfg *config.BotConfig, rateLimiter *red.RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) *RealTelegramBotAdapter {
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		translator:  translator,
		root:        logger,
		log:         &l,
	}
}

// SetFacade must be called before StartPolling. The facade's usecases send
// through this adapter, so it cannot be a constructor argument.
func (r *RealTelegramBotAdapter) SetFacade(f *application.BotFacade) {
	r.facade = f
}

// StartPolling fetches updates and hands each one to a worker pool of
// cfg.Workers goroutines. It blocks until ctx is canceled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade is nil")
	}
	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set menu commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	pool := worker.NewPool(r.cfg.Workers, r.root)
	pool.Start(ctx)
	defer pool.Stop()
	r.log.Info().Int("workers", pool.Size()).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := pool.Submit(ctx, func(ctx context.Context) error {
				return r.handleUpdate(ctx, up)
			}); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("failed to queue update")
			}
		}
	}
}

// SetMenuCommands publishes the command list shown in the Telegram client.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: r.translator.T("cmd_start")},
		tgbotapi.BotCommand{Command: "sign", Description: r.translator.T("cmd_sign")},
		tgbotapi.BotCommand{Command: "history", Description: r.translator.T("cmd_history")},
		tgbotapi.BotCommand{Command: "help", Description: r.translator.T("cmd_help")},
	)
	return r.request(ctx, "set_commands", cmds)
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, "upd-"+strconv.Itoa(update.UpdateID))

	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)
	if !msg.IsCommand() {
		logging.With(ctx, r.log).Debug().Msg("ignoring non-command message")
		return nil
	}

	command := msg.Command()
	metrics.IncTelegramCommand("/" + command)
	if !r.allow(ctx, msg.From.ID, "command", r.cfg.CommandLimit) {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("rate_limited"))
	}

	handler, ok := r.commandRoutes()[command]
	if !ok {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("unknown_command"))
	}
	return handler(ctx, msg)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	// stop the client-side spinner
	defer func() { _ = r.request(ctx, "answer_callback", tgbotapi.NewCallback(query.ID, "")) }()

	ctx = logging.WithTgID(ctx, query.From.ID)
	cb := callback{userID: query.From.ID, chatID: query.From.ID, data: strings.TrimSpace(query.Data)}
	if query.Message != nil {
		cb.messageID = query.Message.MessageID
		if query.Message.Chat != nil {
			cb.chatID = query.Message.Chat.ID
		}
	}

	if !r.allow(ctx, cb.userID, "callback", r.cfg.CallbackLimit) {
		return r.SendMessage(ctx, cb.chatID, r.translator.T("rate_limited"))
	}
	return r.routeCallback(ctx, cb)
}

// allow fails open when redis is unavailable.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, kind string, limit int) bool {
	if r.rateLimiter == nil || limit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, kind), limit, time.Minute)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered(kind)
		logging.With(ctx, r.log).Info().Str("kind", kind).Msg("rate limit exceeded")
	}
	return ok
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	return r.send(ctx, "send_message", tgbotapi.NewMessage(chatID, text))
}

// SendButtons sends a message with an inline keyboard.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineKeyboard(rows)
	return r.send(ctx, "send_buttons", msg)
}

// EditMessage rewrites an earlier bot message. Nil rows remove the keyboard.
func (r *RealTelegramBotAdapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	var edit tgbotapi.Chattable
	if len(rows) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, inlineKeyboard(rows))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	err := r.request(ctx, "edit_message", edit)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, op string, c tgbotapi.Chattable) error {
	return r.call(ctx, op, func() error {
		_, err := r.bot.Send(c)
		return err
	})
}

func (r *RealTelegramBotAdapter) request(ctx context.Context, op string, c tgbotapi.Chattable) error {
	return r.call(ctx, op, func() error {
		_, err := r.bot.Request(c)
		return err
	})
}

// call bounds a blocking tgbotapi call by ctx; the HTTP client timeout
// reclaims the goroutine of an abandoned call.
func (r *RealTelegramBotAdapter) call(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		metrics.IncTelegramSendFailure(op)
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		metrics.IncTelegramSendFailure(op)
		logging.With(ctx, r.log).Debug().Err(err).Str("op", op).Msg("telegram call failed")
	}
	return err
}

func inlineKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			data := btn.Data
			if data == "" {
				data = label
			}
			kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, data))
		}
		kbRows = append(kbRows, kr)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}
