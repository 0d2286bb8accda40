package telegram

import (
	"context"
	"strings"

	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
	"telegram-horoscope-bot/internal/usecase"
)

// legacyOpenMenu is the payload of start prompts sent by earlier bot versions.
const legacyOpenMenu = "get_horoscope"

type callback struct {
	userID    int64
	chatID    int64
	messageID int
	data      string
}

type cbHandler func(ctx context.Context, cb callback) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		usecase.CallbackOpenMenu: r.openMenuCBRoute,
		legacyOpenMenu:           r.openMenuCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{
			Prefix: usecase.CallbackSignPrefix,
			Fn:     r.signPrefixCBRoute,
		},
	}
}

func (r *RealTelegramBotAdapter) routeCallback(ctx context.Context, cb callback) error {
	if fn, ok := r.cbRoutes()[cb.data]; ok {
		metrics.IncTelegramCommand("cb:" + cb.data)
		return fn(ctx, cb)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(cb.data, pr.Prefix) {
			metrics.IncTelegramCommand("cb:" + pr.Prefix)
			return pr.Fn(ctx, cb)
		}
	}
	// older sign menus carried the bare sign name
	if _, ok := model.ParseSign(cb.data); ok {
		metrics.IncTelegramCommand("cb:" + usecase.CallbackSignPrefix)
		return r.facade.HandleSignSelected(ctx, cb.userID, cb.chatID, cb.messageID, cb.data)
	}
	logging.With(ctx, r.log).Warn().Str("data", cb.data).Msg("unknown callback data")
	return nil
}

func (r *RealTelegramBotAdapter) openMenuCBRoute(ctx context.Context, cb callback) error {
	return r.facade.HandleOpenMenu(ctx, cb.userID, cb.chatID, cb.messageID)
}

func (r *RealTelegramBotAdapter) signPrefixCBRoute(ctx context.Context, cb callback) error {
	token := strings.TrimPrefix(cb.data, usecase.CallbackSignPrefix)
	return r.facade.HandleSignSelected(ctx, cb.userID, cb.chatID, cb.messageID, token)
}
