package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/i18n"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
)

// Callback payloads carried by the inline keyboards.
const (
	CallbackOpenMenu   = "menu:signs"
	CallbackSignPrefix = "sign:"
)

// FlowUseCase drives the per-user conversation: start prompt, sign menu and
// on-demand horoscope delivery.
type FlowUseCase interface {
	HandleStart(ctx context.Context, userID, chatID int64, firstName string) error
	HandleOpenMenu(ctx context.Context, userID, chatID int64, messageID int) error
	// HandleSignSelected ignores tokens that are not one of the twelve signs.
	HandleSignSelected(ctx context.Context, userID, chatID int64, messageID int, token string) error
	State(ctx context.Context, userID int64) model.FlowState
}

type flowUC struct {
	store      repository.PreferenceStore
	gen        PredictionUseCase
	bot        adapter.TelegramBotAdapter
	states     repository.StateRepository
	translator *i18n.Translator
	log        *zerolog.Logger

	// per-user *sync.Mutex guarding the read-modify-write of that user's state
	locks sync.Map
	// an AwaitingGeneration state older than this is considered abandoned
	staleAfter time.Duration
}

// NewFlowUseCase uses an in-process state map when states is nil.
func NewFlowUseCase(
	store repository.PreferenceStore,
	gen PredictionUseCase,
	bot adapter.TelegramBotAdapter,
	states repository.StateRepository,
	translator *i18n.Translator,
	staleAfter time.Duration,
	logger *zerolog.Logger,
) FlowUseCase {
	if states == nil {
		states = newMemoryStateRepo()
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	l := logger.With().Str("component", "FlowUC").Logger()
	return &flowUC{
		store:      store,
		gen:        gen,
		bot:        bot,
		states:     states,
		translator: translator,
		log:        &l,
		staleAfter: staleAfter,
	}
}

// SignMenu is the twelve-button keyboard, one sign per row.
func SignMenu() [][]adapter.InlineButton {
	signs := model.AllSigns()
	rows := make([][]adapter.InlineButton, 0, len(signs))
	for _, s := range signs {
		rows = append(rows, []adapter.InlineButton{{Text: string(s), Data: CallbackSignPrefix + string(s)}})
	}
	return rows
}

func (uc *flowUC) State(ctx context.Context, userID int64) model.FlowState {
	st, err := uc.states.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Err(err).Int64("tg_id", userID).Msg("state lookup failed, assuming idle")
		}
		return model.IdleState()
	}
	return st
}

func (uc *flowUC) userLock(userID int64) *sync.Mutex {
	mu, _ := uc.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (uc *flowUC) setState(ctx context.Context, userID int64, st model.FlowState) {
	st.UpdatedAt = time.Now()
	if err := uc.states.SetState(ctx, userID, st); err != nil {
		uc.log.Warn().Err(err).Int64("tg_id", userID).Str("step", string(st.Step)).Msg("failed to store flow state")
	}
}

func (uc *flowUC) clearState(ctx context.Context, userID int64) {
	if err := uc.states.ClearState(ctx, userID); err != nil {
		uc.log.Warn().Err(err).Int64("tg_id", userID).Msg("failed to clear flow state")
	}
}

func (uc *flowUC) generating(st model.FlowState) bool {
	return !st.CanSelectSign() && time.Since(st.UpdatedAt) < uc.staleAfter
}

// moveToSignChoice leaves an in-flight generation untouched.
func (uc *flowUC) moveToSignChoice(ctx context.Context, userID int64) {
	mu := uc.userLock(userID)
	mu.Lock()
	defer mu.Unlock()
	if uc.generating(uc.State(ctx, userID)) {
		return
	}
	uc.setState(ctx, userID, model.FlowState{Step: model.FlowAwaitingSignChoice})
}

func (uc *flowUC) HandleStart(ctx context.Context, userID, chatID int64, firstName string) error {
	ctx = logging.WithTgID(ctx, userID)
	defer logging.TraceDuration(uc.log, "FlowUC.HandleStart")()

	name := strings.TrimSpace(firstName)
	rows := [][]adapter.InlineButton{{{Text: uc.translator.T("btn_get_horoscope"), Data: CallbackOpenMenu}}}
	if err := uc.bot.SendButtons(ctx, chatID, uc.translator.T("welcome", name), rows); err != nil {
		return fmt.Errorf("send start prompt: %w: %w", domain.ErrDelivery, err)
	}
	uc.moveToSignChoice(ctx, userID)
	return nil
}

func (uc *flowUC) HandleOpenMenu(ctx context.Context, userID, chatID int64, messageID int) error {
	ctx = logging.WithTgID(ctx, userID)
	defer logging.TraceDuration(uc.log, "FlowUC.HandleOpenMenu")()

	text := uc.translator.T("choose_sign")
	var err error
	if messageID != 0 {
		err = uc.bot.EditMessage(ctx, chatID, messageID, text, SignMenu())
	} else {
		err = uc.bot.SendButtons(ctx, chatID, text, SignMenu())
	}
	if err != nil {
		return fmt.Errorf("send sign menu: %w: %w", domain.ErrDelivery, err)
	}
	uc.moveToSignChoice(ctx, userID)
	return nil
}

func (uc *flowUC) HandleSignSelected(ctx context.Context, userID, chatID int64, messageID int, token string) error {
	ctx = logging.WithTgID(ctx, userID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "FlowUC.HandleSignSelected")()

	sign, ok := model.ParseSign(token)
	if !ok {
		log.Warn().Str("token", token).Msg("ignoring unknown sign token")
		return nil
	}

	mu := uc.userLock(userID)
	mu.Lock()
	if uc.generating(uc.State(ctx, userID)) {
		mu.Unlock()
		log.Info().Str("sign", string(sign)).Msg("generation already in progress, tap ignored")
		if err := uc.bot.SendMessage(ctx, chatID, uc.translator.T("busy")); err != nil {
			log.Warn().Err(err).Msg("failed to send busy notice")
		}
		return nil
	}
	uc.setState(ctx, userID, model.FlowState{Step: model.FlowAwaitingGeneration, Sign: sign})
	mu.Unlock()
	defer uc.clearState(ctx, userID)

	placeholder := uc.translator.T("generating", sign)
	var err error
	if messageID != 0 {
		err = uc.bot.EditMessage(ctx, chatID, messageID, placeholder, nil)
	} else {
		err = uc.bot.SendMessage(ctx, chatID, placeholder)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to show placeholder")
	}

	text, err := uc.predictAndRecord(ctx, userID, sign)
	if err != nil {
		metrics.IncPrediction("on_demand", "failed")
		log.Error().Err(err).Str("sign", string(sign)).Msg("on-demand horoscope failed")
		if serr := uc.bot.SendMessage(ctx, chatID, uc.translator.T("apology")); serr != nil {
			return fmt.Errorf("send apology: %w: %w", domain.ErrDelivery, serr)
		}
		return nil
	}
	metrics.IncPrediction("on_demand", "ok")

	if err := uc.bot.SendMessage(ctx, chatID, uc.translator.T("prediction_reply", sign, text)); err != nil {
		return fmt.Errorf("send prediction: %w: %w", domain.ErrDelivery, err)
	}
	log.Info().Str("sign", string(sign)).Msg("horoscope delivered")
	return nil
}

// predictAndRecord generates first so a failed generation leaves storage untouched.
func (uc *flowUC) predictAndRecord(ctx context.Context, userID int64, sign model.ZodiacSign) (string, error) {
	text, err := uc.gen.Generate(ctx, sign)
	if err != nil {
		return "", err
	}
	if err := uc.store.UpsertPreference(ctx, userID, sign); err != nil {
		return "", err
	}
	if _, err := uc.store.AppendPrediction(ctx, userID, sign, text); err != nil {
		return "", err
	}
	return text, nil
}
