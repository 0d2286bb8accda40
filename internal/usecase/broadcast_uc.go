package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/i18n"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
)

// BroadcastUseCase sends the daily horoscope to every subscriber.
type BroadcastUseCase interface {
	// Run attempts every subscriber once. A failure for one user never stops the others.
	Run(ctx context.Context) *model.BroadcastReport
}

type BroadcastConfig struct {
	Concurrency     int
	DeliveryTimeout time.Duration
}

type broadcastUC struct {
	store      repository.PreferenceStore
	gen        PredictionUseCase
	bot        adapter.TelegramBotAdapter
	translator *i18n.Translator
	cfg        BroadcastConfig
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	store repository.PreferenceStore,
	gen PredictionUseCase,
	bot adapter.TelegramBotAdapter,
	translator *i18n.Translator,
	cfg BroadcastConfig,
	logger *zerolog.Logger,
) BroadcastUseCase {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	l := logger.With().Str("component", "BroadcastUC").Logger()
	return &broadcastUC{
		store:      store,
		gen:        gen,
		bot:        bot,
		translator: translator,
		cfg:        cfg,
		log:        &l,
	}
}

func (uc *broadcastUC) Run(ctx context.Context) *model.BroadcastReport {
	runID := logging.TraceID(ctx)
	if runID == "" {
		runID = ulid.Make().String()
		ctx = logging.WithTraceID(ctx, runID)
	}
	log := logging.With(ctx, uc.log)
	report := &model.BroadcastReport{RunID: runID, StartedAt: time.Now()}

	subs, err := uc.store.ListSubscribers(ctx)
	if err != nil {
		report.Err = err
		report.FinishedAt = time.Now()
		log.Error().Err(err).Msg("daily broadcast aborted: cannot list subscribers")
		return report
	}
	log.Info().Int("subscribers", len(subs)).Int("concurrency", uc.cfg.Concurrency).Msg("daily broadcast started")

	// each goroutine writes only its own index
	outcomes := make([]model.DeliveryOutcome, len(subs))
	var g errgroup.Group
	g.SetLimit(uc.cfg.Concurrency)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			outcomes[i] = uc.deliver(ctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes
	report.FinishedAt = time.Now()
	for _, o := range outcomes {
		metrics.IncBroadcastOutcome(string(o.Status))
	}
	metrics.ObserveBroadcastRun(report.Duration(), report.Attempted(), report.FinishedAt)

	log.Info().
		Int("attempted", report.Attempted()).
		Int("delivered", report.Count(model.DeliveryDelivered)).
		Int("unrecorded", report.Count(model.DeliveryUnrecorded)).
		Int("generation_failed", report.Count(model.DeliveryGenerationFailed)).
		Int("delivery_failed", report.Count(model.DeliveryFailed)).
		Dur("duration", report.Duration()).
		Msg("daily broadcast finished")
	return report
}

// deliver runs generate -> send -> append for one subscriber. A panic in any
// step becomes the failed outcome of that step.
func (uc *broadcastUC) deliver(ctx context.Context, sub model.Subscriber) (out model.DeliveryOutcome) {
	ctx = logging.WithTgID(ctx, sub.UserID)
	log := logging.With(ctx, uc.log).With().Str("sign", string(sub.ZodiacSign)).Logger()
	// Status names the step in progress until it succeeds.
	out = model.DeliveryOutcome{UserID: sub.UserID, ZodiacSign: sub.ZodiacSign, Status: model.DeliveryGenerationFailed}
	defer func() {
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("daily horoscope %s: %w: panic: %v", out.Status, panicKind(out.Status), rec)
			log.Error().Interface("panic", rec).Str("status", string(out.Status)).Msg("daily delivery panicked")
		}
	}()

	text, err := uc.gen.Generate(ctx, sub.ZodiacSign)
	if err != nil {
		metrics.IncPrediction("daily", "failed")
		out.Err = err
		log.Warn().Err(err).Msg("daily horoscope generation failed")
		return out
	}
	metrics.IncPrediction("daily", "ok")

	out.Status = model.DeliveryFailed
	sendCtx := ctx
	if uc.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, uc.cfg.DeliveryTimeout)
		defer cancel()
	}
	if err := uc.bot.SendMessage(sendCtx, sub.UserID, uc.translator.T("daily_prediction", sub.ZodiacSign, text)); err != nil {
		out.Err = fmt.Errorf("deliver daily horoscope: %w: %w", domain.ErrDelivery, err)
		log.Warn().Err(err).Msg("daily horoscope delivery failed")
		return out
	}

	out.Status = model.DeliveryUnrecorded
	id, err := uc.store.AppendPrediction(ctx, sub.UserID, sub.ZodiacSign, text)
	if err != nil {
		out.Err = err
		log.Error().Err(err).Msg("daily horoscope delivered but not recorded")
		return out
	}
	out.Status = model.DeliveryDelivered
	out.RecordID = id
	return out
}

func panicKind(status model.DeliveryStatus) error {
	switch status {
	case model.DeliveryGenerationFailed:
		return domain.ErrGeneration
	case model.DeliveryFailed:
		return domain.ErrDelivery
	default:
		return domain.ErrStorage
	}
}
