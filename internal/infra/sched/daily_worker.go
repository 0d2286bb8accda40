package sched

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/config"
	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/infra/logging"
	red "telegram-horoscope-bot/internal/infra/redis"
	"telegram-horoscope-bot/internal/usecase"
)

// lockTTL outlives any sane run so a replica waking late the same day skips it.
const lockTTL = 20 * time.Hour

// DailyWorker fires the broadcast once per calendar day at a fixed wall-clock time.
type DailyWorker struct {
	runner usecase.BroadcastUseCase
	locker red.Locker // nil on single-replica deployments

	hour, minute int
	loc          *time.Location
	log          *zerolog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewDailyWorker(runner usecase.BroadcastUseCase, cfg config.ScheduleConfig, locker red.Locker, logger *zerolog.Logger) (*DailyWorker, error) {
	hour, minute, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "DailyWorker").Logger()
	return &DailyWorker{
		runner: runner,
		locker: locker,
		hour:   hour,
		minute: minute,
		loc:    loc,
		log:    &l,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// NextRun returns the first hour:minute in loc strictly after now.
// time.Date normalizes the wall clock across DST changes.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func (w *DailyWorker) Run(ctx context.Context) error {
	w.log.Info().Int("hour", w.hour).Int("minute", w.minute).Str("tz", w.loc.String()).Msg("Starting daily broadcast worker")
	var last time.Time
	for {
		// never schedule at or before the slot that already fired, even if the clock stepped back
		from := w.now()
		if !from.After(last) {
			from = last
		}
		next := NextRun(from, w.hour, w.minute, w.loc)
		w.log.Info().Time("next_run", next).Msg("daily broadcast scheduled")

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping daily broadcast worker")
			return ctx.Err()
		case <-w.after(next.Sub(w.now())):
			w.RunOnce(ctx, next)
			last = next
		}
	}
}

// RunOnce runs the broadcast for day under the replica lock. A nil report
// means another replica owns the day.
func (w *DailyWorker) RunOnce(ctx context.Context, day time.Time) *model.BroadcastReport {
	ctx = logging.WithTraceID(ctx, ulid.Make().String())
	log := logging.With(ctx, w.log)

	key := red.BroadcastLockKey(day.In(w.loc))
	var token string
	if w.locker != nil {
		t, err := w.locker.TryLock(ctx, key, lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			log.Info().Str("lock", key).Msg("daily broadcast already claimed by another replica")
			return nil
		case err != nil:
			// sending twice beats not sending at all
			log.Warn().Err(err).Str("lock", key).Msg("broadcast lock unavailable, running unlocked")
		default:
			token = t
		}
	}

	report := w.runner.Run(ctx)
	if report != nil && report.Err != nil && token != "" {
		// the run never started, let another replica retry
		if err := w.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("failed to release broadcast lock")
		}
	}
	return report
}
