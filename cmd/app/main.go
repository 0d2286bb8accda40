// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/application"
	"telegram-horoscope-bot/internal/config"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	aiAdapters "telegram-horoscope-bot/internal/infra/adapters/ai"
	tele "telegram-horoscope-bot/internal/infra/adapters/telegram"
	pg "telegram-horoscope-bot/internal/infra/db/postgres"
	"telegram-horoscope-bot/internal/infra/db/sqlite"
	httpapi "telegram-horoscope-bot/internal/infra/http"
	"telegram-horoscope-bot/internal/infra/i18n"
	"telegram-horoscope-bot/internal/infra/logging"
	"telegram-horoscope-bot/internal/infra/metrics"
	red "telegram-horoscope-bot/internal/infra/redis"
	"telegram-horoscope-bot/internal/infra/sched"
	"telegram-horoscope-bot/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// pollingBot is implemented by both Telegram adapters.
type pollingBot interface {
	adapter.TelegramBotAdapter
	SetFacade(*application.BotFacade)
	StartPolling(ctx context.Context) error
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, logging bot without a token)")
	broadcastNow := flag.Bool("broadcast-now", false, "run the daily broadcast once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting horoscope bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Store ----
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("store init failed")
	}
	defer store.Close()

	// ---- Redis (optional) ----
	var (
		states      repository.StateRepository
		rateLimiter *red.RateLimiter
		locker      red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis init failed")
		}
		defer redisClient.Close()
		states = red.NewStateRepo(redisClient, cfg.Redis.TTL)
		rateLimiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		logger.Info().Msg("redis enabled: shared state, rate limits and broadcast lock")
	}

	// ---- Locale ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Locale.Lang)
	if err != nil {
		logger.Fatal().Err(err).Str("lang", cfg.Locale.Lang).Msg("translator init failed")
	}

	// ---- AI ----
	ai, err := aiAdapters.New(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter init failed")
	}

	// ---- Telegram ----
	var bot pollingBot
	if cfg.Bot.Token == "" {
		bot = tele.NewNoopBotAdapter(logger)
		logger.Warn().Msg("[DEV MODE] no bot token, messages are only logged")
	} else {
		realBot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, translator, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).Msg("telegram init failed")
		}
		bot = realBot
	}

	// ---- Use cases ----
	predictionUC := usecase.NewPredictionUseCase(ai, cfg.AI.Timeout, logger)
	flowUC := usecase.NewFlowUseCase(store, predictionUC, bot, states, translator, cfg.AI.Timeout+time.Minute, logger)
	historyUC := usecase.NewHistoryUseCase(store, logger)
	broadcastUC := usecase.NewBroadcastUseCase(store, predictionUC, bot, translator, usecase.BroadcastConfig{
		Concurrency:     cfg.Schedule.Concurrency,
		DeliveryTimeout: cfg.Schedule.DeliveryTimeout,
	}, logger)

	if *broadcastNow {
		report := broadcastUC.Run(ctx)
		if report.Err != nil {
			logger.Fatal().Err(report.Err).Msg("broadcast failed")
		}
		fmt.Printf("run %s: %d attempted, %d delivered\n", report.RunID, report.Attempted(), report.Count(model.DeliveryDelivered))
		return
	}

	// ---- Facade ----
	bot.SetFacade(application.NewBotFacade(flowUC, historyUC, translator, cfg.Schedule.Describe()))

	go func() {
		if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
			stop()
		}
	}()

	// ---- Daily broadcast ----
	if cfg.Schedule.Enabled {
		daily, err := sched.NewDailyWorker(broadcastUC, cfg.Schedule, locker, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("daily worker init failed")
		}
		go func() { _ = daily.Run(ctx) }()
	} else {
		logger.Warn().Msg("daily broadcast disabled by config")
	}

	// ---- Admin HTTP ----
	var admin *httpapi.Server
	if cfg.Admin.Port > 0 {
		admin = httpapi.NewServer(cfg.Admin.Port, store, logger)
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error().Err(err).Msg("admin http server error")
			}
		}()
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin http shutdown")
		}
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (repository.PreferenceStore, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		logger.Info().Int("max_conns", cfg.MaxConns).Msg("postgres store ready")
		return pg.NewStore(pool), nil
	default:
		store, err := sqlite.New(ctx, sqlite.Config{DSN: cfg.URL, MaxOpenConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dsn", cfg.URL).Msg("sqlite store ready")
		return store, nil
	}
}
