package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"balancebot/internal/bot"
	"balancebot/internal/config"
	"balancebot/internal/events"
	"balancebot/internal/ledger/backend"
	applog "balancebot/internal/log"
	"balancebot/internal/scheduler"
	"balancebot/internal/telegram"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting balancebot")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	store, err := backend.New(cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger backend",
			applog.FieldBackend, cfg.LedgerBackend,
			applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Ledger cleanup failed", applog.FieldError, err)
			}
		}
	}()

	// Optional AMQP publisher; the bot runs fine without it.
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err)
			eventsClient = nil
		} else {
			defer eventsClient.Close()
			logger.Info("AMQP client initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	tg := telegram.NewClient(cfg.TelegramToken, cfg.PollTimeout,
		logger.WithComponent(applog.ComponentTelegram))

	limiter := bot.NewLimiter(cfg.CommandsPerMinute)
	defer limiter.Stop()

	gate := bot.NewGate(tg, cfg.GroupID, logger.WithComponent(applog.ComponentBot))

	dispatcher := bot.New(bot.Options{
		Store:    store.Store,
		Gate:     gate,
		Sender:   tg,
		Source:   tg,
		Limiter:  limiter,
		Events:   eventsClient,
		Currency: cfg.Currency,
		Logger:   logger.WithComponent(applog.ComponentBot),
	})

	sched := scheduler.New(scheduler.Config{
		Day:      cfg.PaydayDay,
		Hour:     cfg.PaydayHour,
		Credit:   cfg.Credit(),
		Currency: cfg.Currency,
		ChatID:   cfg.GroupID,
		Interval: cfg.TickInterval,
	}, store.Store, store.Schedule, tg, eventsClient,
		logger.WithComponent(applog.ComponentScheduler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })

	logger.Info("Balancebot running",
		applog.FieldBackend, cfg.LedgerBackend,
		"group_id", cfg.GroupID,
		"payday_day", cfg.PaydayDay)

	if err := g.Wait(); err != nil {
		logger.Error("Balancebot stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Balancebot stopped gracefully")
}
