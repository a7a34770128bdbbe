package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autokool/internal/bot"
	"autokool/internal/checkout"
	"autokool/internal/config"
	"autokool/internal/gateway"
	"autokool/internal/notify"
	"autokool/internal/paylink"
	"autokool/internal/server"
	"autokool/internal/storage"
	redisstore "autokool/internal/storage/redis"
	"autokool/pkg/logger"
	"autokool/pkg/redis"
)

func main() {
	app := &cli.App{
		Name:  "autokool",
		Usage: "Driving school checkout service and Telegram bot",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Load environment from `FILE` (default .env)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server, the bot and the session sweeper",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Manage database migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: migrate(storage.RunMigrations)},
					{Name: "down", Usage: "Roll back the last migration", Action: migrate(storage.RollbackMigration)},
					{Name: "status", Usage: "Print migration status", Action: migrate(storage.MigrationStatus)},
				},
			},
			{
				Name:  "export",
				Usage: "Write every order to an xlsx file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Output directory (default ADMIN_REPORT_DIR)",
					},
				},
				Action: export,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: log}, nil
}

func (e *env) connect(ctx context.Context) (*redis.Client, *storage.PostgresStorage, error) {
	redisClient := redis.New(e.cfg.Redis.Addr, e.cfg.Redis.Password, e.cfg.Redis.DB, e.cfg.Redis.TTL)
	if err := redisClient.Ping(ctx); err != nil {
		e.logger.Warn("Redis is not reachable, caching and bot state will fail", zap.Error(err))
	}

	pgStorage, err := storage.NewPostgresStorage(ctx, e.cfg.Database, redisClient, e.logger)
	if err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to init PostgreSQL storage: %w", err)
	}
	return redisClient, pgStorage, nil
}

func serve(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	cfg, log := e.cfg, e.logger

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, pgStorage, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	defer pgStorage.Close()

	if err := storage.RunMigrations(ctx, pgStorage.DB(), log); err != nil {
		return err
	}

	gw, err := newGateway(cfg, log)
	if err != nil {
		return err
	}
	registry := checkout.NewRegistry(gw, checkout.SessionConfig{
		AutoAdvanceDelay:  cfg.Checkout.AutoAdvanceDelay,
		ChargeQuotedPrice: cfg.Checkout.ChargeQuotedPrice,
		Currency:          checkout.DefaultCurrency,
	}, cfg.Checkout.SessionTTL, log)

	dispatcher := paylink.NewDispatcher(log, paylink.NewLogRecorder(log), pgStorage)

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		if botAPI, err = bot.NewBotAPI(cfg.Telegram, log); err != nil {
			return err
		}
	}

	deps := server.Deps{
		Registry:   registry,
		Dispatcher: dispatcher,
		Orders:     pgStorage,
		Limiter:    pgStorage,
	}

	var notifyOpts []notify.Option
	if cfg.Telegram.RelayURL != "" {
		notifyOpts = append(notifyOpts, notify.WithRelay(notify.NewRelaySender(cfg.Telegram.RelayURL, nil, log)))
	}
	if botAPI != nil {
		direct := notify.NewBotSender(botAPI, log)
		notifyOpts = append(notifyOpts, notify.WithDirect(direct))
		deps.Telegram = direct
	}
	notifier := notify.New(cfg.Telegram.AdminChatID, log, notifyOpts...)
	deps.Notifier = notifier

	var tgBot *bot.Bot
	if cfg.Telegram.BotEnabled && botAPI != nil {
		states := redisstore.New(redisClient, cfg.Redis.TTL)
		tgBot = bot.New(botAPI, states, pgStorage, notifier, log, cfg)
		deps.Announcer = tgBot
	}

	srv := server.New(cfg.HTTP, deps, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return registry.Run(gctx) })
	if tgBot != nil {
		g.Go(func() error { return tgBot.Start(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service stopped with error", zap.Error(err))
		return err
	}
	log.Info("Service shutdown gracefully")
	return nil
}

func newGateway(cfg *config.Config, log *zap.Logger) (checkout.Gateway, error) {
	switch cfg.Checkout.Gateway {
	case "mock", "":
		return checkout.NewMockGateway(cfg.Checkout.PaymentDelay), nil
	case "stripe":
		var opts []gateway.StripeOption
		if cfg.Stripe.APIURL != "" {
			opts = append(opts, gateway.WithAPIURL(cfg.Stripe.APIURL))
		}
		return gateway.NewStripe(cfg.Stripe.SecretKey, log, opts...), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Checkout.Gateway)
	}
}

type migrationFunc func(context.Context, *sql.DB, *zap.Logger) error

func migrate(run migrationFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		redisClient, pgStorage, err := e.connect(c.Context)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		defer pgStorage.Close()

		return run(c.Context, pgStorage.DB(), e.logger)
	}
}

func export(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	redisClient, pgStorage, err := e.connect(c.Context)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	defer pgStorage.Close()

	dir := c.String("dir")
	if dir == "" {
		dir = e.cfg.Admin.ReportDir
	}
	path, err := pgStorage.ExportOrdersToExcel(c.Context, dir)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
