package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/internal/billing"
	"github.com/aldoetobex/debt-recovery-backend/internal/cache"
	"github.com/aldoetobex/debt-recovery-backend/internal/config"
	"github.com/aldoetobex/debt-recovery-backend/internal/logging"
	"github.com/aldoetobex/debt-recovery-backend/internal/storage"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Run migrations before serving",
			Value: true,
		},
	},
}

// bootstrap loads config, the logger and the database for every command.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}
	db, err := database.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cCtx.Bool("migrate") {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	rdb := cache.New(cfg.Redis, logger)
	defer rdb.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store == nil {
		logger.Warn("object storage disabled; signed urls and file removal are unavailable")
	}

	var intents billing.IntentCreator
	if cfg.Stripe.SecretKey != "" {
		intents = billing.NewStripeIntents(cfg.Stripe.SecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY is empty; online payments are disabled")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.NewErrorHandler(logger),
	})
	app.Use(logging.RequestLogger(logger))

	registerRoutes(app, deps{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		cache:   rdb,
		store:   store,
		intents: intents,
		tokens:  auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	})

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return app.ShutdownWithTimeout(10 * time.Second)
}
