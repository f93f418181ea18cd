package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calshare/internal/audit"
	"calshare/internal/calendar"
	"calshare/internal/config"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/membership"
	"calshare/internal/notifications"
	"calshare/internal/openfga"
	"calshare/internal/projection"
	"calshare/internal/service"
	"calshare/internal/sharing"
	"calshare/internal/telemetry"
	"calshare/internal/validator"
	"calshare/internal/web/api"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/postgres/v3"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal", "signal", sig.String())
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	logger := tel.Logger()
	slog.SetDefault(logger)

	db := database.NewDatabase()
	if err := db.Connect(ctx, database.ConnectParams{
		ConnString: cfg.Database.DSN(),
		MaxConns:   int32(cfg.Database.MaxConns),
		MinConns:   int32(cfg.Database.MinConns),
	}); err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}()

	fgaClient, err := openfga.NewClient(cfg.OpenFGA)
	if err != nil {
		logger.Error("failed to initialize OpenFGA client", "error", err)
		return err
	}
	defer fgaClient.Close()
	mirror := openfga.NewGrantMirror(logger, fgaClient)

	auditor := audit.NewAuditor(logger, &db)
	notifier := notifications.NewManager(logger, &db)
	memberships := membership.NewManager(logger, &db, &auditor, &notifier)
	events := event.NewManager(logger, &db, &memberships, &auditor)
	shares := sharing.NewManager(logger, &db, &auditor, &notifier, mirror)
	projections := projection.NewManager(logger, &db, &events, &auditor, &notifier, mirror)
	planner := calendar.NewManager(logger, &db, &memberships)
	limiter := service.NewRateLimiter(redisClient)

	handler := api.NewHandler(api.HandlerParams{
		Logger:        logger,
		Validate:      validator.New(),
		DB:            &db,
		Events:        &events,
		Sharing:       &shares,
		Projections:   &projections,
		Memberships:   &memberships,
		Calendar:      &planner,
		Notifications: &notifier,
		Limiter:       limiter,
	})

	limiterStorage := postgres.New(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Table:    "http_rate_limits",
		Reset:    false,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	if tel.IsEnabled() {
		app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))
	}

	api.RegisterRoutes(app, handler, limiterStorage)

	errChan := make(chan error, 1)
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("starting server", "addr", addr, "environment", cfg.Server.Environment)
		errChan <- app.Listen(addr)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return err
	}

	return nil
}
