package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soakstead/soakstead-backend/api/routes"
	"github.com/soakstead/soakstead-backend/internal/availability"
	"github.com/soakstead/soakstead-backend/internal/board"
	"github.com/soakstead/soakstead-backend/internal/fulfillment"
	"github.com/soakstead/soakstead-backend/internal/reconcile"
	"github.com/soakstead/soakstead-backend/internal/reservations"
	"github.com/soakstead/soakstead-backend/pkg/config"
	"github.com/soakstead/soakstead-backend/pkg/db"
	"github.com/soakstead/soakstead-backend/pkg/instance"
	"github.com/soakstead/soakstead-backend/pkg/logger"
	"github.com/soakstead/soakstead-backend/pkg/migrate"
	"github.com/soakstead/soakstead-backend/pkg/outbox"
	"github.com/soakstead/soakstead-backend/pkg/redis"
	"github.com/soakstead/soakstead-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square", err)
		os.Exit(1)
	}

	outboxRepo, err := outbox.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox repository", err)
		os.Exit(1)
	}
	outboxService, err := outbox.NewService(outboxRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox service", err)
		os.Exit(1)
	}

	availabilityRepo := availability.NewRepository(dbClient.DB())
	availabilityService, err := availability.NewService(availabilityRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	reservationsService, err := reservations.NewService(
		reservations.NewRepository(dbClient.DB()),
		availabilityRepo,
		dbClient,
		outboxService,
		cfg.Booking,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(
		fulfillment.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Repository: reconcile.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outboxService,
		Gateway:    squareClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	boardCoordinator, err := board.NewCoordinator(board.CoordinatorParams{
		Board:   board.NewBoard(),
		Machine: fulfillmentService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create board coordinator", err)
		os.Exit(1)
	}
	if grouped, loadErr := fulfillmentService.BoardOrders(context.Background()); loadErr != nil {
		logg.Warn(context.Background(), "board preload failed, will load on first move")
	} else {
		boardCoordinator.Board().Load(grouped)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			availabilityService,
			reservationsService,
			fulfillmentService,
			reconcileService,
			boardCoordinator,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
