package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kedaiku/kedaiku/internal/app"
	"github.com/kedaiku/kedaiku/internal/auth"
	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/catalog"
	"github.com/kedaiku/kedaiku/internal/notify"
	"github.com/kedaiku/kedaiku/internal/orders"
	"github.com/kedaiku/kedaiku/internal/otp"
	"github.com/kedaiku/kedaiku/internal/platform/cache"
	"github.com/kedaiku/kedaiku/internal/platform/db"
	"github.com/kedaiku/kedaiku/internal/reporting"
	"github.com/kedaiku/kedaiku/internal/shared"
	"github.com/kedaiku/kedaiku/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "kedaiku_session", cfg.SessionTTL, cfg.IsProduction())

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	mailer := notify.NewMailer(jobClient, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	cartRepo := cart.NewRepository(pool)
	cartService := cart.NewService(cartRepo, catalogService)
	cartHandler := cart.NewHandler(logger, cartService)

	reportingRepo := reporting.NewRepository(pool)
	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reportingRepo, reportingCache)
	reportingHandler := reporting.NewHandler(reportingService, logger)

	otpStore := otp.NewStore(redisClient, cfg.OTPTTL)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, mailer, reportingService, logger)
	ordersHandler := orders.NewHandler(ordersService, otpStore, mailer, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		CartHandler:      cartHandler,
		OrdersHandler:    ordersHandler,
		ReportingHandler: reportingHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
