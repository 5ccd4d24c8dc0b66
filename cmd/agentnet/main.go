package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentnet/agentnet/internal/app"
	"github.com/agentnet/agentnet/internal/auth"
	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/ledger"
	"github.com/agentnet/agentnet/internal/observability"
	"github.com/agentnet/agentnet/internal/platform/cache"
	"github.com/agentnet/agentnet/internal/platform/db"
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

	accountRepo := hierarchy.NewRepository(pool)
	authorizer := hierarchy.NewAuthorizer(accountRepo)
	accountService := hierarchy.NewService(accountRepo, authorizer, hierarchy.ServiceConfig{
		SignupEnabled: cfg.SignupEnabled,
	})

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(logger, accountRepo, authorizer, ledgerRepo)
	queryService := ledger.NewQueryService(accountRepo, authorizer, ledgerRepo, redisClient)
	accountService.SetSubnetBalancer(queryService)

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(accountRepo, tokenStore)
	authHandler := auth.NewHandler(logger, authService, accountService)

	accountsHandler := hierarchy.NewHandler(logger, accountService)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, queryService)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthService:     authService,
		AuthHandler:     authHandler,
		AccountsHandler: accountsHandler,
		LedgerHandler:   ledgerHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
