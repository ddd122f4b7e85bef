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

	"github.com/medichain-erp/medichain-erp/internal/app"
	"github.com/medichain-erp/medichain-erp/internal/approval"
	"github.com/medichain-erp/medichain-erp/internal/directory"
	"github.com/medichain-erp/medichain-erp/internal/ledger/accounts"
	"github.com/medichain-erp/medichain-erp/internal/ledger/balances"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/ledger/mappings"
	"github.com/medichain-erp/medichain-erp/internal/pettycash"
	"github.com/medichain-erp/medichain-erp/internal/platform/cache"
	"github.com/medichain-erp/medichain-erp/internal/platform/db"
	"github.com/medichain-erp/medichain-erp/internal/purchasing"
	"github.com/medichain-erp/medichain-erp/internal/shared"
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
		logger.Warn("redis unavailable, fund locks degraded", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	eventLog := approval.NewEventLog(pool, logger)
	fundMutex := shared.NewFundMutex(redisClient, cfg.FundLockTTL)
	idemStore := shared.NewIdempotencyStore(pool)

	directoryRepo := directory.NewRepository(pool)
	resolver := approval.NewResolver(directoryRepo, logger).WithStrictBands(cfg.FailOnMissingApprover)

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	balancesService := balances.NewService(balances.NewRepository(pool))
	mappingsRepo := mappings.NewRepository(pool)
	journalsService := journals.NewService(journals.NewRepository(pool), mappingsRepo, auditLogger)
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), resolver, journalsService, eventLog, idemStore, auditLogger)
	pettyCashService := pettycash.NewService(pettycash.NewRepository(pool), resolver, journalsService, eventLog, fundMutex, idemStore, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountsHandler:   accounts.NewHandler(logger, accountsService),
		BalancesHandler:   balances.NewHandler(logger, balancesService),
		JournalsHandler:   journals.NewHandler(logger, journalsService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		PettyCashHandler:  pettycash.NewHandler(logger, pettyCashService),
		Pool:              pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
