package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankloan/internal/auth"
	"bankloan/internal/config"
	"bankloan/internal/db"
	"bankloan/internal/handlers"
	"bankloan/internal/logging"
	"bankloan/internal/observability"
	"bankloan/internal/services"
	"bankloan/internal/store"
	"bankloan/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bankloan: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	revoker, err := auth.NewRevokerFromURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer revoker.Close()
	if !revoker.Enabled() {
		logger.Warn("REDIS_URL not set, logout will not revoke tokens")
	}

	customers := store.NewCustomerStore(database)
	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	loans := store.NewLoanStore(database)
	installments := store.NewInstallmentStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	metrics := observability.NewMetrics()

	svc := handlers.Services{
		Ledger:     services.NewLedgerService(txRunner, accounts, transactions, customers, audit, hub, metrics, logger),
		Statements: services.NewStatementService(accounts, transactions),
		Loans:      services.NewLoanService(txRunner, loans, installments, accounts, transactions, customers, audit, hub, metrics, logger),
		Customers:  services.NewCustomerService(txRunner, customers, audit, logger),
		Dashboards: services.NewDashboardService(customers, loans, accounts, transactions, customers, audit),
	}
	handler := handlers.New(cfg, logger, svc, customers, revoker, database, hub, metrics)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("bankloan API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
