package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"merch_ledger/api"
	"merch_ledger/internal/bank"
	"merch_ledger/internal/config"
	"merch_ledger/internal/sales"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(fmt.Errorf("error creating logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStorage(cfg config.Config) (sales.Storage, error) {
	if cfg.Storage == config.StorageBolt {
		return sales.NewBoltStorage(cfg.BoltPath)
	}
	return sales.NewLocalStorage(), nil
}

func openBank(cfg config.Config) (sales.Bank, func() error) {
	if cfg.BankURL != "" {
		c := bank.NewClient(cfg.BankURL, cfg.BankTimeout)
		return c, c.Close
	}
	seed := make(map[sales.Identity]uint64, len(cfg.BankSeed))
	for id, amount := range cfg.BankSeed {
		seed[sales.Identity(id)] = amount
	}
	return bank.NewLocal(seed), func() error { return nil }
}

func run(cfg config.Config, logger *zap.Logger) error {
	storage, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer storage.Close()

	balances, closeBank := openBank(cfg)
	defer closeBank()

	salesService := sales.NewService(storage, balances, sales.Config{
		Owner:   sales.Identity(cfg.OwnerIdentity),
		Custody: sales.Identity(cfg.CustodyID),
	}, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	api.InitRoutes(r, salesService, logger)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("ledger listening", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("error trying to start server: %w", err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
