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

	"github.com/sheikh-saqib/split-ledger-gateway/internal/config"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/events/kafka"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/httpapi"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity/tma"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/ledger"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/storage"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "event", "server_stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// An unsupported adapter outside development halts startup here.
	switchboard, err := identity.NewSwitchboard(identity.SwitchboardConfig{
		Adapter:         cfg.IdentityAdapter,
		BotToken:        cfg.BotToken,
		Dev:             cfg.Dev,
		Timeout:         cfg.AdapterTimeout,
		StubDelay:       identity.DefaultStubDelay,
		VerifierOptions: []tma.Option{tma.WithMaxAge(cfg.CredentialTTL)},
	}, logger)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StorageDriver,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", "event", "store_close_failed", "error", err)
		}
	}()

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher, cfg.KafkaTopic))
	}
	ledgerService := ledger.NewLedger(store, opts...)

	guard := identity.NewGuard(switchboard, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(ledgerService, guard, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			"event", "http_server_starting",
			"addr", cfg.HTTPAddr,
			"adapter", switchboard.AdapterName(),
			"storage", cfg.StorageDriver,
			"dev", cfg.Dev,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("http server stopping", "event", "http_server_stopping")
	return srv.Shutdown(shutdownCtx)
}
