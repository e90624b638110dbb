package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pickem/internal/auth"
	"pickem/internal/config"
	"pickem/internal/handlers"
	"pickem/internal/ledger"
	"pickem/internal/logger"
	"pickem/internal/service"
	"pickem/internal/storage"
	"pickem/internal/treasury"
)

const shutdownTimeout = 10 * time.Second

func openStore(cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Info("", "store_opened", "backend=memory")
		return ledger.NewMemStore(), func() {}, nil
	}

	logger.Info("", "store_opening", "backend=sqlite path="+cfg.DatabasePath)
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func buildLedger(cfg *config.Config, store ledger.Store, sink ledger.EventSink) (*ledger.Ledger, error) {
	opts := []ledger.Option{
		ledger.WithParams(cfg.Params),
		ledger.WithEventSink(sink),
	}

	if cfg.AttestationKey != "" {
		v, err := ledger.NewAttestationVerifier(cfg.LedgerID, []byte(cfg.AttestationKey))
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithVerifier(v))
	} else {
		logger.Info("", "verifier_structural_only", "ATTESTATION_KEY not set; proofs are checked for shape only")
	}

	if cfg.TreasuryURL != "" {
		opts = append(opts, ledger.WithPayer(treasury.NewClient(cfg.TreasuryURL, cfg.TreasuryToken)))
	} else {
		logger.Info("", "payer_journal_only", "TREASURY_URL not set; claims are recorded in the journal only")
	}

	return ledger.New(store, cfg.Organizer, opts...), nil
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks := ledger.MultiSink{ledger.LogSink{}}
	announcers := service.MultiAnnouncer{service.LogAnnouncer{}}

	var notifier *service.NotificationService
	if cfg.TelegramBotToken != "" && cfg.ChannelID != "" {
		notifier, err = service.NewNotificationService(cfg.TelegramBotToken, cfg.ChannelID)
		if err != nil {
			// the ledger works without the channel
			logger.Error("", "broadcaster_disabled", err.Error())
		} else {
			sinks = append(sinks, notifier)
			announcers = append(announcers, notifier)
		}
	}

	l, err := buildLedger(cfg, store, sinks)
	if err != nil {
		return err
	}

	if cfg.AuthSecret == "" {
		logger.Error("", "auth_secret_missing", "AUTH_SECRET not set; every signed request will be rejected")
	}
	validator := auth.NewValidator(cfg.AuthSecret)

	watcher := service.NewLockWatcher(l, announcers, cfg.LockWatchInterval, nil)
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewHandler(l).Routes(validator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("", "server_starting", "addr="+server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("", "server_shutting_down", "")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if notifier != nil {
		g.Go(func() error { return notifier.Run(gctx) })
	}

	return g.Wait()
}
