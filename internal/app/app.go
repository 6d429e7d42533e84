package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ditznesia/otpstore/internal/catalog"
	"github.com/ditznesia/otpstore/internal/config"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/logger"
	"github.com/ditznesia/otpstore/internal/orderflow"
	"github.com/ditznesia/otpstore/internal/poller"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/server"
	"github.com/ditznesia/otpstore/internal/server/router"
	"github.com/ditznesia/otpstore/internal/storage"
	"github.com/ditznesia/otpstore/internal/storage/inmemory"
	"github.com/ditznesia/otpstore/internal/storage/pgstorage"
)

type Application struct {
	log    *slog.Logger
	server *server.Server
	poller *poller.Poller
}

func New() (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logger.LogFormatJSON),
		logger.WithAddSource(false),
	)

	store, err := newStorage(cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("app.newStorage: %w", err)
	}

	if err := bootstrapAdmin(context.Background(), store, cfg, logg); err != nil {
		return nil, fmt.Errorf("app.bootstrapAdmin: %w", err)
	}

	provider := otpclient.New(cfg.ProviderAPIKey,
		otpclient.WithBaseURL(cfg.ProviderAddr),
		otpclient.WithLogger(logg),
	)

	flow := orderflow.New(store, provider,
		orderflow.WithLogger(logg),
	)

	syncer := catalog.NewSyncer(store, provider,
		catalog.WithLogger(logg),
	)

	srv := server.NewServer(
		router.NewRouter(store, flow,
			router.WithLogger(logg),
			router.WithSecret([]byte(cfg.JWTSecretKey)),
			router.WithSyncer(syncer),
			router.WithProvider(provider),
		),
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(logg),
	)

	poll := poller.New(store, flow,
		poller.WithLogger(logg),
		poller.WithPollInterval(cfg.ProviderPollInterval),
	)

	return &Application{
		log:    logg,
		server: srv,
		poller: poll,
	}, nil
}

func newStorage(cfg config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURI == "" {
		log.Info("Using in-memory storage")

		return storage.NewStorage(inmemory.NewStorage()), nil
	}

	pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("pgstorage.Bootstrap: %w", err)
	}

	log.Info("Using postgres storage")

	return storage.NewStorage(pgstore), nil
}

// bootstrapAdmin seeds the admin account on first start so the dashboard
// is reachable without touching the database by hand.
func bootstrapAdmin(ctx context.Context, store storage.Storage, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	admin, err := users.NewUser("Administrator", cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("users.NewUser: %w", err)
	}

	admin.Role = users.RoleAdmin

	if err := store.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil
		}

		return fmt.Errorf("storage.CreateUser: %w", err)
	}

	log.Info("Created admin account", slog.String("email", cfg.AdminEmail))

	return nil
}

func (a *Application) Run() error {
	errChan := make(chan error, 1)

	go func() {
		if err := a.server.Start(); err != nil {
			errChan <- fmt.Errorf("server.Start: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.poller.Run(ctx); err != nil {
			errChan <- fmt.Errorf("poller.Run: %w", err)
		}
	}()

	// Graceful shutdown handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case err := <-errChan:
			return err

		case <-quit:
			a.log.Info("Gracefully shutting down application...")

			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.log.Error("server.Shutdown()", slog.Any("error", err))
			}

			return nil
		}
	}
}
