package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/lockstead/authgate/internal/auth/http"
	"github.com/lockstead/authgate/internal/auth/notify"
	"github.com/lockstead/authgate/internal/auth/service"
	"github.com/lockstead/authgate/internal/auth/store"
	"github.com/lockstead/authgate/internal/auth/store/drivers/sqlite"
	"github.com/lockstead/authgate/pkg/cryptox"
	"github.com/lockstead/authgate/pkg/jwtx"
	"github.com/lockstead/authgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	vault  *cryptox.Vault
	tokens *jwtx.Issuer

	authService         *service.AuthService
	housekeepingService *service.HousekeepingService
	dispatcher          *notify.Dispatcher

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("authgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, drains outstanding mail, stops
// housekeeping, and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.dispatcher.Wait()
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authgate stopped")
	return nil
}

// initDatabase opens the SQLite store and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		app.cfg.DatabaseFile,
	)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCrypto resolves key material for the secret vault and the assertion
// signer.
func (app *Application) initCrypto() error {
	wrapKey, err := loadOrGenerateWrapKey(app.cfg.WrapKeyFile)
	if err != nil {
		return err
	}
	vault, err := cryptox.NewVault(wrapKey)
	if err != nil {
		return fmt.Errorf("failed to initialize secret vault: %w", err)
	}
	app.vault = vault

	signingKey, err := loadOrGenerateSigningKey(app.cfg.SigningKeyFile)
	if err != nil {
		return err
	}
	issuer, err := jwtx.NewIssuer(signingKey, app.cfg.Issuer, app.cfg.AssertionTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize assertion issuer: %w", err)
	}
	app.tokens = issuer

	if app.cfg.SigningKeyFile == "" {
		app.logger.Warn("using ephemeral signing key; assertions will not survive a restart")
	}
	return nil
}

// initServices wires the business logic services.
func (app *Application) initServices() {
	var notifier notify.Notifier
	if app.cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(app.cfg.SMTP)
	} else {
		notifier = notify.LogNotifier(app.logger)
		app.logger.Warn("no mail relay configured; confirmation codes will be logged")
	}
	app.dispatcher = notify.NewDispatcher(notifier, app.logger)

	confirmations := service.NewConfirmationService(app.db, app.cfg.CodeLifetime, app.cfg.LockoutWindow)
	registrations := service.NewRegistrationService(app.db, app.cfg.RegistrationRetention)

	app.authService = service.NewAuthService(
		app.db,
		app.vault,
		confirmations,
		registrations,
		app.tokens,
		app.dispatcher,
		app.logger,
	)
	app.authService.LoginLimit = app.cfg.LoginRetries
	app.authService.ValidateLimit = app.cfg.ValidateRetries

	app.housekeepingService = service.NewHousekeepingService(
		confirmations,
		registrations,
		app.cfg.SweepInterval,
		app.logger,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.Auth = app.authService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
