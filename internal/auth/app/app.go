// Package app wires configuration, storage, services, and the HTTP server
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/opswell/gatekeep/internal/auth/http"
	"github.com/opswell/gatekeep/internal/auth/ipguard"
	"github.com/opswell/gatekeep/internal/auth/notify"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/internal/auth/store/drivers/sqlite"
	"github.com/opswell/gatekeep/pkg/cryptox"
	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/opswell/gatekeep/pkg/passpolicy"
	"github.com/opswell/gatekeep/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds the wired service graph.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	codec   *jwtx.Codec
	ipGuard ipguard.Cache

	kafkaSink *notify.KafkaSink // nil unless brokers are configured

	loginService        *service.LoginService
	tokenService        *service.RefreshTokenService
	securityService     *service.SecurityService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeep",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	codec, err := jwtx.NewCodec([]byte(cfg.JWTSecret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initIPGuard()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gatekeep starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown stops the server, the housekeeping worker, and closes external
// connections, in that order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeep...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.kafkaSink != nil {
		if err := app.kafkaSink.Close(); err != nil {
			app.logger.Error("error closing kafka alert sink", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gatekeep stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

func (app *Application) initIPGuard() {
	guardCfg := ipguard.Config{
		FailedAttemptThreshold: app.cfg.IPBlockThreshold,
		AttemptWindow:          app.cfg.IPBlockWindow,
		BlockDuration:          app.cfg.IPBlockDuration,
	}

	if app.cfg.RedisAddr == "" {
		app.ipGuard = ipguard.NewMemoryCache(guardCfg)
		app.logger.Info("ip reputation cache: in-memory")
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	app.ipGuard = ipguard.NewRedisCache(rdb, guardCfg)
	app.logger.Info("ip reputation cache: redis", "addr", app.cfg.RedisAddr)
}

func (app *Application) initServices() {
	var sink notify.AlertSink = notify.LogSink{}
	if len(app.cfg.KafkaBrokers) > 0 {
		app.kafkaSink = notify.NewKafkaSink(
			notify.NewKafkaWriter(app.cfg.KafkaBrokers, app.cfg.KafkaAlertTopic),
		)
		sink = app.kafkaSink
		app.logger.Info("alert sink: kafka", "topic", app.cfg.KafkaAlertTopic)
	}

	app.securityService = &service.SecurityService{
		Store:                    app.db,
		Sink:                     sink,
		BruteForceThreshold:      app.cfg.BruteForceThreshold,
		BruteForceWindow:         app.cfg.BruteForceWindow,
		SuspiciousWindow:         app.cfg.SuspiciousWindow,
		SuspiciousFailureLimit:   app.cfg.SuspiciousFailureLimit,
		SuspiciousDistinctEmails: app.cfg.SuspiciousDistinctEmails,
	}

	app.tokenService = &service.RefreshTokenService{
		Store:           app.db,
		Security:        app.securityService,
		RefreshTTL:      app.cfg.RefreshTokenTTL,
		MaxActiveTokens: app.cfg.MaxActiveTokens,
	}

	app.loginService = &service.LoginService{
		Store:            app.db,
		Tokens:           app.tokenService,
		Security:         app.securityService,
		IPGuard:          app.ipGuard,
		Codec:            app.codec,
		Policy:           passpolicy.New(app.cfg.PasswordPolicy),
		AccessTTL:        app.cfg.AccessTokenTTL,
		StepUpTTL:        app.cfg.StepUpTokenTTL,
		LockoutThreshold: app.cfg.LockoutThreshold,
		LockoutDuration:  app.cfg.LockoutDuration,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.TokenRetention,
		app.cfg.EventRetention,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.codec, BuildVersion, app.db, app.logger)
	router.LoginService = app.loginService
	router.TokenService = app.tokenService
	router.SecurityService = app.securityService
	router.IPGuard = app.ipGuard
	router.Strict = app.cfg.RateLimitStrict
	router.Moderate = app.cfg.RateLimitModerate
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
