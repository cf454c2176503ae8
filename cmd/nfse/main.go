package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	certpg "gestaoplus/ms_nfse_core/internal/adapters/certificate/postgres"
	healthhttp "gestaoplus/ms_nfse_core/internal/adapters/http/health"
	nfsehttp "gestaoplus/ms_nfse_core/internal/adapters/http/nfse"
	invoicepg "gestaoplus/ms_nfse_core/internal/adapters/invoice/postgres"
	"gestaoplus/ms_nfse_core/internal/adapters/notification/mail"
	"gestaoplus/ms_nfse_core/internal/adapters/notification/pdf"
	"gestaoplus/ms_nfse_core/internal/adapters/sefaz"
	settingspg "gestaoplus/ms_nfse_core/internal/adapters/settings/postgres"
	"gestaoplus/ms_nfse_core/internal/adapters/storage/httpblob"
	translogpg "gestaoplus/ms_nfse_core/internal/adapters/translog/postgres"
	apphealth "gestaoplus/ms_nfse_core/internal/application/health"
	appnotification "gestaoplus/ms_nfse_core/internal/application/notification"
	"gestaoplus/ms_nfse_core/internal/application/transmission"
	"gestaoplus/ms_nfse_core/internal/core/settings"
	"gestaoplus/ms_nfse_core/internal/infrastructure/config"
	"gestaoplus/ms_nfse_core/internal/infrastructure/database"
	infrahttp "gestaoplus/ms_nfse_core/internal/infrastructure/http"
	"gestaoplus/ms_nfse_core/internal/infrastructure/http/server"
	"gestaoplus/ms_nfse_core/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info("Database connection established", "database", cfg.Database.Database)

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	invoices := invoicepg.NewRepository(pool, log)
	issuerSettings := settingspg.NewRepository(pool, log)
	certificates := certpg.NewRepository(pool, log)
	logbook := translogpg.NewRepository(pool, log)

	// One client per authority environment, each behind its own
	// breaker: a homologation brownout must not open the circuit for
	// production traffic.
	clientFor := func() transmission.ClientProvider {
		newClient := func(env settings.Environment) *sefaz.Client {
			breaker := sefaz.NewCircuitBreaker(
				cfg.Sefaz.BreakerMaxFailures,
				cfg.Sefaz.BreakerFailureRate,
				cfg.Sefaz.BreakerCooldown,
			)
			return sefaz.NewClient(sefaz.ClientConfig{
				Endpoint:        sefaz.Endpoint(env),
				Timeout:         cfg.Sefaz.Timeout,
				SchemaVersion:   cfg.Sefaz.SchemaVersion,
				MaxConnsPerHost: cfg.Sefaz.MaxConnsPerHost,
			}, breaker, log)
		}
		homologation := newClient(settings.EnvironmentHomologation)
		production := newClient(settings.EnvironmentProduction)

		return func(env settings.Environment) transmission.AuthorityClient {
			if env == settings.EnvironmentProduction {
				return production
			}
			return homologation
		}
	}()

	var notifier transmission.Notifier
	var dispatcher *appnotification.Dispatcher
	if len(cfg.Notification.Recipients) > 0 {
		outbound := &infrahttp.TracedClientConfig{Timeout: cfg.Notification.JobTimeout}
		dispatcher = appnotification.NewDispatcher(appnotification.Options{
			Settings:   issuerSettings,
			Renderer:   pdf.NewRenderer(),
			Blobs:      httpblob.NewClient(cfg.BlobStorage.BaseURL, cfg.BlobStorage.APIKey, infrahttp.NewTracedClient(outbound, log, "blob-storage"), log),
			Sink:       mail.NewClient(cfg.Notification.MailBaseURL, cfg.Notification.MailAPIKey, infrahttp.NewTracedClient(outbound, log, "mail-api"), log),
			Recipients: cfg.Notification.Recipients,
			Workers:    cfg.Notification.Workers,
			JobTimeout: cfg.Notification.JobTimeout,
			Logger:     log,
		})
		dispatcher.Start()
		defer dispatcher.Stop()
		notifier = dispatcher
		log.Info("Notification dispatch enabled", "recipients", len(cfg.Notification.Recipients), "workers", cfg.Notification.Workers)
	} else {
		log.Info("Notification dispatch disabled, no recipients configured")
	}

	service := transmission.NewService(transmission.Options{
		Invoices:     invoices,
		Settings:     issuerSettings,
		Certificates: certificates,
		Logbook:      logbook,
		ClientFor:    clientFor,
		Notifier:     notifier,
		Logger:       log,
	})

	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}).WithDependency("database", pool)

	srv, err := server.New(server.Options{
		HTTP:   cfg.HTTP,
		Auth:   cfg.Auth,
		Logger: log,
		Health: healthhttp.NewHandler(healthService),
		NFSe:   nfsehttp.NewHandler(service, log),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	log.Info("Starting HTTP server", "port", cfg.HTTP.Port)
	return srv.Run(ctx)
}
