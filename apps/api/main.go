package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	echoapi "github.com/trezcool/ilmlab/apps/api/echo"
	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
	"github.com/trezcool/ilmlab/core/reaction"
	assessmentsvc "github.com/trezcool/ilmlab/services/assessment"
	emailsvc "github.com/trezcool/ilmlab/services/email"
	logsvc "github.com/trezcool/ilmlab/services/logger"
	metricsvc "github.com/trezcool/ilmlab/services/metrics"
	"github.com/trezcool/ilmlab/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API", conf)
	defer logger.Sync()
	dbLogger := newLogger("DB", conf)
	defer dbLogger.Sync()

	// set up store
	store, closeStore, err := storage.OpenDocumentStore(context.Background(), conf, progress.FieldXP)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.DocumentStore, err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	metrics := metricsvc.New(true)

	grader, err := assessmentsvc.New(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up grader: %v", err), err)
	}

	catalog, err := progress.LoadCatalog(conf.Progress.CatalogPath)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading achievements: %v", err), err)
	}

	ledger := progress.NewLedger(conf, progress.LedgerDeps{
		Store:    store,
		Catalog:  catalog,
		Logger:   logger,
		Metrics:  metrics,
		Notifier: emailsvc.NewAchievementNotifier(mailSvc),
	})
	hub := identity.NewHub()
	sessions := progress.NewSessions(ledger, logger)
	defer sessions.Subscribe(hub)()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("store").Set(conf.DocumentStore)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Ledger:     ledger,
			Sessions:   sessions,
			Hub:        hub,
			Tokens:     identity.NewTokenIssuer(conf),
			Grader:     grader,
			Reactions:  reaction.DefaultCatalog(),
			Metrics:    metrics,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newLogger(name string, conf *core.Config) *logsvc.RollbarLogger {
	zl, err := logsvc.NewZap(name, conf.Debug)
	if err != nil {
		log.Fatalf("setting up %s logger: %v", name, err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger
}
