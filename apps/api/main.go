package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/mrdawstar/LinguaLab-sub000/apps/api/echo"
	"github.com/mrdawstar/LinguaLab-sub000/apps/shared"
	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/jobs"
	logsvc "github.com/mrdawstar/LinguaLab-sub000/services/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	reporters, err := logsvc.NewReporters(conf)
	if err != nil {
		return fmt.Errorf("setting up error reporters: %w", err)
	}
	baseLogger, err := logsvc.New(conf, reporters...)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer baseLogger.Sync()
	logger := baseLogger.Named("api")

	ctx, cancel := context.WithCancel(context.Background())

	// set up DB
	stores, err := shared.OpenStores(ctx, conf, true /* migrate */)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	svcs := shared.NewServices(stores, validate, baseLogger.Named("usage"))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build), map[string]interface{}{
		"env":    conf.Env,
		"engine": conf.Database.Engine,
	})
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Background Jobs

	runner := jobs.New(ctx, baseLogger.Named("jobs"))
	runner.Every(conf.Jobs.ExpiryInterval, jobs.ExpiryJobName, jobs.ExpiryJob(svcs.Packages, logger))
	defer runner.Wait()
	defer cancel()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(conf.Server.Address, shutdown, &echoapi.Deps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		DB:            stores.Pinger,
		AttendanceSvc: svcs.Attendance,
		PackageSvc:    svcs.Packages,
		SchoolSvc:     svcs.School,
		Reconciler:    svcs.Reconciler,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening", map[string]interface{}{"address": conf.Server.Address})
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(sctx); err != nil {
			logger.Error("could not stop server gracefully", err)
			if err = server.Close(); err != nil {
				return fmt.Errorf("could not force stop server: %w", err)
			}
		}
	}
	return nil
}
