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

	"github.com/radbridge/studyflow/internal/clients/gcs"
	"github.com/radbridge/studyflow/internal/clients/redisq"
	"github.com/radbridge/studyflow/internal/config"
	"github.com/radbridge/studyflow/internal/dicom"
	"github.com/radbridge/studyflow/internal/fhir"
	"github.com/radbridge/studyflow/internal/handlers"
	"github.com/radbridge/studyflow/internal/logger"
	"github.com/radbridge/studyflow/internal/observability"
	"github.com/radbridge/studyflow/internal/pipeline"
	"github.com/radbridge/studyflow/internal/server"
	"github.com/radbridge/studyflow/internal/study"
)

const serviceName = "studyflow"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Logger
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.LogMode,
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Clients
	log.Info("Setting up clients from main...")
	store, err := gcs.NewObjectStore(ctx, log)
	if err != nil {
		log.Fatal("Could not init object store", "error", err)
	}
	queue, rejects, err := redisq.New(cfg, log)
	if err != nil {
		log.Fatal("Could not init redis queue", "error", err)
	}

	// Pipeline
	log.Info("Setting up pipeline from main...")
	reader := dicom.NewReader(log, store, cfg.MaxReadBytes)
	assembler := study.NewAssembler(log, reader)
	templates := fhir.NewTemplateSource(cfg, log, store)
	mapper := fhir.NewMapper(log)
	finalizer := fhir.NewFinalizer(log)
	submitter := fhir.NewSubmitter(cfg, log)
	svc := pipeline.NewService(log, assembler, templates, mapper, finalizer, submitter, rejects)

	worker := pipeline.NewWorker(log, queue, rejects, svc, cfg.WorkerCount, cfg.BatchTimeout)
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Run(ctx)
	}()

	// Router
	log.Info("Setting up router from main...")
	studyHandler := handlers.NewStudyHandler(log, queue)
	router := server.NewRouter(server.RouterConfig{
		ServiceName:  serviceName,
		StudyHandler: studyHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	if err := <-workerDone; err != nil {
		log.Warn("Worker shutdown failed", "error", err)
	}
	log.Info("Goodbye.")
}
