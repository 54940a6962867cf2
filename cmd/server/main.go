package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"skillsprint/internal/api"
	"skillsprint/internal/config"
	"skillsprint/internal/logger"
	"skillsprint/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logr, err := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}

	pdfService := services.NewPDFService(logr)
	documentService := services.NewDocumentService(pdfService, logr)

	// remote stays a nil interface unless a key is configured
	var remote services.Generator
	if cfg.RemoteEnabled() {
		remote = services.NewAIService(services.AIConfig{
			APIKey:   cfg.OpenAIKey,
			Endpoint: cfg.OpenAIEndpoint,
			Model:    cfg.OpenAIModel,
			Timeout:  cfg.OpenAITimeout,
		}, logr)
	}
	studyService := services.NewStudyService(services.NewLocalGenerator(nil), remote, cfg.FallbackOnRemoteFailure, logr)
	reviewService := services.NewReviewService()

	server := api.NewServer(documentService, studyService, reviewService, api.Options{
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// quiz generation makes one model call per slide
		WriteTimeout: 5 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info().
			Str("addr", srv.Addr).
			Bool("remote", cfg.RemoteEnabled()).
			Str("model", cfg.OpenAIModel).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logr.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error().Err(err).Msg("graceful shutdown")
	}
}
