package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/nurse-etr/assistant/pkg/assistant"
	"github.com/nurse-etr/assistant/pkg/bootstrap"
	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/gateway/middleware"
	"github.com/nurse-etr/assistant/pkg/intent"
	"github.com/nurse-etr/assistant/pkg/observability/metrics"
)

func main() {
	logger.Init("nurse-agent")
	cfg := config.Load()

	store, closeStore, err := bootstrap.OpenStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open record store")
	}

	extractor := intent.NewLLMExtractor(cfg)
	if cfg.LLMAPIKey == "" {
		logger.Log.Warn("LLM_API_KEY not set, every message will be treated as unknown")
	}
	redactor, err := bootstrap.Redactor(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load redaction rules")
	}
	dispatcher := assistant.NewDispatcher(store, extractor, assistant.WithRedactor(redactor))

	channel, closeChannel := bootstrap.Channel(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler, closeScheduler, err := bootstrap.Scheduler(ctx, cfg, store, channel)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load reminder jobs")
	}

	if cfg.RemindersEnabled {
		scheduler.Start(ctx)
	} else {
		logger.Log.Info("Reminder scheduler disabled")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	assistant.NewHandler(dispatcher).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"store": cfg.StoreDriver,
		}).Info("Nurse agent started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down nurse agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	// in-flight sweeps finish before their dependencies close
	cancel()
	scheduler.Stop()
	closeScheduler()
	closeChannel()
	closeStore()

	logger.Log.Info("Nurse agent stopped")
}
