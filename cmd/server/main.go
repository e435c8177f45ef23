package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/config"
	"github.com/Garzer09/biz-data-guide-sub001/internal/db"
	"github.com/Garzer09/biz-data-guide-sub001/internal/ingestion"
	"github.com/Garzer09/biz-data-guide-sub001/internal/metrics"
	"github.com/Garzer09/biz-data-guide-sub001/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	configDir := os.Getenv("FINSIGHT_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(cfg.Database, logger.Named("migrate")); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise application", zap.Error(err))
	}
	defer application.Close()

	if cfg.Watchdog.Enabled {
		if err := application.Watchdog.Start(cfg.Watchdog.Schedule); err != nil {
			logger.Fatal("failed to start watchdog", zap.Error(err))
		}
	}

	router := mux.NewRouter()
	router.Use(middleware.Recoverer(logger))
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := application.Conn.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := mux.NewRouter()
	api.Use(middleware.LoggingMiddleware(logger.Named("http")))
	api.Use(auth.Middleware(auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience), logger.Named("auth")))
	api.Use(middleware.DataLoaderMiddleware(application.Logs, cfg.Import.SampleErrors))
	ingestion.NewHTTPHandler(application.Service, logger.Named("api")).Register(api)
	router.PathPrefix("/api/").Handler(api)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("starting import server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
