// cmd/awadmind/main.go
// Package main implements the entry point for the admin API service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	"github.com/awadmin/awadmin-api-go/internal/config"
	"github.com/awadmin/awadmin-api-go/internal/docs"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/metrics"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/openapi"
	"github.com/awadmin/awadmin-api-go/internal/server"
	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/awadmin/awadmin-api-go/internal/telemetry"
	"github.com/awadmin/awadmin-api-go/internal/token"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	_, err = telemetry.InitTracer(telemetry.Options{
		ServiceName: "awadmin-api",
		Version:     version,
		Environment: cfg.Env,
	})
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx)
	}()

	m := metrics.NewMetrics()

	// Initialize storage backend (PostgreSQL or in-memory)
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("ADMIN_DB_DSN not set, using in-memory storage")
		store = storage.NewMemory()
	}
	store = storage.Instrument(store, m)
	defer store.Close()

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewPublisher(cfg.NATSURL)
	defer pub.Close()

	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	authSvc := auth.NewService(store)
	if cfg.SuperuserUsername != "" && cfg.SuperuserPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := authSvc.EnsureSuperuser(ctx, cfg.SuperuserUsername, cfg.SuperuserPassword); err != nil {
			logger.Error("failed to ensure superuser", "username", cfg.SuperuserUsername, "error", err)
			cancel()
			os.Exit(1)
		}
		cancel()
	}

	reg := model.DefaultRegistry()
	doc := openapi.Build(reg, openapi.Options{
		Title:     "AW Admin API",
		Version:   "1.0.0",
		ServerURL: cfg.PublicBaseURL,
	})

	// Publish the API description when a bucket is configured
	if cfg.S3Bucket != "" {
		publishDocs(logger, cfg, doc)
	}

	mux, err := server.NewMux(server.Options{
		Store:              store,
		Issuer:             issuer,
		Publisher:          pub,
		Registry:           reg,
		Auth:               authSvc,
		Metrics:            m,
		Document:           doc,
		DefaultPageSize:    cfg.DefaultPageSize,
		MaxPageSize:        cfg.MaxPageSize,
		PublicBaseURL:      cfg.PublicBaseURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Error("failed to initialize HTTP handlers", "error", err)
		os.Exit(1)
	}

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start server in a separate goroutine
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server exited")
}

// publishDocs uploads the OpenAPI document. A failed upload is logged and
// does not stop the service.
func publishDocs(logger *slog.Logger, cfg config.Config, doc *openapi.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := docs.NewS3Publisher(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
	if err != nil {
		logger.Warn("failed to initialize document publisher", "error", err)
		return
	}
	if _, err := pub.Publish(ctx, doc); err != nil {
		logger.Warn("failed to publish OpenAPI document", "bucket", cfg.S3Bucket, "error", err)
		return
	}
	if url, err := pub.DownloadURL(ctx, docs.JSONKey, time.Hour); err == nil {
		logger.Info("OpenAPI document published", "bucket", cfg.S3Bucket, "url", url)
	}
}
