// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

	"github.com/joho/godotenv"
	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/config"
	"github.com/nexuscentral/nexuscentral/internal/installation"
	"github.com/nexuscentral/nexuscentral/internal/observability/logger"
	"github.com/nexuscentral/nexuscentral/internal/observability/metrics"
	"github.com/nexuscentral/nexuscentral/internal/observability/tracing"
	"github.com/nexuscentral/nexuscentral/internal/ratelimit"
	"github.com/nexuscentral/nexuscentral/internal/store/postgres"
	transportHTTP "github.com/nexuscentral/nexuscentral/internal/transport/http"
	"github.com/nexuscentral/nexuscentral/internal/update"
	"github.com/nexuscentral/nexuscentral/internal/vault"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting nexuscentral control plane")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter and the domain counters
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}
	httpMetrics, err := transportHTTP.NewMetrics(meter)
	if err != nil {
		slog.Error("failed to register metrics", logger.Error(err))
		os.Exit(1)
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	companyRepo := postgres.NewCompanyRepository(db)
	installationRepo := postgres.NewInstallationRepository(db)
	channelRepo := postgres.NewChannelRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Initialize helpers
	credentialVault, err := vault.New(cfg.Security.EncryptionKey)
	if err != nil {
		slog.Error("failed to initialize credential vault", logger.Error(err))
		os.Exit(1)
	}

	auditLogger := audit.NewAsyncLogger(auditRepo, cfg.RateLimit.AuditBufferSize)
	defer auditLogger.Close()

	// Initialize services
	companyService := company.NewService(
		companyRepo,
		credentialVault,
		auditLogger,
		cfg.Security.TenantDBHost,
		cfg.Security.DefaultMaxInstallations,
	)
	installationService := installation.NewService(
		installationRepo,
		companyService,
		credentialVault,
		auditLogger,
	)
	updateService := update.NewService(
		channelRepo,
		companyService,
		auditLogger,
		cfg.Server.PublicBaseURL,
	)

	// Rate Governor
	governor := ratelimit.NewGovernor(
		[]ratelimit.Rule{
			{Prefix: "/api/company/validate", MaxRequests: cfg.RateLimit.ValidatePerMinute, Window: time.Minute},
			{Prefix: "/api/updates/check", MaxRequests: cfg.RateLimit.CheckPerHour, Window: time.Hour},
			{Prefix: "/api/updates/download", MaxRequests: cfg.RateLimit.DownloadPerHour, Window: time.Hour},
		},
		ratelimit.Rule{MaxRequests: cfg.RateLimit.DefaultPerMinute, Window: time.Minute},
	)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		companyService,
		installationService,
		updateService,
		auditLogger,
		cfg.Security.AdminSecret,
		httpMetrics,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, governor)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
