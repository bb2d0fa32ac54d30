package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.io/infrasutra/holomail/internal/api"
	"github.io/infrasutra/holomail/internal/config"
	"github.io/infrasutra/holomail/internal/mailbox"
	"github.io/infrasutra/holomail/internal/realtime"
	"github.io/infrasutra/holomail/internal/schema"
	"github.io/infrasutra/holomail/internal/smtpserver"
	"github.io/infrasutra/holomail/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory sqlite, data is lost on restart")
	}
	logger.Info("database ready", "backend", db.Backend())

	schemas, err := schema.Load()
	if err != nil {
		logger.Error("load schemas", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	service := mailbox.NewService(db, hub, logger)
	apiServer := api.NewServer(cfg, db, service, schemas, hub, logger)

	var smtpSrv *smtpserver.Server
	if cfg.SMTPEnabled {
		smtpAuthCfg := smtpserver.AuthConfig{
			Enabled:  cfg.SMTPAuthEnabled,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
		if smtpAuthCfg.Enabled {
			logger.Info("smtp auth enabled", "username", smtpAuthCfg.Username)
		} else {
			logger.Warn("smtp auth disabled; server accepts unauthenticated connections")
		}
		smtpSrv = smtpserver.New(service, logger, fmt.Sprintf(":%d", cfg.SMTPPort), smtpAuthCfg)
		go func() {
			if err := smtpSrv.ListenAndServe(); err != nil {
				logger.Error("smtp server stopped", "error", err)
			}
		}()
	}

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	// Hijacked websocket connections are not tracked by http.Server.
	if closed := hub.CloseAll(); closed > 0 {
		logger.Info("closed realtime channels", "count", closed)
	}
	if smtpSrv != nil {
		if err := smtpSrv.Shutdown(ctx); err != nil {
			logger.Error("shutdown smtp", "error", err)
		}
	}
}
