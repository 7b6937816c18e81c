package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/auth"
	"sms-backoffice/internal/billing"
	"sms-backoffice/internal/campaign"
	"sms-backoffice/internal/config"
	"sms-backoffice/internal/dedupe"
	"sms-backoffice/internal/dlr"
	"sms-backoffice/internal/message"
	"sms-backoffice/internal/pipeline"
	"sms-backoffice/pkg/logger"
	"sms-backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	guard, err := dedupe.NewRedisGuard(rdb, cfg.Dedup.TTL)
	if err != nil {
		log.Error("dedup guard init failed", "err", err)
		os.Exit(1)
	}

	messages := message.NewPostgresStore(db)
	campaigns := campaign.NewPostgresStore(db)
	anomalies := anomaly.NewService(anomaly.NewPostgresRepo(db))

	var collaborator campaign.BillingCollaborator
	if cfg.Billing.BaseURL != "" {
		collaborator = billing.NewSippyClient(cfg.Billing, log)
	} else {
		collaborator = billing.Nop{Logger: log}
	}

	reports := pipeline.NewService(
		dlr.NewNormalizer(),
		guard,
		message.NewMachine(messages),
		campaign.NewReconciler(campaigns, anomalies, log),
		campaign.NewDetector(messages, campaigns, collaborator, anomalies, log),
		anomalies,
		log,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:      authManager,
		pipeline:  reports,
		campaigns: campaigns,
		messages:  messages,
		anomalies: anomalies,
		db:        db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
