package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99minutos/admin-backend/internal/api"
	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/service"
	mongostore "github.com/99minutos/admin-backend/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/admin-backend/internal/infrastructure/db/redis"
	"github.com/99minutos/admin-backend/internal/pkg/config"
	"github.com/99minutos/admin-backend/pkg/logger"
)

const (
	serviceName     = "admin-backend"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		AppName:     serviceName,
		MaxPoolSize: cfg.Mongo.PoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo unavailable")
	}
	defer func() {
		if err := mongostore.Disconnect(client, shutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer rdb.Close()

	if err := mongostore.NewIdentityRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("identity indexes not created")
	}
	err = service.SeedSettings(ctx, mongostore.NewSettingsRepository(db), map[string]string{
		domain.SettingProjectName: cfg.Admin.ProjectName,
		domain.SettingCloudToken:  cfg.Admin.CloudToken,
	}, logger.Component("settings"))
	if err != nil {
		log.Fatal().Err(err).Msg("settings not seeded")
	}

	e, err := api.NewRouter(ctx, cfg, db, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("router not built")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("admin backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("listen failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}
