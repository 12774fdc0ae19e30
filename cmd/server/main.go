package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/ezyvet-etl/internal/config"
	"github.com/jwalitptl/ezyvet-etl/internal/ezyvet"
	"github.com/jwalitptl/ezyvet-etl/internal/handler"
	synchandler "github.com/jwalitptl/ezyvet-etl/internal/handler/sync"
	"github.com/jwalitptl/ezyvet-etl/internal/repository/postgres"
	"github.com/jwalitptl/ezyvet-etl/internal/router"
	appointmentService "github.com/jwalitptl/ezyvet-etl/internal/service/appointment"
	"github.com/jwalitptl/ezyvet-etl/pkg/logger"
	"github.com/jwalitptl/ezyvet-etl/pkg/messaging"
	redisbroker "github.com/jwalitptl/ezyvet-etl/pkg/messaging/redis"
	"github.com/jwalitptl/ezyvet-etl/pkg/metrics"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		Schema:   cfg.Database.Schema,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("ezyvet", "etl")

	credRepo := postgres.NewCredentialRepository(db, cfg.Database.Schema)
	apptRepo := postgres.NewAppointmentRepository(db, cfg.Database.Schema)

	issuer := ezyvet.NewOAuthTokenIssuer(cfg.EzyVet.BaseURL, cfg.EzyVet.Scope, nil)
	client := ezyvet.NewClient(ezyvet.Config{
		BaseURL:             cfg.EzyVet.BaseURL,
		RetrySleep:          cfg.EzyVet.RetrySleep,
		TokenCacheTTL:       cfg.EzyVet.TokenCacheTTL,
		TranslationCacheTTL: cfg.EzyVet.TranslationCacheTTL,
		RateLimit:           rate.Limit(cfg.EzyVet.RateLimit),
		RateBurst:           cfg.EzyVet.RateBurst,
	}, credRepo, issuer, appLogger, m)

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		zl := log.With().Str("component", "redis-broker").Logger()
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	syncSvc := appointmentService.NewService(client, apptRepo, broker, cfg, appLogger, m)

	h := handler.NewHandler(db)
	syncH := synchandler.NewHandler(syncSvc)
	r := router.NewRouter(h, syncH, "ezyvet_etl")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
