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

	"github.com/gin-gonic/gin"

	"kpi-service/internal/auth"
	"kpi-service/internal/config"
	"kpi-service/internal/db"
	httphandler "kpi-service/internal/http"
	"kpi-service/internal/http/middleware"
	"kpi-service/internal/kpi"
	"kpi-service/internal/logger"
	"kpi-service/internal/metrics"
	"kpi-service/internal/producer"
	"kpi-service/internal/repository"
	"kpi-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			appLogger.Error().Err(err).Msg("failed to close database")
		}
	}()

	metrics.Register()

	eventRepo := repository.NewEventRepository(database)
	kpiService := service.NewKPIService(eventRepo, service.Windows{
		Realtime:    cfg.KPI.RealtimeWindow,
		Utilization: cfg.KPI.UtilizationWindow,
		Trend:       cfg.KPI.TrendWindow,
		History:     cfg.KPI.HistoryWindow,
		Surge:       cfg.KPI.SurgeWindow,
	}, kpi.Params{
		TopZonesLimit:          cfg.KPI.TopZonesLimit,
		RepositionGapThreshold: cfg.KPI.RepositionGapThreshold,
		IdleDwellSeconds:       cfg.KPI.IdleDwellSeconds,
		IdleMovementMeters:     cfg.KPI.IdleMovementMeters,
		ActiveSpeedMps:         cfg.KPI.ActiveSpeedMps,
	}, time.Now)

	var authMiddleware gin.HandlerFunc
	if cfg.Auth.AccessSecret != "" {
		authMiddleware = middleware.Auth(auth.NewParser(cfg.Auth.AccessSecret))
	} else {
		appLogger.Warn().Msg("JWT_ACCESS_SECRET not set, KPI routes are unauthenticated")
	}

	handler := httphandler.NewHandler(kpiService, appLogger)
	router := httphandler.NewRouter(handler, authMiddleware, eventRepo, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producerDone := make(chan struct{})
	if cfg.Producer.Enabled {
		go func() {
			defer close(producerDone)
			if err := producer.New(eventRepo, cfg.Producer, appLogger, time.Now).Run(ctx); err != nil {
				appLogger.Error().Err(err).Msg("producer stopped")
			}
		}()
	} else {
		close(producerDone)
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info().Str("addr", addr).Msg("starting kpi service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server shutdown failed")
	}
	<-producerDone
}
