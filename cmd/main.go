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

	"github.com/stocklab/stock-api/config"
	"github.com/stocklab/stock-api/data"
	"github.com/stocklab/stock-api/data/cache"
	"github.com/stocklab/stock-api/data/repository"
	"github.com/stocklab/stock-api/internal/externalApi/yahooApi"
	"github.com/stocklab/stock-api/internal/reportGenerator/xlsxGenerator"
	"github.com/stocklab/stock-api/internal/scheduler"
	"github.com/stocklab/stock-api/internal/service/ledgerService"
	"github.com/stocklab/stock-api/internal/service/marketService"
	"github.com/stocklab/stock-api/internal/transport/rest"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := repository.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	yahooApiClient := yahooApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	marketSrv := marketService.New(redisCache, yahooApiClient, pgRepo)
	ledgerSrv := ledgerService.New(pgRepo, marketSrv, reportGenerator)

	sched := scheduler.New()
	sched.NewIntervalJob("warm quote cache", marketSrv.WarmQuoteCache, cfg.Jobs.WarmQuoteCacheInterval, true)
	sched.Start()
	defer sched.Stop()

	controller := rest.NewController(ledgerSrv, marketSrv)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      rest.NewRouter(controller),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		slog.Info("http server started", slog.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
