package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"otp_auth/internal/auth"
	"otp_auth/internal/config"
	"otp_auth/internal/handler"
	"otp_auth/internal/notify"
	"otp_auth/internal/service"
	"otp_auth/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting otp auth service", slog.String("env", cfg.Env), slog.String("db_driver", cfg.DB.Driver))

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//INIT DB
	st, err := openStorage(ctx, cfg.DB)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	//INIT SERVICES
	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		lgr.Error("failed to init token manager", slog.Any("error", err))
		os.Exit(1)
	}

	notifier := notify.NewLogNotifier(lgr, cfg.Auth.PasscodeTTL)
	srvc := service.NewService(service.Config{PasscodeTTL: cfg.Auth.PasscodeTTL}, st, tokens, notifier, lgr)

	housekeeper := service.NewHousekeeper(st, lgr, cfg.Housekeeping.Interval, cfg.Housekeeping.Retention)
	housekeeper.Start()
	defer housekeeper.Stop()

	//INIT SERVER
	limiter := handler.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	h := handler.NewHandler(srvc, limiter, lgr)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			lgr.Error("http server failed", slog.Any("error", err))
		}
	}

	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("failed to shut down http server", slog.Any("error", err))
	}
}

func openStorage(ctx context.Context, cfg config.DB) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return storage.NewPostgresStorage(ctx, cfg.DbURL)
	default:
		return storage.NewSQLiteStorage(ctx, cfg.SQLitePath)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
