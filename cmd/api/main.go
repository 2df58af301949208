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

	"blog_service/internal/auth"
	"blog_service/internal/blog"
	"blog_service/internal/config"
	"blog_service/internal/http_server/handlers/health"
	"blog_service/internal/http_server/router"
	"blog_service/internal/lib/hash"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/lib/validate"
	"blog_service/internal/lib/verification"
	mailSender "blog_service/internal/mail-sender"
	"blog_service/internal/middleware/metrics"
	"blog_service/internal/rabbitmq"
	"blog_service/internal/storage/memory"
	"blog_service/internal/storage/postgres"
	"blog_service/internal/storage/redis"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	auth.UserSaver
	auth.UserProvider
	auth.TokenStore
	blog.CategoryStorage
	blog.PostStorage
	Close()
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting blog service", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pingers := map[string]health.Pinger{}

	var storage store
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		storage = memory.New()
	default:
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Error("failed to connect postgres", sl.Err(err))
			os.Exit(1)
		}
		pingers["postgres"] = pg
		storage = pg
	}
	defer storage.Close()

	var opts []auth.Option

	if cfg.Redis.Addr != "" {
		cache, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		defer cache.Close()

		pingers["redis"] = cache
		opts = append(opts, auth.WithThrottle(cache))
	}

	var publisher verification.Publisher
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		publisher = mailSender.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	default:
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			log.Error("failed to connect rabbitmq", sl.Err(err))
			os.Exit(1)
		}
		defer msgBroker.Close()

		publisher = msgBroker
	}

	codec, err := jwt.New(cfg.Tokens.Secret)
	if err != nil {
		log.Error("failed to init token codec", sl.Err(err))
		os.Exit(1)
	}

	m := metrics.New()
	opts = append(opts, auth.WithRecorder(m))

	authService := auth.New(
		log,
		storage,
		storage,
		storage,
		codec,
		hash.New(cfg.Hash.Cost, cfg.Hash.MaxConcurrent),
		verification.New(publisher, cfg.Mail.VerificationURL, cfg.Mail.ResetPasswordURL),
		auth.TTLs{
			Access:       cfg.Tokens.AccessTokenTTL,
			Refresh:      cfg.Tokens.RefreshTokenTTL,
			Verification: cfg.Tokens.VerificationTokenTTL,
			Reset:        cfg.Tokens.ResetTokenTTL,
			Cooldown:     cfg.Redis.ResendCooldown,
		},
		opts...,
	)

	go authService.RunCleanup(ctx, cfg.Tokens.CleanupInterval)

	r := router.New(router.Deps{
		Log:        log,
		Validate:   validate.New(),
		Codec:      codec,
		Auth:       authService,
		Categories: blog.NewCategories(log, storage),
		Posts:      blog.NewPosts(log, storage),
		Metrics:    m,
		Health:     pingers,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      r,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	} else {
		log.Info("server stopped gracefully")
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
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
