package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog_service/internal/config"
	"blog_service/internal/lib/logger/sl"
	mailSender "blog_service/internal/mail-sender"
	"blog_service/internal/models"
	"blog_service/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// retryDelay holds a failed delivery back before it is requeued.
const retryDelay = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	log.Info("starting mail_sender", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer r.Close()

	m := mailSender.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := r.StartReading(ctx, func(ctx context.Context, msg models.Message) (bool, error) {
			log := log.With(slog.String("purpose", string(msg.Purpose)))

			if err := m.Send(msg); err != nil {
				log.Error("failed to send message", sl.Err(err))

				select {
				case <-ctx.Done():
				case <-time.After(retryDelay):
				}

				return true, err
			}

			log.Info("message sent successfully")

			return false, nil
		})
		if err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
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
