package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/vpportal/vpportal/backend/internal/utils/email"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/logger"
	"github.com/vpportal/vpportal/shared/monitoring"
)

func main() {
	var (
		configFolder string
		workers      int
	)
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.IntVar(&workers, "workers", 4, "concurrent smtp sends")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.Warn("failed to load .env", "error", err)
	}

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)
	log := logger.Component("mailer")

	reporter := monitoring.New(cfg.Private.SentryDSN, "")
	defer reporter.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := amqp.Dial(cfg.Private.AmqpURL)
	if err != nil {
		log.Error("failed to connect to amqp", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("failed to open amqp channel", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	queue := cfg.Public.Mail.Queue
	if err := email.DeclareQueue(ch, queue); err != nil {
		log.Error("failed to declare queue", "error", err)
		os.Exit(1)
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		log.Error("failed to set prefetch", "error", err)
		os.Exit(1)
	}

	deliveries, err := ch.Consume(queue, "vpportal-mailer", false, false, false, false, nil)
	if err != nil {
		log.Error("failed to start consumer", "queue", queue, "error", err)
		os.Exit(1)
	}

	smtp := email.New(&cfg.Private.Email, cfg.Public.Mail.SenderName)
	log.Info("mailer started", "queue", queue, "workers", workers)
	email.Consume(ctx, deliveries, smtp, workers, func(err error) {
		reporter.CaptureError("mailer", err)
	})
	log.Info("mailer stopped")
}
