package main

import (
	"context"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/mailer/gmail"
	"budgetbuddy/internal/worker"
)

// notify-worker consumes queued notifications and sends them through Gmail.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "notify-worker needs a broker", errMissing("AMQP_URL"))
	}
	if !cfg.MailEnabled() {
		cli.Fatal(logger, "notify-worker needs a mail sender", errMissing("GMAIL_SENDER"))
	}

	mailer, err := gmail.New(context.Background(), backend.MailConfig(cfg))
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Gmail client", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to connect to AMQP", err, "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close failed", log.FieldError, err)
		}
	})

	logger.Info("Starting notify-worker", "queue", cfg.AMQPQueue, "sender", cfg.GmailSender)

	w := worker.NewNotifyWorker(mailer, logger)
	if err := w.Run(ctx, client); err != nil {
		cli.Fatal(logger, "Notify worker stopped with error", err)
	}
	cli.WaitForShutdown(ctx, done)
}

type errMissing string

func (e errMissing) Error() string { return string(e) + " is not set" }
