package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/queue"

	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume queued messages",
	Long:  "Consume queued messages from Redis streams.",
}

// init registers consume subcommands.
func init() {
	consumeCmd.AddCommand(consumeWebhooksCmd)
	rootCmd.AddCommand(consumeCmd)
}

var consumeWebhooksCmd = &cobra.Command{
	Use:   "webhooks [consumer_name]",
	Short: "Start the inbound webhook consumer",
	Long:  "Start a worker that reads queued provider webhooks from the Redis stream and reconciles them.",
	Args:  cobra.ExactArgs(1),
	Run:   runConsumeWebhooks,
}

// runConsumeWebhooks starts the webhook queue consumer worker.
func runConsumeWebhooks(_ *cobra.Command, args []string) {
	consumerName := args[0]

	deps := loadDependencies()
	defer deps.Close()

	consumer := queue.NewWebhookConsumer(deps.rdb, deps.webhookService, consumerName, deps.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		deps.logger.Info("Received shutdown signal, stopping consumer...")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil {
		deps.logger.WithError(err).Fatal("Consumer error")
	}

	deps.logger.Info("Consumer stopped")
}
