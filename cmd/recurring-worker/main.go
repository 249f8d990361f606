// The recurring-worker periodically checks the current month's partition for
// obligations due today and publishes a reminder event for each one. It runs
// best against the sheets backend; with the memory backend it only sees
// partitions of its own process and is useful for smoke testing alone.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/partition"
	"finanzas/internal/services"
	"finanzas/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.NewComponent(log.ComponentWorker)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required, reminders go through the event bus")
		os.Exit(1)
	}

	clock := core.SystemClock{}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.NewStore(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("backend init failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log.NewComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("amqp connect failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer bus.Close()
	notifier := amqp.NewNotifier(bus, log.NewComponent(log.ComponentAMQP))

	resolver := partition.NewResolver(store, log.NewComponent(log.ComponentPartition))
	scheduler := services.NewRecurringScheduler(resolver, services.NewPartitionLocks(), clock, log.NewComponent(log.ComponentRecurring))

	logger.Info("recurring-worker started", "interval", cfg.RecurringCheckInterval.String())
	worker.NewRecurring(scheduler, notifier, clock, cfg.RecurringCheckInterval, logger).Run(ctx)
	logger.Info("recurring-worker stopped")
}
