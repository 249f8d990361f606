// The notify-worker consumes the event stream and renders each event as a
// human-readable notification line. In a full deployment these lines feed a
// chat delivery channel; standalone they serve as an audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finanzas/internal/amqp"
	"finanzas/internal/config"
	"finanzas/internal/log"
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
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log.NewComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("amqp connect failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notify-worker started", "queue", cfg.AMQPQueue)

	err = bus.Consume(ctx, func(e amqp.Event) error {
		line, err := render(e)
		if err != nil {
			return err
		}
		logger.Info(line, log.FieldEvent, e.Type)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer exited", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("notify-worker stopped")
}

func render(e amqp.Event) (string, error) {
	switch e.Type {
	case amqp.EventTransactionRecorded:
		var p amqp.TransactionPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		what := p.Concept
		if what == "" {
			what = p.Category
		}
		return fmt.Sprintf("✅ %s registró %s de $%s (%s)", p.Reporter, p.Kind, p.Amount, what), nil

	case amqp.EventBudgetAlert:
		var p amqp.BudgetAlertPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		icon := "🟡"
		if p.Alert == "red" {
			icon = "🔴"
		}
		return fmt.Sprintf("%s presupuesto %s al %.0f%%: $%s de $%s", icon, p.Category, p.Pct, p.Spent, p.Limit), nil

	case amqp.EventSavingsMilestone:
		var p amqp.SavingsMilestonePayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("🎉 meta %s alcanzó el %d%%: $%s ahorrados", p.Goal, p.Milestone, p.NewTotal), nil

	case amqp.EventAchievementUnlocked:
		var p amqp.AchievementPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("🏆 %s desbloqueó %q (+%d pts)", p.Identity, p.Title, p.Points), nil

	case amqp.EventRecurringDue:
		var p amqp.RecurringDuePayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("📅 hoy vence %s por $%s", p.Name, p.Amount), nil
	}
	return "", fmt.Errorf("unknown event type %q", e.Type)
}
