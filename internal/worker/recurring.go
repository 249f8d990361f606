// Package worker holds the background loops that run outside the request
// path.
package worker

import (
	"context"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// DueNotifier receives one event per obligation due today.
type DueNotifier interface {
	RecurringDue(ctx context.Context, key core.MonthKey, o core.RecurringObligation)
}

// Recurring polls the current month's partition and publishes a reminder for
// every obligation due on the current day. Dueness itself is decided by the
// scheduler, so a reminder fires at most once per obligation per month no
// matter how often the loop runs.
type Recurring struct {
	scheduler *services.RecurringScheduler
	notifier  DueNotifier
	clock     core.Clock
	interval  time.Duration
	logger    *log.Logger
}

func NewRecurring(scheduler *services.RecurringScheduler, notifier DueNotifier, clock core.Clock, interval time.Duration, logger *log.Logger) *Recurring {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Recurring{
		scheduler: scheduler,
		notifier:  notifier,
		clock:     clock,
		interval:  interval,
		logger:    logger,
	}
}

// Run checks once immediately and then on every tick until the context ends.
func (w *Recurring) Run(ctx context.Context) {
	w.CheckDue(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.CheckDue(ctx)
		}
	}
}

// CheckDue performs a single due sweep. Failures only log; the next tick
// retries.
func (w *Recurring) CheckDue(ctx context.Context) {
	now := w.clock.Now()
	key := core.MonthKey{Year: now.Year(), Month: int(now.Month())}

	due, err := w.scheduler.DueToday(ctx, key)
	if err != nil {
		w.logger.Warn("due check failed",
			log.FieldPartition, key.String(),
			log.FieldError, err.Error(),
		)
		return
	}
	for _, o := range due {
		w.notifier.RecurringDue(ctx, key, o)
		w.logger.Info("obligation due",
			log.FieldPartition, key.String(),
			log.FieldObligation, o.Name,
			log.FieldAmount, o.Amount.String(),
		)
	}
}
