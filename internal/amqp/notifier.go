package amqp

import (
	"context"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// Notifier adapts the event bus to the services layer. Every publish is fire
// and forget: a broker outage must never fail a bookkeeping operation.
type Notifier struct {
	client *Client
	logger *log.Logger
}

var _ services.Notifier = (*Notifier)(nil)

func NewNotifier(client *Client, logger *log.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

func (n *Notifier) publish(ctx context.Context, eventType string, payload any) {
	e, err := NewEvent(eventType, payload)
	if err == nil {
		err = n.client.Publish(ctx, e)
	}
	if err != nil {
		n.logger.Warn("event publish failed",
			log.FieldEvent, eventType,
			log.FieldError, err.Error(),
		)
	}
}

func (n *Notifier) TransactionRecorded(ctx context.Context, tx core.Transaction) {
	n.publish(ctx, EventTransactionRecorded, TransactionPayload{
		ID:        tx.ID,
		Kind:      string(tx.Kind),
		Partition: tx.Date.Key().String(),
		Date:      tx.Date.String(),
		Amount:    tx.AmountBase.String(),
		Category:  tx.Category,
		Concept:   tx.Concept,
		Reporter:  tx.Reporter,
	})
}

func (n *Notifier) BudgetAlert(ctx context.Context, key core.MonthKey, st core.BudgetStatus) {
	n.publish(ctx, EventBudgetAlert, BudgetAlertPayload{
		Partition: key.String(),
		Category:  st.Category,
		Spent:     st.Spent.String(),
		Limit:     st.Limit.String(),
		Pct:       st.Pct,
		Alert:     string(st.Alert),
	})
}

func (n *Notifier) SavingsMilestone(ctx context.Context, key core.MonthKey, goal string, u core.SavingsUpdate) {
	n.publish(ctx, EventSavingsMilestone, SavingsMilestonePayload{
		Partition: key.String(),
		Goal:      goal,
		Milestone: u.Milestone,
		NewTotal:  u.NewTotal.String(),
		NewPct:    u.NewPct,
	})
}

func (n *Notifier) AchievementUnlocked(ctx context.Context, identity string, a core.Achievement) {
	n.publish(ctx, EventAchievementUnlocked, AchievementPayload{
		Identity: identity,
		Code:     a.Code,
		Title:    a.Title,
		Points:   a.Points,
	})
}

// RecurringDue is published by the worker, not through services.Notifier.
func (n *Notifier) RecurringDue(ctx context.Context, key core.MonthKey, o core.RecurringObligation) {
	n.publish(ctx, EventRecurringDue, RecurringDuePayload{
		Partition: key.String(),
		Name:      o.Name,
		Amount:    o.Amount.String(),
		Day:       o.DayOfMonth,
	})
}
