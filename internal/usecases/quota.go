package usecases

import (
	"context"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type PlanLookup interface {
	Get(ctx context.Context, id string) (*entities.Plan, error)
}

type MonthlyUsage interface {
	MonthSent(ctx context.Context, userID int) (int, error)
}

// MessageQuota enforces the monthly outbound message limit of each tenant's plan.
type MessageQuota struct {
	users UserLookup
	plans PlanLookup
	usage MonthlyUsage
}

func NewMessageQuota(users UserLookup, plans PlanLookup, usage MonthlyUsage) *MessageQuota {
	return &MessageQuota{users: users, plans: plans, usage: usage}
}

func (q *MessageQuota) Status(ctx context.Context, userID int) (*entities.QuotaStatus, error) {
	user, err := q.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	status := &entities.QuotaStatus{Plan: user.Plan, Remaining: -1}
	plan, err := q.plans.Get(ctx, user.Plan)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		status.Limit = plan.MessageLimit
	}

	sent, err := q.usage.MonthSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	status.Sent = sent
	if status.Limit > 0 {
		status.Remaining = max(status.Limit-sent, 0)
		status.Percent = min(sent*100/status.Limit, 100)
	}
	return status, nil
}

// Check returns ErrQuotaExceeded once this month's sends reach the plan limit.
func (q *MessageQuota) Check(ctx context.Context, userID int) error {
	status, err := q.Status(ctx, userID)
	if err != nil {
		return err
	}
	if status.Limit > 0 && status.Sent >= status.Limit {
		return ErrQuotaExceeded
	}
	return nil
}
