package service

import (
	"context"
	"errors"
	"time"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
)

type orderService struct {
	commission CommissionService
	retry      config.RetryConfig
}

func NewOrderService(commission CommissionService, retry config.RetryConfig) OrderService {
	return &orderService{commission: commission, retry: retry}
}

// OnOrderPaid is the idempotent entry point for the payment webhook. A replayed
// event is reported as a successful no-op so the gateway stops redelivering it.
func (s *orderService) OnOrderPaid(ctx context.Context, event domain.OrderPaidEvent) (*domain.CommissionResult, error) {
	log := logger.WithOperation("OnOrderPaid", "event_id", event.EventID, "order_id", event.OrderID)

	in := domain.CommissionInput{
		EventID:          event.EventID,
		OrderID:          event.OrderID,
		UserID:           event.UserID,
		CommissionAmount: event.CommissionAmount,
		IsJoiningOrder:   event.IsJoiningOrder,
		PaidAt:           event.PaidAt,
	}

	var result *domain.CommissionResult
	err := RetryOnConflict(ctx, s.retry.Attempts, time.Duration(s.retry.BackoffMS)*time.Millisecond, func(ctx context.Context) error {
		var err error
		result, err = s.commission.DistributeCommission(ctx, in)
		return err
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		log.Info("Payment event already processed")
		return &domain.CommissionResult{OrderID: event.OrderID, AlreadyProcessed: true}, nil
	case errors.Is(err, domain.ErrStructuralInvariant):
		logger.Invariant("Order processing halted", "event_id", event.EventID, "order_id", event.OrderID, "error", err)
	default:
		log.Error("Order processing failed", "error", err)
	}
	return nil, err
}

// RetryOnConflict runs fn up to attempts times while it fails with a concurrency
// conflict, sleeping backoff, 2*backoff, ... between tries.
func RetryOnConflict(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if !domain.IsRetryable(err) || attempt == attempts {
			return err
		}
		logger.Warn("Concurrency conflict, retrying", "attempt", attempt, "max_attempts", attempts, "error", err)

		wait := backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
