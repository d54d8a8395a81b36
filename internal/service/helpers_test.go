package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/service"
)

var paidAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestServices(t *testing.T, mutate ...func(*config.Config)) (*memStore, *service.Services) {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Retry.BackoffMS = 1
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.ValidateEngine())

	store := newMemStore()
	svcs, err := service.NewServices(store, cfg)
	require.NoError(t, err)
	return store, svcs
}

func paidEvent(eventID string, orderID, userID, commission int64) domain.OrderPaidEvent {
	return domain.OrderPaidEvent{
		EventID:          eventID,
		OrderID:          orderID,
		UserID:           userID,
		CommissionAmount: commission,
		PaidAt:           paidAt,
	}
}
