package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/repository"
)

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) OnOrderPaid(ctx context.Context, event domain.OrderPaidEvent) (*domain.CommissionResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommissionResult), args.Error(1)
}

type MockLedgerService struct{ mock.Mock }

func (m *MockLedgerService) ListEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) GetWallet(ctx context.Context, userID int64, at *time.Time) (*domain.WalletSummary, error) {
	args := m.Called(ctx, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletSummary), args.Error(1)
}

func (m *MockLedgerService) ReverseEntry(ctx context.Context, entryID, actorID int64, reason string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, entryID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) ReconcileWallets(ctx context.Context) ([]domain.WalletMismatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WalletMismatch), args.Error(1)
}

func (m *MockLedgerService) OrderSettlement(ctx context.Context, orderID int64) (*domain.OrderSettlement, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderSettlement), args.Error(1)
}

func (m *MockLedgerService) ResetMonthlyPurchases(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockPoolService struct{ mock.Mock }

func (m *MockPoolService) DistributePool(ctx context.Context, adminID int64) (*domain.PoolDistribution, error) {
	args := m.Called(ctx, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolDistribution), args.Error(1)
}

func (m *MockPoolService) Summary(ctx context.Context) (*domain.PoolSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolSummary), args.Error(1)
}

type MockEligibilityService struct{ mock.Mock }

func (m *MockEligibilityService) IsRepurchaseEligible(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEligibilityService) EvaluateWithin(ctx context.Context, repos repository.Repositories, userID int64) (bool, error) {
	args := m.Called(ctx, repos, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEligibilityService) RefreshAll(ctx context.Context) (*domain.EligibilityRefresh, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibilityRefresh), args.Error(1)
}

type MockPlacementService struct{ mock.Mock }

func (m *MockPlacementService) PlaceUser(ctx context.Context, userID int64, sponsorID *int64) (*domain.Placement, error) {
	args := m.Called(ctx, userID, sponsorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Placement), args.Error(1)
}

func (m *MockPlacementService) PlaceWithin(ctx context.Context, repos repository.Repositories, userID int64, sponsorID *int64) (*domain.Placement, error) {
	args := m.Called(ctx, repos, userID, sponsorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Placement), args.Error(1)
}

func (m *MockPlacementService) RebuildHierarchy(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlacementService) VerifyHierarchy(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}
