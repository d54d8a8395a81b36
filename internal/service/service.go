package service

import (
	"context"
	"time"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/repository"
)

// Methods ending in Within join the caller's unit of work instead of opening their own.

type PlacementService interface {
	PlaceUser(ctx context.Context, userID int64, sponsorID *int64) (*domain.Placement, error)
	PlaceWithin(ctx context.Context, repos repository.Repositories, userID int64, sponsorID *int64) (*domain.Placement, error)
	RebuildHierarchy(ctx context.Context) (int64, error)
	VerifyHierarchy(ctx context.Context, userID int64) error
}

type EligibilityService interface {
	IsRepurchaseEligible(ctx context.Context, userID int64) (bool, error)
	EvaluateWithin(ctx context.Context, repos repository.Repositories, userID int64) (bool, error)
	RefreshAll(ctx context.Context) (*domain.EligibilityRefresh, error)
}

type SelfIncomeService interface {
	ScheduleWithin(ctx context.Context, repos repository.Repositories, req domain.SelfIncomeRequest) ([]domain.SelfPayoutSchedule, error)
	RunDuePayouts(ctx context.Context, now time.Time) (*domain.PayoutRun, error)
}

type TeamService interface {
	OnJoiningCompleted(ctx context.Context, userID int64) (*domain.TeamProgress, error)
	OnJoiningWithin(ctx context.Context, repos repository.Repositories, userID int64) (*domain.TeamProgress, error)
}

type CommissionService interface {
	DistributeCommission(ctx context.Context, in domain.CommissionInput) (*domain.CommissionResult, error)
}

type OrderService interface {
	OnOrderPaid(ctx context.Context, event domain.OrderPaidEvent) (*domain.CommissionResult, error)
}

type PoolService interface {
	DistributePool(ctx context.Context, adminID int64) (*domain.PoolDistribution, error)
	Summary(ctx context.Context) (*domain.PoolSummary, error)
}

type LedgerService interface {
	ListEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, int64, error)
	GetWallet(ctx context.Context, userID int64, at *time.Time) (*domain.WalletSummary, error)
	ReverseEntry(ctx context.Context, entryID, actorID int64, reason string) (*domain.LedgerEntry, error)
	ReconcileWallets(ctx context.Context) ([]domain.WalletMismatch, error)
	OrderSettlement(ctx context.Context, orderID int64) (*domain.OrderSettlement, error)
	ResetMonthlyPurchases(ctx context.Context) (int64, error)
}

// Services is the wired engine. Transports and jobs only talk to these.
type Services struct {
	Placement   PlacementService
	Eligibility EligibilityService
	SelfIncome  SelfIncomeService
	Team        TeamService
	Commission  CommissionService
	Order       OrderService
	Pool        PoolService
	Ledger      LedgerService
}

// NewServices builds every service over uow using the active commission plan in cfg.
func NewServices(uow repository.UnitOfWork, cfg *config.Config) (*Services, error) {
	plan, err := NewCommissionPlan(cfg.Commission)
	if err != nil {
		return nil, err
	}

	placement := NewPlacementService(uow, cfg.Matrix)
	eligibility := NewEligibilityService(uow)
	selfIncome := NewSelfIncomeService(uow, cfg.SelfIncome)
	team := NewTeamService(uow, cfg.Team)
	commission := NewCommissionService(uow, plan, placement, eligibility, selfIncome, team)

	return &Services{
		Placement:   placement,
		Eligibility: eligibility,
		SelfIncome:  selfIncome,
		Team:        team,
		Commission:  commission,
		Order:       NewOrderService(commission, cfg.Retry),
		Pool:        NewPoolService(uow, cfg.Pool),
		Ledger:      NewLedgerService(uow),
	}, nil
}
