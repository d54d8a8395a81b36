package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
	"matrix-commission-backend/internal/utils"
)

type poolService struct {
	uow repository.UnitOfWork
	cfg config.PoolConfig
}

func NewPoolService(uow repository.UnitOfWork, cfg config.PoolConfig) PoolService {
	return &poolService{uow: uow, cfg: cfg}
}

// DistributePool pays the undistributed pool out by level. Each level's share is split
// equally between the active users at that level; flooring dust and the shares of
// empty levels stay in the pool for the next run.
func (s *poolService) DistributePool(ctx context.Context, adminID int64) (*domain.PoolDistribution, error) {
	const op = "DistributePool"
	logger.EnterMethod("poolService.DistributePool", "admin_id", adminID)

	if adminID <= 0 {
		return nil, domain.Validation(op, "admin id is required")
	}

	var dist *domain.PoolDistribution
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ok, err := repos.Locks().TryAdvisoryXactLock(ctx, repository.LockPoolDistribution)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict(op, fmt.Errorf("another pool distribution is running"))
		}

		pool, err := repos.Pool().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if pool.Undistributed <= 0 {
			return domain.Validation(op, "turnover pool is empty")
		}

		dist = &domain.PoolDistribution{
			ID:          uuid.NewString(),
			AdminID:     adminID,
			TotalAmount: pool.Undistributed,
		}
		ref := domain.PoolRef(dist.ID)

		for i, bps := range s.cfg.LevelBps {
			level := i + 1
			users, err := repos.Users().ListActiveByLevel(ctx, level)
			if err != nil {
				return err
			}

			share := domain.PoolLevelShare{
				Level:     level,
				Bps:       bps,
				UserCount: len(users),
				Share:     utils.ApplyBps(pool.Undistributed, bps),
			}
			if share.UserCount > 0 {
				share.PerUser = share.Share / int64(share.UserCount)
			}

			if share.PerUser > 0 {
				for _, userID := range users {
					entry := &domain.LedgerEntry{
						UserID:     domain.Int64Ptr(userID),
						Type:       domain.EntryTypePoolDistribution,
						Amount:     share.PerUser,
						LevelDepth: domain.IntPtr(level),
						Ref:        ref,
					}
					if err := repos.Ledger().Post(ctx, entry); err != nil {
						return err
					}
					dist.Payouts = append(dist.Payouts, domain.PoolPayout{
						UserID:  userID,
						Level:   level,
						Amount:  share.PerUser,
						EntryID: entry.ID,
					})
					share.Distributed += share.PerUser
				}
			}
			dist.DistributedAmount += share.Distributed
			dist.Levels = append(dist.Levels, share)
		}

		dist.CarriedAmount = dist.TotalAmount - dist.DistributedAmount
		if dist.CarriedAmount < 0 {
			logger.Invariant("Pool distribution exceeds pool", "total", dist.TotalAmount, "distributed", dist.DistributedAmount)
			return domain.Structural(op, "distributed %d of %d", dist.DistributedAmount, dist.TotalAmount)
		}

		if dist.DistributedAmount > 0 {
			if err := repos.Pool().Subtract(ctx, dist.DistributedAmount); err != nil {
				return err
			}
		}
		return repos.Pool().SaveDistribution(ctx, dist)
	})
	if err != nil {
		logger.ExitMethodWithError("poolService.DistributePool", err, "admin_id", adminID)
		return nil, err
	}

	logger.Info("Turnover pool distributed",
		"distribution_id", dist.ID,
		"admin_id", adminID,
		"total", dist.TotalAmount,
		"distributed", dist.DistributedAmount,
		"carried", dist.CarriedAmount,
		"beneficiaries", len(dist.Payouts))
	return dist, nil
}

func (s *poolService) Summary(ctx context.Context) (*domain.PoolSummary, error) {
	repos := s.uow.Reader()
	pool, err := repos.Pool().Get(ctx)
	if err != nil {
		return nil, err
	}
	summary := &domain.PoolSummary{Undistributed: pool.Undistributed}

	last, err := repos.Pool().LastDistribution(ctx)
	switch {
	case err == nil:
		summary.LastDistribution = last
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return summary, nil
}
