package service

import (
	"context"
	"time"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
	"matrix-commission-backend/internal/utils"
)

type selfIncomeService struct {
	uow repository.UnitOfWork
	cfg config.SelfIncomeConfig
}

func NewSelfIncomeService(uow repository.UnitOfWork, cfg config.SelfIncomeConfig) SelfIncomeService {
	return &selfIncomeService{uow: uow, cfg: cfg}
}

// ScheduleWithin splits the self pot into installments due one period apart,
// starting one period after payment. Zero-amount installments are not stored.
func (s *selfIncomeService) ScheduleWithin(ctx context.Context, repos repository.Repositories, req domain.SelfIncomeRequest) ([]domain.SelfPayoutSchedule, error) {
	if req.Installments == 0 {
		req.Installments = s.cfg.Installments
	}
	if req.PeriodDays == 0 {
		req.PeriodDays = s.cfg.PeriodDays
	}
	if req.UserID <= 0 || req.OrderID <= 0 {
		return nil, domain.Validation("ScheduleSelfIncome", "user and order ids are required")
	}
	if req.PeriodDays <= 0 {
		return nil, domain.Validation("ScheduleSelfIncome", "period must be positive, got %d days", req.PeriodDays)
	}

	shares, err := utils.SplitInstallments(req.Amount, req.Installments)
	if err != nil {
		return nil, domain.Validation("ScheduleSelfIncome", "%v", err)
	}
	due := utils.InstallmentDueDates(req.PaidAt, req.Installments, req.PeriodDays)

	rows := make([]domain.SelfPayoutSchedule, 0, len(shares))
	for i, amount := range shares {
		if amount == 0 {
			continue
		}
		rows = append(rows, domain.SelfPayoutSchedule{
			UserID:      req.UserID,
			OrderID:     req.OrderID,
			Installment: i + 1,
			Amount:      amount,
			DueAt:       due[i],
			Status:      domain.PayoutStatusScheduled,
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := repos.Schedules().CreateBatch(ctx, rows); err != nil {
		return nil, err
	}

	logger.Debug("Self income scheduled", "user_id", req.UserID, "order_id", req.OrderID,
		"amount", req.Amount, "installments", len(rows))
	return rows, nil
}

// RunDuePayouts pays every installment due at now. Each batch is its own transaction
// holding the sweep lock; a second concurrent sweep gives up instead of waiting.
func (s *selfIncomeService) RunDuePayouts(ctx context.Context, now time.Time) (*domain.PayoutRun, error) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	run := &domain.PayoutRun{}
	for {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		var found int
		err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			ok, err := repos.Locks().TryAdvisoryXactLock(ctx, repository.LockSelfIncomeSweep)
			if err != nil {
				return err
			}
			if !ok {
				run.Skipped = true
				return nil
			}

			due, err := repos.Schedules().ListDue(ctx, now, batchSize)
			if err != nil {
				return err
			}
			found = len(due)

			for i := range due {
				row := &due[i]
				paid, err := repos.Schedules().MarkPaid(ctx, row.ID, now)
				if err != nil {
					return err
				}
				if !paid {
					continue
				}
				entry := &domain.LedgerEntry{
					UserID: domain.Int64Ptr(row.UserID),
					Type:   domain.EntryTypeSelfIncome,
					Amount: row.Amount,
					Ref:    domain.OrderRef(row.OrderID),
				}
				if err := repos.Ledger().Post(ctx, entry); err != nil {
					return err
				}
				run.Paid++
				run.Amount += row.Amount
			}
			return nil
		})
		if err != nil {
			logger.Error("Self income batch failed", "batch", run.Batches+1, "error", err)
			return run, err
		}
		if run.Skipped {
			logger.Warn("Self income sweep already running, skipping")
			return run, nil
		}
		run.Batches++
		if found < batchSize {
			break
		}
	}

	logger.Info("Self income payouts completed", "paid", run.Paid, "amount", run.Amount, "batches", run.Batches)
	return run, nil
}
