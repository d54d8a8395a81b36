package jobs

import (
	"context"

	"matrix-commission-backend/internal/logger"
)

// RunDueSelfIncomePayouts pays every self income installment due now
func (jr *JobRunner) RunDueSelfIncomePayouts() error {
	return jr.runWithRecovery("RunDueSelfIncomePayouts", func(ctx context.Context) error {
		run, err := jr.services.SelfIncome.RunDuePayouts(ctx, jr.now().UTC())
		if err != nil {
			return err
		}
		if run.Skipped {
			logger.Warn("Another payout sweep holds the lock")
			return nil
		}
		logger.Info("Self income installments paid", "paid", run.Paid, "amount", run.Amount, "batches", run.Batches)
		return nil
	})
}

// DistributePool pays out the turnover pool on behalf of adminID
func (jr *JobRunner) DistributePool(adminID int64) error {
	return jr.runWithRecovery("DistributePool", func(ctx context.Context) error {
		dist, err := jr.services.Pool.DistributePool(ctx, adminID)
		if err != nil {
			return err
		}
		logger.Info("Pool distribution recorded",
			"distribution_id", dist.ID,
			"distributed", dist.DistributedAmount,
			"carried", dist.CarriedAmount)
		return nil
	})
}
