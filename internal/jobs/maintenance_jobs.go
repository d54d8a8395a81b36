package jobs

import (
	"context"
	"fmt"

	"matrix-commission-backend/internal/logger"
)

// RefreshEligibility recomputes the cached repurchase eligibility of every active user
func (jr *JobRunner) RefreshEligibility() error {
	return jr.runWithRecovery("RefreshEligibility", func(ctx context.Context) error {
		res, err := jr.services.Eligibility.RefreshAll(ctx)
		if err != nil {
			return err
		}
		logger.Info("Eligibility cache refreshed", "evaluated", res.Evaluated, "eligible", res.Eligible)
		return nil
	})
}

// ReconcileWallets compares cached wallet balances with ledger sums. Mismatches fail the job.
func (jr *JobRunner) ReconcileWallets() error {
	return jr.runWithRecovery("ReconcileWallets", func(ctx context.Context) error {
		mismatches, err := jr.services.Ledger.ReconcileWallets(ctx)
		if err != nil {
			return err
		}
		if len(mismatches) > 0 {
			return fmt.Errorf("%d wallet balances differ from the ledger", len(mismatches))
		}
		return nil
	})
}

// ResetMonthlyPurchases zeroes every user's monthly purchase total
func (jr *JobRunner) ResetMonthlyPurchases() error {
	return jr.runWithRecovery("ResetMonthlyPurchases", func(ctx context.Context) error {
		n, err := jr.services.Ledger.ResetMonthlyPurchases(ctx)
		if err != nil {
			return err
		}
		logger.Info("Monthly purchase totals reset", "users", n)
		return nil
	})
}

// RebuildHierarchy restores closure rows missing for any matrix node
func (jr *JobRunner) RebuildHierarchy() error {
	return jr.runWithRecovery("RebuildHierarchy", func(ctx context.Context) error {
		n, err := jr.services.Placement.RebuildHierarchy(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Warn("Closure rows were missing and have been restored", "rows", n)
		}
		return nil
	})
}
