package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
)

type ledgerService struct {
	uow repository.UnitOfWork
}

func NewLedgerService(uow repository.UnitOfWork) LedgerService {
	return &ledgerService{uow: uow}
}

func (s *ledgerService) ListEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, domain.Validation("ListEntries", "to is before from")
	}
	return s.uow.Reader().Ledger().List(ctx, filter)
}

// GetWallet returns the cached balance, the amount free for withdrawal and,
// when at is set, the balance reconstructed from the ledger at that instant.
func (s *ledgerService) GetWallet(ctx context.Context, userID int64, at *time.Time) (*domain.WalletSummary, error) {
	repos := s.uow.Reader()
	user, err := repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := repos.Withdrawals().SumPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &domain.WalletSummary{
		UserID:             userID,
		Balance:            user.WalletBalance,
		PendingWithdrawals: pending,
		Withdrawable:       max(0, user.WalletBalance-pending),
	}
	if at != nil {
		historical, err := repos.Ledger().BalanceAt(ctx, userID, *at)
		if err != nil {
			return nil, err
		}
		summary.AsOf = at
		summary.HistoricalBalance = &historical
	}
	return summary, nil
}

// ReverseEntry posts the negation of an entry. The original is never touched.
func (s *ledgerService) ReverseEntry(ctx context.Context, entryID, actorID int64, reason string) (*domain.LedgerEntry, error) {
	const op = "ReverseEntry"
	reason = strings.TrimSpace(reason)
	switch {
	case entryID <= 0:
		return nil, domain.Validation(op, "entry id is required")
	case actorID <= 0:
		return nil, domain.Validation(op, "actor id is required")
	case reason == "":
		return nil, domain.Validation(op, "reason is required")
	}

	var reversal *domain.LedgerEntry
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		original, err := repos.Ledger().GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		if original.Type == domain.EntryTypeReversal {
			return domain.Validation(op, "entry %d is itself a reversal", entryID)
		}

		ref := domain.ReversalRef(entryID)
		exists, err := repos.Ledger().ExistsByRef(ctx, ref)
		if err != nil {
			return err
		}
		if exists {
			return domain.AlreadyProcessed(op, "entry %d already reversed", entryID)
		}

		if err := syncPoolOnReversal(ctx, repos, original); err != nil {
			return err
		}

		reversal = &domain.LedgerEntry{
			UserID:     original.UserID,
			Type:       domain.EntryTypeReversal,
			Amount:     -original.Amount,
			LevelDepth: original.LevelDepth,
			Ref:        ref,
			Note:       fmt.Sprintf("by %d: %s", actorID, reason),
		}
		return repos.Ledger().Post(ctx, reversal)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Ledger entry reversed", "entry_id", entryID, "reversal_id", reversal.ID, "actor_id", actorID)
	return reversal, nil
}

// syncPoolOnReversal keeps turnover_pool equal to contributions minus distributions.
// A contribution that has already been paid out cannot be reversed.
func syncPoolOnReversal(ctx context.Context, repos repository.Repositories, original *domain.LedgerEntry) error {
	switch original.Type {
	case domain.EntryTypePoolContribution:
		pool, err := repos.Pool().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if pool.Undistributed < original.Amount {
			return domain.Validation("ReverseEntry", "pool holds %d, contribution %d of %d was already distributed",
				pool.Undistributed, original.ID, original.Amount)
		}
		return repos.Pool().Subtract(ctx, original.Amount)
	case domain.EntryTypePoolDistribution:
		return repos.Pool().Add(ctx, original.Amount)
	}
	return nil
}

// OrderSettlement checks that a paid order's commission is fully accounted for by
// ledger postings plus still-scheduled installments.
func (s *ledgerService) OrderSettlement(ctx context.Context, orderID int64) (*domain.OrderSettlement, error) {
	const op = "OrderSettlement"
	if orderID <= 0 {
		return nil, domain.Validation(op, "order id is required")
	}

	repos := s.uow.Reader()
	order, err := repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaidAt == nil {
		return nil, domain.Validation(op, "order %d is not paid", orderID)
	}

	posted, err := repos.Ledger().SumByRef(ctx, domain.OrderRef(orderID))
	if err != nil {
		return nil, err
	}
	schedule, err := repos.Schedules().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	settlement := &domain.OrderSettlement{
		OrderID:    orderID,
		Commission: order.CommissionAmount,
		Posted:     posted,
		Schedule:   schedule,
	}
	for _, row := range schedule {
		if row.Status == domain.PayoutStatusScheduled {
			settlement.Deferred += row.Amount
		}
	}
	settlement.Unaccounted = settlement.Commission - settlement.Posted - settlement.Deferred
	if settlement.Unaccounted != 0 {
		logger.Warn("Order settlement does not balance", "order_id", orderID, "unaccounted", settlement.Unaccounted)
	}
	return settlement, nil
}

// ReconcileWallets reports users whose cached balance drifted from the ledger. It never corrects.
func (s *ledgerService) ReconcileWallets(ctx context.Context) ([]domain.WalletMismatch, error) {
	mismatches, err := s.uow.Reader().Ledger().ListWalletMismatches(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range mismatches {
		logger.Invariant("Wallet balance differs from ledger",
			"user_id", m.UserID, "wallet_balance", m.WalletBalance, "ledger_balance", m.LedgerBalance)
	}
	logger.Info("Wallet reconciliation completed", "mismatches", len(mismatches))
	return mismatches, nil
}

func (s *ledgerService) ResetMonthlyPurchases(ctx context.Context) (int64, error) {
	var n int64
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		n, err = repos.Users().ResetMonthlyPurchases(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Info("Monthly purchases reset", "users", n)
	return n, nil
}
