package service

import (
	"context"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
)

// qualifyingDirects is the 3-3 rule: three direct referrals, each with three of their own.
const qualifyingDirects = 3

type eligibilityService struct {
	uow repository.UnitOfWork
}

func NewEligibilityService(uow repository.UnitOfWork) EligibilityService {
	return &eligibilityService{uow: uow}
}

func (s *eligibilityService) IsRepurchaseEligible(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, domain.Validation("IsRepurchaseEligible", "user id is required")
	}
	var eligible bool
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		var err error
		eligible, err = s.EvaluateWithin(ctx, repos, userID)
		return err
	})
	return eligible, err
}

// EvaluateWithin recomputes the rule from the referral tree and refreshes the cached flag.
func (s *eligibilityService) EvaluateWithin(ctx context.Context, repos repository.Repositories, userID int64) (bool, error) {
	eligible, err := evaluate(ctx, repos, userID)
	if err != nil {
		return false, err
	}
	if err := repos.Users().SetEligibility(ctx, userID, eligible); err != nil {
		return false, err
	}
	return eligible, nil
}

func evaluate(ctx context.Context, repos repository.Repositories, userID int64) (bool, error) {
	directs, err := repos.Users().ListDirectReferrals(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(directs) < qualifyingDirects {
		return false, nil
	}

	counts, err := repos.Users().CountDirectReferrals(ctx, directs)
	if err != nil {
		return false, err
	}
	qualifying := 0
	for _, id := range directs {
		if counts[id] >= qualifyingDirects {
			qualifying++
			if qualifying == qualifyingDirects {
				return true, nil
			}
		}
	}
	return false, nil
}

// RefreshAll recomputes the cached flag for every active user, one transaction per user.
func (s *eligibilityService) RefreshAll(ctx context.Context) (*domain.EligibilityRefresh, error) {
	ids, err := s.uow.Reader().Users().ListActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.EligibilityRefresh{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		eligible, err := s.IsRepurchaseEligible(ctx, id)
		if err != nil {
			logger.Error("Failed to refresh eligibility", "user_id", id, "error", err)
			continue
		}
		result.Evaluated++
		if eligible {
			result.Eligible++
		}
	}
	logger.Info("Eligibility refreshed", "evaluated", result.Evaluated, "eligible", result.Eligible)
	return result, nil
}
