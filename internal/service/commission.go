package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
	"matrix-commission-backend/internal/utils"
)

type commissionService struct {
	uow         repository.UnitOfWork
	plan        CommissionPlan
	placement   PlacementService
	eligibility EligibilityService
	selfIncome  SelfIncomeService
	teams       TeamService
	now         func() time.Time
}

func NewCommissionService(
	uow repository.UnitOfWork,
	plan CommissionPlan,
	placement PlacementService,
	eligibility EligibilityService,
	selfIncome SelfIncomeService,
	teams TeamService,
) CommissionService {
	return &commissionService{
		uow:         uow,
		plan:        plan,
		placement:   placement,
		eligibility: eligibility,
		selfIncome:  selfIncome,
		teams:       teams,
		now:         time.Now,
	}
}

// DistributeCommission processes one paid order in a single transaction. Either every
// posting, schedule row and tree change for the order commits, or none does.
func (s *commissionService) DistributeCommission(ctx context.Context, in domain.CommissionInput) (*domain.CommissionResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = s.now().UTC()
	}

	var result *domain.CommissionResult
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		result, err = s.distributeWithin(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Commission distributed",
		"order_id", result.OrderID,
		"kind", result.Kind,
		"plan", s.plan.Name(),
		"commission", result.Commission,
		"postings", len(result.Postings),
		"installments", len(result.Schedule))
	return result, nil
}

func validateInput(in domain.CommissionInput) error {
	const op = "DistributeCommission"
	switch {
	case strings.TrimSpace(in.EventID) == "":
		return domain.Validation(op, "event id is required")
	case in.OrderID <= 0:
		return domain.Validation(op, "order id must be positive")
	case in.UserID <= 0:
		return domain.Validation(op, "user id must be positive")
	case in.CommissionAmount < 0:
		return domain.Validation(op, "commission amount must not be negative, got %d", in.CommissionAmount)
	}
	return nil
}

func (s *commissionService) distributeWithin(ctx context.Context, repos repository.Repositories, in domain.CommissionInput) (*domain.CommissionResult, error) {
	const op = "DistributeCommission"

	claimed, err := repos.Idempotency().Claim(ctx, in.EventID, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.AlreadyProcessed(op, "event %s for order %d", in.EventID, in.OrderID)
	}

	order, err := repos.Orders().GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != in.UserID {
		return nil, domain.Validation(op, "order %d belongs to user %d, not %d", order.ID, order.UserID, in.UserID)
	}
	if order.CommissionAmount != in.CommissionAmount {
		return nil, domain.Validation(op, "order %d commission is %d, event says %d", order.ID, order.CommissionAmount, in.CommissionAmount)
	}

	user, err := repos.Users().GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsSystem {
		return nil, domain.Validation(op, "user %d is a system account", user.ID)
	}

	kind := domain.OrderKindRepurchase
	if !user.HasActivated() {
		kind = domain.OrderKindJoining
	}
	if (kind == domain.OrderKindJoining) != in.IsJoiningOrder {
		logger.Warn("Joining flag disagrees with user state, using user state",
			"order_id", order.ID, "user_id", user.ID, "event_joining", in.IsJoiningOrder, "kind", kind)
	}
	// A free joining order still activates and places the buyer; a free repurchase does nothing.
	if kind == domain.OrderKindRepurchase && in.CommissionAmount == 0 {
		return nil, domain.Validation(op, "repurchase order %d carries no commission", order.ID)
	}

	result := &domain.CommissionResult{
		OrderID:    order.ID,
		Kind:       kind,
		Commission: in.CommissionAmount,
	}

	if err := repos.Users().AddMonthlyPurchase(ctx, user.ID, order.TotalAmount); err != nil {
		return nil, err
	}

	if kind == domain.OrderKindJoining {
		placement, err := s.placement.PlaceWithin(ctx, repos, user.ID, user.SponsorID)
		if err != nil {
			return nil, err
		}
		result.Placement = placement

		if err := repos.Users().Activate(ctx, user.ID, newReferralCode(), in.PaidAt); err != nil {
			return nil, err
		}
	}
	if err := repos.Orders().MarkPaid(ctx, order.ID, kind == domain.OrderKindJoining, in.PaidAt); err != nil {
		return nil, err
	}

	rule := s.plan.Rule(kind)
	split := utils.ComputeSplit(in.CommissionAmount, rule)
	result.CompanyCut = split.CompanyCut
	result.SponsorsPot = split.SponsorsPot
	result.SelfPot = split.SelfPot
	result.PoolPot = split.PoolPot
	result.RoundingDust = split.Dust

	ref := domain.OrderRef(order.ID)
	post := func(entry domain.LedgerEntry) error {
		if entry.Amount == 0 {
			return nil
		}
		entry.Ref = ref
		if err := repos.Ledger().Post(ctx, &entry); err != nil {
			return err
		}
		result.Postings = append(result.Postings, entry)
		return nil
	}

	if err := post(domain.LedgerEntry{Type: domain.EntryTypeCompanyFund, Amount: split.CompanyCut}); err != nil {
		return nil, err
	}

	if err := s.postLevels(ctx, repos, kind, user.ID, split.LevelAmounts, post); err != nil {
		return nil, err
	}

	if err := post(domain.LedgerEntry{Type: domain.EntryTypeCompanyFund, Amount: split.Dust, Note: "rounding remainder"}); err != nil {
		return nil, err
	}

	if split.PoolPot > 0 {
		if err := post(domain.LedgerEntry{Type: domain.EntryTypePoolContribution, Amount: split.PoolPot}); err != nil {
			return nil, err
		}
		if err := repos.Pool().Add(ctx, split.PoolPot); err != nil {
			return nil, err
		}
	}

	if split.SelfPot > 0 {
		rows, err := s.selfIncome.ScheduleWithin(ctx, repos, domain.SelfIncomeRequest{
			UserID:  user.ID,
			OrderID: order.ID,
			Amount:  split.SelfPot,
			PaidAt:  in.PaidAt,
		})
		if err != nil {
			return nil, err
		}
		result.Schedule = rows
	}

	if kind == domain.OrderKindJoining {
		progress, err := s.teams.OnJoiningWithin(ctx, repos, user.ID)
		if err != nil {
			return nil, err
		}
		result.Team = progress
	}

	if total := result.PostedTotal(); total != in.CommissionAmount {
		logger.Invariant("Commission postings do not balance",
			"order_id", order.ID, "commission", in.CommissionAmount, "posted", total)
		return nil, domain.Structural(op, "order %d posted %d of %d", order.ID, total, in.CommissionAmount)
	}
	return result, nil
}

// postLevels pays each depth's amount to the ancestor at that depth when eligible.
// Missing ancestors, missing user records and ineligible ancestors roll up to the company.
func (s *commissionService) postLevels(
	ctx context.Context,
	repos repository.Repositories,
	kind domain.OrderKind,
	buyerID int64,
	amounts []int64,
	post func(domain.LedgerEntry) error,
) error {
	if len(amounts) == 0 {
		return nil
	}

	rows, err := repos.Hierarchy().Ancestors(ctx, buyerID, len(amounts))
	if err != nil {
		return err
	}
	byDepth := make(map[int]int64, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		byDepth[r.Depth] = r.AncestorID
		ids = append(ids, r.AncestorID)
	}
	users, err := repos.Users().GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	paidType := domain.EntryTypeSponsorCommission
	if kind == domain.OrderKindRepurchase {
		paidType = domain.EntryTypeRepurchaseCommission
	}

	for i, amount := range amounts {
		depth := i + 1
		if amount == 0 {
			continue
		}

		eligible := false
		ancestorID, placed := byDepth[depth]
		ancestor := users[ancestorID]
		switch {
		case !placed:
		case ancestor == nil:
			logger.Warn("Ancestor record missing, rolling up", "ancestor_id", ancestorID, "depth", depth)
		case !ancestor.CanEarnSponsorCommission():
		case kind == domain.OrderKindJoining:
			eligible = true
		default:
			eligible, err = s.eligibility.EvaluateWithin(ctx, repos, ancestor.ID)
			if err != nil {
				return err
			}
		}

		entry := domain.LedgerEntry{Amount: amount, LevelDepth: domain.IntPtr(depth)}
		if eligible {
			entry.UserID = domain.Int64Ptr(ancestor.ID)
			entry.Type = paidType
		} else {
			entry.Type = domain.EntryTypeRollupToCompany
			if placed {
				entry.Note = "ineligible ancestor " + strconv.FormatInt(ancestorID, 10)
			}
		}
		if err := post(entry); err != nil {
			return err
		}
	}
	return nil
}

func newReferralCode() string {
	return "MX" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
